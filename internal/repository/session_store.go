package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/utilities"
)

// SessionStore keeps small per-user conversational state (such as the last
// question handed out) outside process memory. A ttl of zero means no expiry.
type SessionStore interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type dbSessionStore struct {
	db  *gorm.DB
	now func() time.Time
	log *utilities.Logger
}

func NewDBSessionStore(conn *gorm.DB, baseLog *utilities.Logger) SessionStore {
	return &dbSessionStore{db: conn, now: time.Now, log: baseLog.With("store", "db")}
}

func (s *dbSessionStore) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	var row model.SessionState
	err := s.db.WithContext(ctx).Where("session_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, db.Wrap(err, "session get")
	}
	if row.ExpiresAt != nil && !row.ExpiresAt.After(s.now()) {
		if err := s.Delete(ctx, key); err != nil {
			s.log.Warn("expired session not removed", "key", key, "error", err)
		}
		return false, nil
	}
	if err := json.Unmarshal(row.Value, dst); err != nil {
		return false, apperr.Wrap(apperr.KindInternal, err, "decode session "+key)
	}
	return true, nil
}

func (s *dbSessionStore) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "encode session "+key)
	}
	row := model.SessionState{Key: key, Value: datatypes.JSON(raw)}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		row.ExpiresAt = &exp
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
	return db.Wrap(err, "session put")
}

func (s *dbSessionStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("session_key = ?", key).Delete(&model.SessionState{}).Error
	return db.Wrap(err, "session delete")
}

// SweepExpired removes expired rows and reports how many went.
func SweepExpired(ctx context.Context, conn *gorm.DB) (int64, error) {
	res := conn.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Delete(&model.SessionState{})
	return res.RowsAffected, db.Wrap(res.Error, "session sweep")
}

type redisSessionStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisSessionStore(rdb *goredis.Client) SessionStore {
	return &redisSessionStore{rdb: rdb, prefix: "quizcoach:session:"}
}

func (s *redisSessionStore) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreUnavailable, err, "redis get")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, apperr.Wrap(apperr.KindInternal, err, "decode session "+key)
	}
	return true, nil
}

func (s *redisSessionStore) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "encode session "+key)
	}
	if err := s.rdb.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "redis set")
	}
	return nil
}

func (s *redisSessionStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "redis del")
	}
	return nil
}

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
