package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/utilities"
)

// ProgressRepository stores UserProgress rows. Every write is a
// compare-and-swap on Version.
type ProgressRepository interface {
	Get(ctx context.Context, tx *gorm.DB, userID string) (*model.UserProgress, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, defaults model.UserProgress) (*model.UserProgress, error)
	Update(ctx context.Context, tx *gorm.DB, p *model.UserProgress) error
}

type progressRepository struct {
	db  *gorm.DB
	log *utilities.Logger
}

func NewProgressRepository(conn *gorm.DB, baseLog *utilities.Logger) ProgressRepository {
	return &progressRepository{db: conn, log: baseLog.With("repo", "ProgressRepository")}
}

func (r *progressRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *progressRepository) Get(ctx context.Context, tx *gorm.DB, userID string) (*model.UserProgress, error) {
	var p model.UserProgress
	if err := r.conn(tx).WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, db.Wrap(err, "get progress")
	}
	return &p, nil
}

// GetOrCreate inserts defaults unless a row for defaults.UserID exists, then
// returns the stored row.
func (r *progressRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, defaults model.UserProgress) (*model.UserProgress, error) {
	conn := r.conn(tx).WithContext(ctx)
	res := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults)
	if res.Error != nil {
		return nil, db.Wrap(res.Error, "create progress")
	}
	if res.RowsAffected > 0 {
		r.log.Info("progress record created", "user_id", defaults.UserID, "level", defaults.Level)
	}
	return r.Get(ctx, tx, defaults.UserID)
}

func (r *progressRepository) Update(ctx context.Context, tx *gorm.DB, p *model.UserProgress) error {
	res := r.conn(tx).WithContext(ctx).
		Model(&model.UserProgress{}).
		Where("user_id = ? AND version = ?", p.UserID, p.Version).
		Updates(map[string]interface{}{
			"level":                p.Level,
			"topic":                p.Topic,
			"assessment_completed": p.AssessmentCompleted,
			"streak":               p.Streak,
			"pending_promotion":    p.PendingPromotion,
			"offered_level":        p.OfferedLevel,
			"version":              p.Version + 1,
		})
	if res.Error != nil {
		return db.Wrap(res.Error, "update progress")
	}
	if res.RowsAffected == 0 {
		return db.ErrVersionConflict
	}
	p.Version++
	return nil
}
