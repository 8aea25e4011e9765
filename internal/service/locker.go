package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"quizcoach-backend/internal/apperr"
)

// Locker serializes read-modify-write sequences per key (one user, one
// session). The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func userKey(userID string) string { return "user:" + userID }

type lockEntry struct {
	ch   chan struct{}
	refs int
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocalLocker returns an in-process keyed mutex.
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*lockEntry)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, ctx.Err(), "lock "+key)
	}
}

func (l *localLocker) release(key string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisLocker struct {
	rdb    *goredis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisLocker serializes across processes with SET NX PX. The lease
// expires after ttl if the holder dies.
func NewRedisLocker(rdb *goredis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisLocker{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond, prefix: "quizcoach:lock:"}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	full := l.prefix + key
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "lock "+key)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(ctx, l.rdb, []string{full}, token).Err()
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, ctx.Err(), "lock "+key)
		case <-time.After(l.retry):
		}
	}
}
