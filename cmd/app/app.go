package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/repository"
	"quizcoach-backend/internal/service"
	"quizcoach-backend/utilities"
)

const redisLockTTL = 30 * time.Second

// application holds the wired services shared by serve and mcp.
type application struct {
	cfg  *config.APIConfig
	log  *utilities.Logger
	conn *gorm.DB
	rdb  *goredis.Client
	bus  *utilities.EventBus

	quiz        service.QuizService
	assessments service.AssessmentService
	progress    service.ProgressService
}

func newApplication(ctx context.Context, cfg *config.APIConfig, log *utilities.Logger) (*application, error) {
	settings, err := service.SettingsFromConfig(cfg.Learning, cfg.Session)
	if err != nil {
		return nil, err
	}

	conn, err := db.InitDBFromConfig(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	app := &application{cfg: cfg, log: log, conn: conn, bus: utilities.GlobalEventBus}
	deps := service.Deps{
		Questions:   repository.NewQuestionRepository(conn, log),
		Progress:    repository.NewProgressRepository(conn, log),
		Attempts:    repository.NewAttemptRepository(conn, log),
		Assessments: repository.NewAssessmentRepository(conn, log),
		Sessions:    repository.NewDBSessionStore(conn, log),
		Exec:        db.NewQueryExecutor(conn),
		Locker:      service.NewLocalLocker(),
		Bus:         app.bus,
		Log:         log,
		Settings:    settings,
	}

	if cfg.Redis.Enabled() {
		rdb, err := repository.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.rdb = rdb
		deps.Locker = service.NewRedisLocker(rdb, redisLockTTL)
		if cfg.Session.Store == "redis" {
			deps.Sessions = repository.NewRedisSessionStore(rdb)
		}
		log.Info("redis enabled", "addr", cfg.Redis.Addr, "session_store", cfg.Session.Store)
	}

	app.quiz = service.NewQuizService(deps)
	app.assessments = service.NewAssessmentService(deps)
	app.progress = service.NewProgressService(deps)
	app.subscribe()
	return app, nil
}

// subscribe logs the domain events the services publish.
func (a *application) subscribe() {
	log := a.log.With("component", "events")
	a.bus.Subscribe(utilities.EventAttemptRecorded, func(data interface{}) {
		if at, ok := data.(model.Attempt); ok {
			log.Debug("attempt recorded", "user_id", at.UserID, "question_id", at.QuestionID, "correct", at.IsCorrect, "source", at.Source)
		}
	})
	a.bus.Subscribe(utilities.EventLevelChanged, func(data interface{}) {
		if ev, ok := data.(service.LevelChangedEvent); ok {
			log.Info("level changed", "user_id", ev.UserID, "from", ev.From, "to", ev.To, "cause", ev.Cause)
		}
	})
	a.bus.Subscribe(utilities.EventPromotionOffered, func(data interface{}) {
		if ev, ok := data.(service.PromotionOfferedEvent); ok {
			log.Info("promotion offered", "user_id", ev.UserID, "level", ev.OfferedLevel)
		}
	})
	a.bus.Subscribe(utilities.EventAssessmentFinished, func(data interface{}) {
		if ev, ok := data.(service.AssessmentFinishedEvent); ok {
			log.Info("assessment finished", "user_id", ev.UserID, "session_id", ev.SessionID, "final_level", ev.Summary.FinalLevel, "asked", ev.Summary.Asked)
		}
	})
}

// sweepSessions prunes expired practice sessions until ctx is done. Redis
// expires its own keys, so only the database store needs it.
func (a *application) sweepSessions(ctx context.Context, every time.Duration) error {
	if a.cfg.Session.Store != "db" {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := repository.SweepExpired(ctx, a.conn)
			if err != nil {
				a.log.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.log.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (a *application) Close() {
	a.bus.Wait()
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("close redis", "error", err)
		}
	}
	if a.conn != nil {
		if sqlDB, err := a.conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	a.log.Sync()
}
