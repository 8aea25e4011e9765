package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/utilities"
)

// Open connects to the configured driver and applies pool settings.
func Open(cfg *config.APIConfig, log *utilities.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLogger.New(log.StdLog(), gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}

	var (
		conn *gorm.DB
		err  error
	)
	switch cfg.DB.Driver {
	case "postgres":
		conn, err = gorm.Open(postgres.Open(cfg.PostgresDSN()), gcfg)
	case "sqlite":
		conn, err = gorm.Open(sqlite.Open(cfg.DB.DSN), gcfg)
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", cfg.DB.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DB.Driver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DB.Driver == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DB.Pool.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DB.Pool.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DB.Pool.ConnMaxLifetime) * time.Minute)
	}
	return conn, nil
}

// InitDBFromConfig opens the database and migrates it when DB/INITIALIZE is set.
func InitDBFromConfig(cfg *config.APIConfig, log *utilities.Logger) (*gorm.DB, error) {
	conn, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Initialize {
		if err := Migrate(conn); err != nil {
			return nil, err
		}
	}
	log.Info("database ready", "driver", cfg.DB.Driver, "migrated", cfg.DB.Initialize)
	return conn, nil
}

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// OpenMemory returns a migrated, private in-memory SQLite database.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}
