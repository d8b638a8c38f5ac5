package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/NasaVasa/itemwatcher/internal/config"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// zapWriter routes gorm's slow-query and error lines into the service log.
type zapWriter struct {
	sugar *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Warnf(format, args...)
}

func gormLogLevel(level string) logger.LogLevel {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		return logger.Info
	}
	return logger.Warn
}

func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(zapWriter{sugar: log.Named("gorm").Sugar()}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	switch cfg.DBDriver {
	case "postgres":
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	default:
		// SQLite allows one writer; a single connection serializes commits.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&productModel{}, &observationModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", zap.String("driver", driverName(cfg.DBDriver)))
	return db, nil
}

func driverName(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}

func dialectorFor(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		dsn := cfg.DBPath
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		return sqlite.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
