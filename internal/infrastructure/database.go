package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/contest-radar/backend/internal/domain"
)

const (
	slowQueryThreshold = 200 * time.Millisecond
	connectTimeout     = 5 * time.Second
)

// models are the persisted tables. Contests are never stored; they live in
// the in-memory cache.
var models = []interface{}{
	&domain.User{},
	&domain.NotificationRecord{},
}

// Database holds the user and notification-history store
type Database struct {
	*gorm.DB
	logger *zap.Logger
}

// NewDatabase opens the postgres pool and verifies it answers a ping
func NewDatabase(ctx context.Context, config *DatabaseConfig, logger *zap.Logger) (*Database, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		Logger:                 newGormLogger(logger),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	database := &Database{DB: db, logger: logger}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := database.HealthCheck(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.DBName),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)
	return database, nil
}

// AutoMigrate creates the users and notification_history tables together
// with the partial unique index on SENT records
func (d *Database) AutoMigrate() error {
	start := time.Now()

	// gen_random_uuid() is built in from postgres 13, older servers need pgcrypto
	if err := d.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		d.logger.Warn("Could not ensure pgcrypto extension", zap.Error(err))
	}

	if err := d.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed",
		zap.Int("tables", len(models)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// HealthCheck pings the pool
func (d *Database) HealthCheck(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	return gormlogger.New(
		gormWriter{logger.Named("gorm").Sugar()},
		gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// gormWriter forwards gorm's printf-style output to zap
type gormWriter struct {
	sugar *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.sugar.Warnf(format, args...)
}
