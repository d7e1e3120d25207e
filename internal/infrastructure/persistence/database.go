package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tpa/backend/internal/infrastructure/config"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database is the pooled connection behind the exchange-rate store
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

type dbOptions struct {
	level string
	slow  time.Duration
}

// DatabaseOption configures NewDatabase
type DatabaseOption func(*dbOptions)

// WithLogLevel sets the zap level name SQL is logged at. Statements are
// only traced at "debug".
func WithLogLevel(level string) DatabaseOption {
	return func(o *dbOptions) { o.level = level }
}

// WithSlowThreshold sets the duration above which a statement is logged as
// a warning.
func WithSlowThreshold(d time.Duration) DatabaseOption {
	return func(o *dbOptions) { o.slow = d }
}

// NewDatabase opens a pooled postgres connection and checks it answers
func NewDatabase(cfg *config.DatabaseConfig, zl *zap.Logger, opts ...DatabaseOption) (*Database, error) {
	o := dbOptions{level: "warn", slow: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := open(postgres.Open(cfg.DSN()), cfg, &gorm.Config{
		Logger:                 logger.NewGormLogger(zl, logger.MapGormLogLevel(o.level), logger.WithSlowThreshold(o.slow)),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.sql.Ping(); err != nil {
		_ = db.sql.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func open(dialector gorm.Dialector, cfg *config.DatabaseConfig, gormCfg *gorm.Config) (*Database, error) {
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	return &Database{DB: db, sql: sqlDB}, nil
}

func (d *Database) Close() error {
	return d.sql.Close()
}

// Ping backs the "database" health check
func (d *Database) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Stats reports the pool for the health endpoint
func (d *Database) Stats() (ConnectionStats, error) {
	s := d.sql.Stats()
	return ConnectionStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}, nil
}

// ConnectionStats is a JSON view of sql.DBStats
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}
