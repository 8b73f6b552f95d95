// Package timescaledb stores detection runs in TimescaleDB (or any Postgres)
// through GORM.
package timescaledb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/exotransit/internal/log"
	"github.com/chrissnell/exotransit/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage holds the connection to a TimescaleDB run store
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// New connects to the database and migrates the runs table
func New(ctx context.Context, connectionString string, zl *zap.SugaredLogger) (*Storage, error) {
	if zl == nil {
		zl = zap.NewNop().Sugar()
	}

	// Create a logger for gorm
	dbLogger := logger.New(
		log.NewStdLog(zapcore.WarnLevel),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	zl.Info("connecting to TimescaleDB...")
	conn, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}
	zl.Info("TimescaleDB connection successful")

	zl.Info("migrating runs table...")
	if err := conn.WithContext(ctx).AutoMigrate(&storage.Run{}); err != nil {
		return nil, fmt.Errorf("could not migrate runs table: %w", err)
	}

	return &Storage{TimescaleDBConn: conn, logger: zl}, nil
}

// Name identifies the backend in health reports
func (t *Storage) Name() string {
	return "timescaledb"
}

// SaveRun inserts or updates a run
func (t *Storage) SaveRun(ctx context.Context, run *storage.Run) error {
	if err := t.TimescaleDBConn.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("could not store run: %w", err)
	}
	t.logger.Debugf("stored run %s (%s)", run.ID, run.Label)
	return nil
}

// GetRun fetches one run by ID
func (t *Storage) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	var run storage.Run
	err := t.TimescaleDBConn.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not fetch run: %w", err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first; limit <= 0 means all
func (t *Storage) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	runs := []storage.Run{}
	q := t.TimescaleDBConn.WithContext(ctx).Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}
	return runs, nil
}

// Ping checks the connection with a trivial query
func (t *Storage) Ping(ctx context.Context) error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error
}

// Close closes the underlying connection pool
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
