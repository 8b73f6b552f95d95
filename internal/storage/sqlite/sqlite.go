// Package sqlite stores detection runs in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/exotransit/internal/storage"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    samples INTEGER NOT NULL,
    num_sections INTEGER NOT NULL,
    edge_policy TEXT NOT NULL,
    grad_filter REAL NOT NULL,
    mean_abs_gradient REAL NOT NULL,
    events TEXT NOT NULL,
    attempts TEXT NOT NULL
)`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at)`

const selectColumns = `id, label, created_at, status, error, samples, num_sections,
    edge_policy, grad_filter, mean_abs_gradient, events, attempts`

// Storage is a SQLite run store
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create runs table: %w", err)
		}
	}

	logger.Infof("SQLite run storage ready at %s", path)
	return &Storage{db: db, logger: logger}, nil
}

// Name identifies the backend in health reports
func (s *Storage) Name() string {
	return "sqlite"
}

// SaveRun inserts or replaces a run
func (s *Storage) SaveRun(ctx context.Context, run *storage.Run) error {
	events, err := json.Marshal(run.Events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	attempts, err := json.Marshal(run.Attempts)
	if err != nil {
		return fmt.Errorf("failed to encode attempts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Label, run.CreatedAt.UnixNano(), run.Status, run.Error,
		run.Samples, run.NumSections, run.EdgePolicy, run.GradFilter,
		run.MeanAbsGradient, string(events), string(attempts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	s.logger.Debugf("stored run %s (%s)", run.ID, run.Label)
	return nil
}

// GetRun fetches one run by ID
func (s *Storage) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first; limit <= 0 means all
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	query := `SELECT ` + selectColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []storage.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*storage.Run, error) {
	var (
		run       storage.Run
		createdAt int64
		events    string
		attempts  string
	)

	err := sc.Scan(&run.ID, &run.Label, &createdAt, &run.Status, &run.Error,
		&run.Samples, &run.NumSections, &run.EdgePolicy, &run.GradFilter,
		&run.MeanAbsGradient, &events, &attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(events), &run.Events); err != nil {
		return nil, fmt.Errorf("failed to decode events of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(attempts), &run.Attempts); err != nil {
		return nil, fmt.Errorf("failed to decode attempts of run %s: %w", run.ID, err)
	}
	return &run, nil
}
