package lightcurve

import (
	"context"
	"fmt"
	"strings"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSource reads samples from a table with target, time and flux
// columns, one light curve per target
type PostgresSource struct {
	pool   *pgxpool.Pool
	ident  pgx.Identifier
	table  string
	logger *zap.SugaredLogger
}

// NewPostgresSource connects to the database holding the sample table
func NewPostgresSource(ctx context.Context, connString, table string, logger *zap.SugaredLogger) (*PostgresSource, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ident := tableIdent(table)
	return &PostgresSource{
		pool:   pool,
		ident:  ident,
		table:  ident.Sanitize(),
		logger: logger,
	}, nil
}

// tableIdent splits a possibly schema-qualified table name
func tableIdent(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// Targets lists the distinct light curves in the table
func (s *PostgresSource) Targets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT target FROM "+s.table+" ORDER BY target")
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	targets, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	return targets, nil
}

// Load returns the samples of one target in time order, skipping NULL and
// NaN flux. time and flux must be double precision columns.
func (s *PostgresSource) Load(ctx context.Context, target string) ([]transit.Sample, error) {
	query := "SELECT time, flux FROM " + s.table +
		" WHERE target = $1 AND flux IS NOT NULL AND flux <> 'NaN' ORDER BY time"

	rows, err := s.pool.Query(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples for %s: %w", target, err)
	}

	samples, err := pgx.CollectRows(rows, pgx.RowToStructByPos[transit.Sample])
	if err != nil {
		return nil, fmt.Errorf("failed to read samples for %s: %w", target, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w", target, ErrNoSamples)
	}

	s.logger.Debugf("loaded %d samples for target %s", len(samples), target)
	return samples, nil
}

// EnsureTable creates the sample table if it does not exist
func (s *PostgresSource) EnsureTable(ctx context.Context) error {
	ddl := "CREATE TABLE IF NOT EXISTS " + s.table + ` (
    target text NOT NULL,
    time double precision NOT NULL,
    flux double precision NULL,
    PRIMARY KEY (target, time)
)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create sample table: %w", err)
	}
	return nil
}

// Import replaces the samples of target with the given ones in a single
// transaction using COPY
func (s *PostgresSource) Import(ctx context.Context, target string, samples []transit.Sample) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+s.table+" WHERE target = $1", target); err != nil {
		return 0, fmt.Errorf("failed to clear samples for %s: %w", target, err)
	}

	n, err := tx.CopyFrom(ctx,
		s.ident,
		[]string{"target", "time", "flux"},
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			return []any{target, samples[i].Time, samples[i].Flux}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy samples for %s: %w", target, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit samples for %s: %w", target, err)
	}

	s.logger.Infof("imported %d samples for target %s", n, target)
	return n, nil
}

// Close releases the connection pool
func (s *PostgresSource) Close() {
	s.pool.Close()
}
