package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheckInterval is how often backends are pinged
const HealthCheckInterval = time.Minute

// Manager fans runs out to every configured backend and reads from the
// first one
type Manager struct {
	backends []Backend
	health   *HealthManager
	logger   *zap.SugaredLogger
}

// NewManager wraps the given backends. With no backends every save is a
// no-op and reads return ErrNotFound.
func NewManager(logger *zap.SugaredLogger, backends ...Backend) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		backends: backends,
		health:   NewHealthManager(),
		logger:   logger,
	}
}

// Enabled reports whether any backend is configured
func (m *Manager) Enabled() bool {
	return len(m.backends) > 0
}

// Health returns the last health check of every backend
func (m *Manager) Health() map[string]Health {
	return m.health.GetAllHealth()
}

// SaveRun stores the run in every backend
func (m *Manager) SaveRun(ctx context.Context, run *Run) error {
	var errs []error
	for _, b := range m.backends {
		if err := b.SaveRun(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// GetRun looks the run up in the first backend
func (m *Manager) GetRun(ctx context.Context, id string) (*Run, error) {
	if len(m.backends) == 0 {
		return nil, ErrNotFound
	}
	return m.backends[0].GetRun(ctx, id)
}

// ListRuns lists the newest runs of the first backend
func (m *Manager) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if len(m.backends) == 0 {
		return []Run{}, nil
	}
	return m.backends[0].ListRuns(ctx, limit)
}

// Close closes every backend
func (m *Manager) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// StartStorageEngine starts a goroutine that stores every run sent on the
// returned channel. It exits once the channel is closed and drained, or when
// ctx is done.
func (m *Manager) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- *Run {
	m.logger.Info("starting run storage engine...")
	runChan := make(chan *Run, 10)

	wg.Add(1)
	go m.processRuns(ctx, wg, runChan)

	return runChan
}

func (m *Manager) processRuns(ctx context.Context, wg *sync.WaitGroup, rchan <-chan *Run) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-rchan:
			if !ok {
				return
			}
			if err := m.SaveRun(ctx, r); err != nil {
				m.logger.Errorf("could not store run %s (%s): %v", r.ID, r.Label, err)
			}
		case <-ctx.Done():
			m.logger.Info("cancellation request received. Stopping run storage engine.")
			return
		}
	}
}

// StartHealthMonitor pings each backend now and then every
// HealthCheckInterval until ctx is done
func (m *Manager) StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.CheckHealth(ctx)

		ticker := time.NewTicker(HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CheckHealth(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CheckHealth pings every backend and records the outcome
func (m *Manager) CheckHealth(ctx context.Context) {
	for _, b := range m.backends {
		health := Health{
			LastCheck: time.Now(),
			Status:    "healthy",
			Message:   b.Name() + " connection active",
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := b.Ping(pingCtx); err != nil {
			health.Status = "unhealthy"
			health.Message = "ping failed"
			health.Error = err.Error()
			m.logger.Warnf("%s storage unhealthy: %v", b.Name(), err)
		}
		cancel()

		m.health.UpdateHealth(b.Name(), health)
	}
}
