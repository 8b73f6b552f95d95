// Package storage persists transit detection runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no run has the requested ID
var ErrNotFound = errors.New("run not found")

// Run status values
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Backend is implemented by each storage engine
type Backend interface {
	Name() string
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the newest runs first
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Ping(ctx context.Context) error
	Close() error
}

// Run is one stored detection run
type Run struct {
	ID              string            `json:"id" gorm:"column:id;primaryKey"`
	Label           string            `json:"label" gorm:"column:label;index"`
	CreatedAt       time.Time         `json:"created_at" gorm:"column:created_at;index"`
	Status          string            `json:"status" gorm:"column:status"`
	Error           string            `json:"error,omitempty" gorm:"column:error"`
	Samples         int               `json:"samples" gorm:"column:samples"`
	NumSections     int               `json:"num_sections" gorm:"column:num_sections"`
	EdgePolicy      string            `json:"edge_policy" gorm:"column:edge_policy"`
	GradFilter      float64           `json:"grad_filter" gorm:"column:grad_filter"`
	MeanAbsGradient float64           `json:"mean_abs_gradient" gorm:"column:mean_abs_gradient"`
	Events          []transit.Event   `json:"events" gorm:"column:events;serializer:json"`
	Attempts        []transit.Attempt `json:"attempts" gorm:"column:attempts;serializer:json"`
}

// TableName sets the table used by the TimescaleDB backend
func (Run) TableName() string {
	return "transit_runs"
}

// NewRun records the outcome of one detection with a fresh ID. Failed runs
// keep the error text and whatever attempts the search reported.
func NewRun(label string, samples int, cfg transit.Config, result *transit.Result, err error) *Run {
	run := &Run{
		ID:          uuid.NewString(),
		Label:       label,
		CreatedAt:   time.Now().UTC(),
		Status:      StatusOK,
		Samples:     samples,
		NumSections: cfg.NumSections,
		EdgePolicy:  string(cfg.Search.EdgePolicy),
	}

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()

		var failed *transit.DetectionFailedError
		if errors.As(err, &failed) {
			run.GradFilter = failed.LastFilter
		}
	}

	if result != nil {
		run.GradFilter = result.GradFilter
		run.MeanAbsGradient = result.MeanAbsGradient
		run.Events = result.Events
		run.Attempts = result.Attempts
	}

	return run
}
