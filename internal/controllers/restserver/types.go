package restserver

import (
	"time"

	"github.com/chrissnell/exotransit/internal/storage"
	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/chrissnell/exotransit/pkg/config"
)

// DetectRequest is the body of POST /api/detect
type DetectRequest struct {
	Label     string                `json:"label"`
	Samples   []transit.Sample      `json:"samples"`
	Detection *config.DetectionData `json:"detection,omitempty"`
}

// DetectResponse is a successful detection
type DetectResponse struct {
	RunID           string            `json:"run_id,omitempty"`
	Label           string            `json:"label"`
	Events          []transit.Event   `json:"events"`
	GradFilter      float64           `json:"grad_filter"`
	MeanAbsGradient float64           `json:"mean_abs_gradient"`
	Attempts        []transit.Attempt `json:"attempts"`
	Samples         int               `json:"samples"`
	DurationMs      float64           `json:"duration_ms"`
}

// FailureDetail accompanies a 422 when the search could not validate
type FailureDetail struct {
	RunID       string  `json:"run_id,omitempty"`
	Reason      string  `json:"reason"`
	LastFilter  float64 `json:"last_grad_filter"`
	Attempts    int     `json:"attempts"`
	CurveLength int     `json:"curve_length"`
}

// RunsResponse is the body of GET /api/runs
type RunsResponse struct {
	Runs []storage.Run `json:"runs"`
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Version   string                    `json:"version"`
	Uptime    string                    `json:"uptime"`
	StartedAt time.Time                 `json:"started_at"`
	Detection config.DetectionData      `json:"detection"`
	Storage   map[string]storage.Health `json:"storage"`
}
