// Package transit finds periodic brightness dips in a light curve: median
// smoothing, gradient-threshold segmentation, an adaptive threshold search
// validated by boundary ordering, and grouping into transit events.
package transit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config holds every parameter of a detection run
type Config struct {
	NumSections int
	Search      SearchParams

	// Timeout bounds a single Detect call; 0 disables it
	Timeout time.Duration
}

// DefaultConfig returns the reference parameters with a bounded search
func DefaultConfig() Config {
	return Config{
		NumSections: 5000,
		Search:      DefaultSearchParams(),
		Timeout:     30 * time.Second,
	}
}

// Validate checks the config before any data is touched
func (c Config) Validate() error {
	if c.NumSections < 1 {
		return invalidConfigf("num_sections must be >= 1, got %d", c.NumSections)
	}
	if c.Timeout < 0 {
		return invalidConfigf("timeout must be >= 0, got %s", c.Timeout)
	}
	return c.Search.Validate()
}

// Result is the output of a successful detection run
type Result struct {
	Curve           Curve         `json:"-"`
	Events          []Event       `json:"events"`
	Starts          []Boundary    `json:"-"`
	Ends            []Boundary    `json:"-"`
	GradFilter      float64       `json:"grad_filter"`
	MeanAbsGradient float64       `json:"mean_abs_gradient"`
	Attempts        []Attempt     `json:"attempts"`
	Samples         int           `json:"samples"`
	Duration        time.Duration `json:"duration_ns"`
}

// Detector runs the full pipeline with a fixed config
type Detector struct {
	config Config
	logger *zap.SugaredLogger
}

// NewDetector validates the config and returns a Detector
func NewDetector(config Config, logger *zap.SugaredLogger) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Detector{config: config, logger: logger}, nil
}

// Config returns the detector's parameters
func (d *Detector) Config() Config {
	return d.config
}

// WithConfig returns a detector sharing this one's logger with different parameters
func (d *Detector) WithConfig(config Config) (*Detector, error) {
	return NewDetector(config, d.logger)
}

// Detect smooths the samples, searches for a valid boundary set and groups it
// into events. samples must be in increasing time order.
func (d *Detector) Detect(ctx context.Context, samples []Sample) (*Result, error) {
	startTime := time.Now()

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	curve, err := Smooth(samples, d.config.NumSections)
	if err != nil {
		return nil, err
	}
	d.logger.Debugf("smoothed %d samples into %d sections of %d samples",
		len(samples), len(curve), len(samples)/d.config.NumSections)

	found, err := Search(ctx, curve, d.config.Search, d.logger)
	if err != nil {
		return nil, err
	}

	events, err := Group(Outers(found.Starts), Tails(found.Starts), Outers(found.Ends), Tails(found.Ends))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Curve:           curve,
		Events:          events,
		Starts:          found.Starts,
		Ends:            found.Ends,
		GradFilter:      found.Filter,
		MeanAbsGradient: found.MeanAbsGradient,
		Attempts:        found.Attempts,
		Samples:         len(samples),
		Duration:        time.Since(startTime),
	}

	d.logger.Infof("identified %d transits at grad filter %.2f after %d attempts in %v",
		len(events), found.Filter, len(found.Attempts), result.Duration)

	return result, nil
}
