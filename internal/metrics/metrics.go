// Package metrics exposes Prometheus instrumentation of detection runs.
package metrics

import (
	"errors"
	"time"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "detection_failed"
	OutcomeInsufficient = "insufficient_data"
	OutcomeInvalid      = "invalid_config"
	OutcomeError        = "error"
)

// Recorder holds the detection metrics
type Recorder struct {
	detections   *prometheus.CounterVec
	attempts     prometheus.Histogram
	transits     prometheus.Histogram
	duration     prometheus.Histogram
	lastGradient *prometheus.GaugeVec
	inFlight     prometheus.Gauge
}

// NewRecorder creates the metrics and registers them with reg
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exotransit_detections_total",
				Help: "Detection runs by outcome",
			},
			[]string{"outcome"},
		),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exotransit_search_attempts",
			Help:    "Thresholds tried per detection run",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50, 100, 200},
		}),
		transits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exotransit_transits_found",
			Help:    "Transits identified per successful run",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exotransit_detection_duration_seconds",
			Help:    "Wall time of a detection run",
			Buckets: prometheus.DefBuckets,
		}),
		lastGradient: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "exotransit_grad_filter",
				Help: "Grad filter of the last successful run per light curve",
			},
			[]string{"label"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exotransit_detections_in_flight",
			Help: "Detection runs currently executing",
		}),
	}

	for _, c := range []prometheus.Collector{r.detections, r.attempts, r.transits, r.duration, r.lastGradient, r.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Start marks a run as in flight and returns the function that ends it
func (r *Recorder) Start() func() {
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// Observe records the outcome of one run
func (r *Recorder) Observe(label string, result *transit.Result, err error, elapsed time.Duration) {
	r.duration.Observe(elapsed.Seconds())
	r.detections.WithLabelValues(Outcome(err)).Inc()

	var failed *transit.DetectionFailedError
	switch {
	case err == nil && result != nil:
		r.attempts.Observe(float64(len(result.Attempts)))
		r.transits.Observe(float64(len(result.Events)))
		r.lastGradient.WithLabelValues(label).Set(result.GradFilter)
	case errors.As(err, &failed):
		r.attempts.Observe(float64(failed.Attempts))
	}
}

// Outcome classifies a detection error for the outcome label
func Outcome(err error) string {
	var (
		failed       *transit.DetectionFailedError
		insufficient *transit.InsufficientDataError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &failed):
		return OutcomeFailed
	case errors.As(err, &insufficient):
		return OutcomeInsufficient
	case errors.Is(err, transit.ErrInvalidConfig):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
