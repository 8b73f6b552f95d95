package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/exotransit/internal/lightcurve"
	"github.com/chrissnell/exotransit/internal/storage"
	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/chrissnell/exotransit/pkg/responseformat"
	"github.com/gorilla/mux"
)

const defaultRunsLimit = 50

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller, maxBodyBytes int64) *Handlers {
	f := responseformat.NewFormatter()
	f.MaxBodyBytes = maxBodyBytes
	return &Handlers{
		controller: ctrl,
		formatter:  f,
	}
}

// Detect runs the detector over the posted samples
func (h *Handlers) Detect(w http.ResponseWriter, req *http.Request) {
	c := h.controller

	var body DetectRequest
	if err := h.formatter.DecodeRequest(req, &body); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err, nil)
		return
	}
	if body.Label == "" {
		body.Label = "unnamed"
	}
	if len(body.Samples) == 0 {
		h.writeError(w, req, http.StatusBadRequest, lightcurve.ErrNoSamples, nil)
		return
	}
	if err := lightcurve.CheckOrder(body.Samples); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err, nil)
		return
	}

	detector := c.detector
	if body.Detection != nil {
		tc, err := body.Detection.Merge(c.defaults).TransitConfig()
		if err != nil {
			h.writeError(w, req, http.StatusBadRequest, err, nil)
			return
		}
		if detector, err = c.detector.WithConfig(tc); err != nil {
			h.writeError(w, req, http.StatusBadRequest, err, nil)
			return
		}
	}

	if c.metrics != nil {
		defer c.metrics.Start()()
	}

	start := time.Now()
	result, err := detector.Detect(req.Context(), body.Samples)
	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.Observe(body.Label, result, err, elapsed)
	}

	runID := h.saveRun(req.Context(), body.Label, len(body.Samples), detector.Config(), result, err)

	if err != nil {
		h.writeDetectError(w, req, runID, err)
		return
	}

	h.formatter.WriteResponse(w, req, DetectResponse{
		RunID:           runID,
		Label:           body.Label,
		Events:          result.Events,
		GradFilter:      result.GradFilter,
		MeanAbsGradient: result.MeanAbsGradient,
		Attempts:        result.Attempts,
		Samples:         result.Samples,
		DurationMs:      float64(result.Duration) / float64(time.Millisecond),
	}, nil)
}

// saveRun stores the run when storage is configured and returns its ID
func (h *Handlers) saveRun(ctx context.Context, label string, samples int, cfg transit.Config, result *transit.Result, detectErr error) string {
	c := h.controller
	if !c.store.Enabled() {
		return ""
	}

	run := storage.NewRun(label, samples, cfg, result, detectErr)
	// the run is stored even if the client went away mid-request
	if err := c.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Errorf("could not store run %s (%s): %v", run.ID, label, err)
		return ""
	}
	return run.ID
}

func (h *Handlers) writeDetectError(w http.ResponseWriter, req *http.Request, runID string, err error) {
	var (
		failed       *transit.DetectionFailedError
		insufficient *transit.InsufficientDataError
		empty        *transit.EmptyCurveError
		outOfRange   *transit.IndexOutOfRangeError
	)

	switch {
	case errors.As(err, &failed):
		h.writeError(w, req, http.StatusUnprocessableEntity, err, FailureDetail{
			RunID:       runID,
			Reason:      failed.Reason,
			LastFilter:  failed.LastFilter,
			Attempts:    failed.Attempts,
			CurveLength: failed.CurveLength,
		})
	case errors.As(err, &insufficient), errors.As(err, &empty), errors.As(err, &outOfRange):
		h.writeError(w, req, http.StatusUnprocessableEntity, err, nil)
	case errors.Is(err, transit.ErrInvalidConfig):
		h.writeError(w, req, http.StatusBadRequest, err, nil)
	default:
		h.controller.logger.Errorf("detection error: %v", err)
		h.writeError(w, req, http.StatusInternalServerError, err, nil)
	}
}

// ListRuns returns the most recent stored runs
func (h *Handlers) ListRuns(w http.ResponseWriter, req *http.Request) {
	limit := defaultRunsLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v), nil)
			return
		}
		limit = n
	}

	runs, err := h.controller.store.ListRuns(req.Context(), limit)
	if err != nil {
		h.controller.logger.Errorf("could not list runs: %v", err)
		h.writeError(w, req, http.StatusInternalServerError, err, nil)
		return
	}

	h.formatter.WriteResponse(w, req, RunsResponse{Runs: runs}, nil)
}

// GetRun returns one stored run
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	run, err := h.controller.store.GetRun(req.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, req, http.StatusNotFound, err, nil)
		return
	}
	if err != nil {
		h.controller.logger.Errorf("could not fetch run %s: %v", id, err)
		h.writeError(w, req, http.StatusInternalServerError, err, nil)
		return
	}

	h.formatter.WriteResponse(w, req, run, nil)
}

// Status reports the version, detection defaults and storage health
func (h *Handlers) Status(w http.ResponseWriter, req *http.Request) {
	c := h.controller
	h.formatter.WriteResponse(w, req, StatusResponse{
		Version:   c.version,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		StartedAt: c.started.UTC(),
		Detection: c.defaults,
		Storage:   c.store.Health(),
	}, nil)
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, err error, detail any) {
	if werr := h.formatter.WriteError(w, req, status, err, detail); werr != nil {
		h.controller.logger.Debugf("could not write error response: %v", werr)
	}
}
