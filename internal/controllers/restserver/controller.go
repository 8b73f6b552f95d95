// Package restserver exposes the transit detector over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/exotransit/internal/log"
	"github.com/chrissnell/exotransit/internal/metrics"
	"github.com/chrissnell/exotransit/internal/storage"
	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/chrissnell/exotransit/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds a detect request body
const DefaultMaxBodyBytes = 64 << 20

// RunStore is the persistence the API reads and writes runs through
type RunStore interface {
	Enabled() bool
	SaveRun(ctx context.Context, run *storage.Run) error
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
	Health() map[string]storage.Health
}

// Options wires the controller's collaborators
type Options struct {
	REST      config.RESTServerData
	Detection config.DetectionData
	Store     RunStore
	Metrics   *metrics.Recorder
	Gatherer  prometheus.Gatherer
	Version   string

	MaxBodyBytes int64
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	detector   *transit.Detector
	defaults   config.DetectionData
	store      RunStore
	metrics    *metrics.Recorder
	version    string
	started    time.Time
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, opts Options, logger *zap.SugaredLogger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	defaults := opts.Detection.Merge(config.DetectionDefaults())
	tc, err := defaults.TransitConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid detection defaults: %w", err)
	}
	detector, err := transit.NewDetector(tc, logger.Named("detector"))
	if err != nil {
		return nil, err
	}

	rc := opts.REST
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	store := opts.Store
	if store == nil {
		store = storage.NewManager(logger)
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		detector:   detector,
		defaults:   defaults,
		store:      store,
		metrics:    opts.Metrics,
		version:    opts.Version,
		started:    time.Now(),
		logger:     logger,
	}

	maxBody := opts.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}
	ctrl.handlers = NewHandlers(ctrl, maxBody)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter(gatherer)
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter(gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/detect", c.handlers.Detect).Methods(http.MethodPost)
	api.HandleFunc("/runs", c.handlers.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/status", c.handlers.Status).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return router
}
