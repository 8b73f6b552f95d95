// Package app wires configuration, inputs, the detector and its sinks into
// the batch and server modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chrissnell/exotransit/internal/controllers/restserver"
	"github.com/chrissnell/exotransit/internal/lightcurve"
	"github.com/chrissnell/exotransit/internal/metrics"
	"github.com/chrissnell/exotransit/internal/plot"
	"github.com/chrissnell/exotransit/internal/report"
	"github.com/chrissnell/exotransit/internal/storage"
	"github.com/chrissnell/exotransit/internal/storage/sqlite"
	"github.com/chrissnell/exotransit/internal/storage/timescaledb"
	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/chrissnell/exotransit/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDetectionsFailed is returned by RunBatch when at least one light curve
// produced no valid transit set
var ErrDetectionsFailed = errors.New("one or more light curves failed detection")

// App represents the main application
type App struct {
	cfg     *config.ConfigData
	logger  *zap.SugaredLogger
	out     io.Writer
	version string
}

// New creates a new application instance. Reports are written to out.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger, out io.Writer, version string) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		version: version,
	}
}

// job is one light curve to process
type job struct {
	label string
	load  func(ctx context.Context) ([]transit.Sample, error)
}

// outcome is the processed result of one job
type outcome struct {
	report report.Report
	run    *storage.Run
}

// RunBatch detects transits in every input and writes one report per input,
// in input order. Inputs are file paths, or target names when a sample
// source database is configured (all targets when inputs is empty).
func (a *App) RunBatch(ctx context.Context, inputs []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tc, err := a.cfg.Detection.TransitConfig()
	if err != nil {
		return err
	}
	detector, err := transit.NewDetector(tc, a.logger.Named("detector"))
	if err != nil {
		return err
	}

	writer, err := report.NewWriter(a.out, report.Options{
		Format:       a.cfg.Report.Format,
		TimeOffset:   a.cfg.Report.TimeOffset,
		ShowCalendar: a.cfg.Report.ShowCalendar,
	})
	if err != nil {
		return err
	}

	jobs, cleanup, err := a.jobs(ctx, inputs)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(jobs) == 0 {
		return fmt.Errorf("no light curves to process")
	}

	store, err := a.newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	storeCtx, stopStore := context.WithCancel(context.Background())
	defer stopStore()

	var wg sync.WaitGroup
	var runChan chan<- *storage.Run
	if store.Enabled() {
		runChan = store.StartStorageEngine(storeCtx, &wg)
	}

	// Queued runs are saved before the backends close, on every return path
	var drainOnce sync.Once
	drainStore := func() {
		drainOnce.Do(func() {
			if runChan != nil {
				close(runChan)
			}
			wg.Wait()
		})
	}
	defer drainStore()

	outcomes := make([]outcome, len(jobs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)

	for i, j := range jobs {
		g.Go(func() error {
			outcomes[i] = a.process(gctx, detector, j)
			a.logger.Infof("processed %d/%d light curves", done.Add(1), len(jobs))
			return gctx.Err()
		})
	}
	waitErr := g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.report.Err != nil {
			failed++
		}
		if runChan != nil && o.run != nil {
			runChan <- o.run
		}
		if err := writer.Write(o.report); err != nil {
			return fmt.Errorf("could not write report: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}

	drainStore()

	if waitErr != nil {
		return waitErr
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrDetectionsFailed, failed, len(jobs))
	}
	return nil
}

// process loads, detects and plots one light curve. Failures are carried in
// the report rather than returned.
func (a *App) process(ctx context.Context, detector *transit.Detector, j job) outcome {
	samples, err := j.load(ctx)
	if err != nil {
		a.logger.Errorf("%s: %v", j.label, err)
		return outcome{report: report.Report{Label: j.label, Err: err}}
	}

	result, err := detector.Detect(ctx, samples)
	if err != nil {
		a.logger.Warnf("%s: %v", j.label, err)
	}

	if a.cfg.Plot.Enabled {
		path, perr := plot.WriteFile(a.cfg.Plot.OutputDir, j.label, samples, result, plot.Options{
			Width:  a.cfg.Plot.Width,
			Height: a.cfg.Plot.Height,
		})
		if perr != nil {
			a.logger.Errorf("%s: could not plot: %v", j.label, perr)
		} else {
			a.logger.Debugf("%s: wrote %s", j.label, path)
		}
	}

	return outcome{
		report: report.NewReport(j.label, result, err),
		run:    storage.NewRun(j.label, len(samples), detector.Config(), result, err),
	}
}

// jobs resolves the inputs into loaders
func (a *App) jobs(ctx context.Context, inputs []string) ([]job, func(), error) {
	if a.cfg.Source.TimescaleDB == nil {
		opts := lightcurve.Options{
			Format:     a.cfg.Input.Format,
			CSVHeader:  a.cfg.Input.CSVHeader,
			TimeColumn: a.cfg.Input.TimeColumn,
			FluxColumn: a.cfg.Input.FluxColumn,
		}

		jobs := make([]job, len(inputs))
		for i, path := range inputs {
			jobs[i] = job{
				label: lightcurve.Label(path),
				load: func(context.Context) ([]transit.Sample, error) {
					return lightcurve.ReadFile(path, opts)
				},
			}
		}
		return jobs, func() {}, nil
	}

	src, err := lightcurve.NewPostgresSource(ctx, a.cfg.Source.TimescaleDB.ConnectionString,
		a.cfg.Source.TimescaleDB.Table, a.logger.Named("source"))
	if err != nil {
		return nil, nil, err
	}

	targets := inputs
	if len(targets) == 0 {
		if targets, err = src.Targets(ctx); err != nil {
			src.Close()
			return nil, nil, err
		}
	}

	jobs := make([]job, len(targets))
	for i, target := range targets {
		jobs[i] = job{
			label: target,
			load: func(ctx context.Context) ([]transit.Sample, error) {
				return src.Load(ctx, target)
			},
		}
	}
	return jobs, src.Close, nil
}

// newStore opens every configured storage backend
func (a *App) newStore(ctx context.Context) (*storage.Manager, error) {
	var backends []storage.Backend

	if sc := a.cfg.Storage.SQLite; sc != nil {
		s, err := sqlite.New(ctx, sc.Path, a.logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		backends = append(backends, s)
	}

	if tc := a.cfg.Storage.TimescaleDB; tc != nil {
		t, err := timescaledb.New(ctx, tc.ConnectionString, a.logger.Named("timescaledb"))
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return nil, err
		}
		backends = append(backends, t)
	}

	return storage.NewManager(a.logger.Named("storage"), backends...), nil
}

// Serve runs the HTTP API and blocks until shutdown
func (a *App) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := a.newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if store.Enabled() {
		store.StartHealthMonitor(ctx, &wg)
	}

	recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("could not register metrics: %w", err)
	}

	rest := config.RESTServerData{Port: config.DefaultRESTPort}
	if a.cfg.REST != nil {
		rest = *a.cfg.REST
	}

	ctrl, err := restserver.NewController(ctx, &wg, restserver.Options{
		REST:      rest,
		Detection: a.cfg.Detection,
		Store:     store,
		Metrics:   recorder,
		Gatherer:  prometheus.DefaultGatherer,
		Version:   a.version,
	}, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	a.logger.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		a.logger.Warn("timed out waiting for workers")
	}
	a.logger.Info("shutdown complete")

	return nil
}
