package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/exotransit/internal/app"
	"github.com/chrissnell/exotransit/internal/log"
	"github.com/chrissnell/exotransit/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// overrides holds the command-line values that replace config fields
type overrides struct {
	sections      int
	gradFilter    float64
	step          float64
	maxAttempts   int
	maxGradFilter float64
	edgePolicy    string
	timeout       string
	format        string
	inputFormat   string
	workers       int
	plot          bool
	plotDir       string
	calendar      bool
}

func main() {
	var o overrides

	cfgFile := flag.String("config", "", "Path to YAML configuration file (defaults are used when empty)")
	debug := flag.Bool("debug", false, "Turn on debugging output, including every search attempt")
	showVersion := flag.Bool("version", false, "Show version and exit")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of processing light curves")

	flag.IntVar(&o.sections, "sections", 0, "Number of median-smoothing sections")
	flag.Float64Var(&o.gradFilter, "grad-filter", 0, "Initial gradient threshold multiplier")
	flag.Float64Var(&o.step, "step", 0, "Threshold multiplier increment after a failed validation")
	flag.IntVar(&o.maxAttempts, "max-attempts", 0, "Maximum thresholds to try (0 = unbounded)")
	flag.Float64Var(&o.maxGradFilter, "max-grad-filter", 0, "Maximum threshold multiplier (0 = unbounded)")
	flag.StringVar(&o.edgePolicy, "edge-policy", "", "Runs touching the curve edge: fail, clamp or discard")
	flag.StringVar(&o.timeout, "timeout", "", "Per light curve detection timeout, e.g. 30s")
	flag.StringVar(&o.format, "format", "", "Report format: table, csv, json or msgpack")
	flag.StringVar(&o.inputFormat, "input-format", "", "Input format: auto, text or csv")
	flag.IntVar(&o.workers, "workers", 0, "Light curves processed in parallel")
	flag.BoolVar(&o.plot, "plot", false, "Write a PNG plot per light curve")
	flag.StringVar(&o.plotDir, "plot-dir", "", "Directory for PNG plots")
	flag.BoolVar(&o.calendar, "calendar", false, "Show t0 as a UTC calendar date")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [light-curve files or targets...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("exotransit %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfgData, err := loadConfig(*cfgFile, o, set)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	application := app.New(cfgData, log.GetSugaredLogger(), os.Stdout, version)

	if *serve {
		if err := application.Serve(context.Background()); err != nil {
			log.Errorf("Application error: %v", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 && cfgData.Source.TimescaleDB == nil {
		flag.Usage()
		os.Exit(2)
	}

	if err := application.RunBatch(context.Background(), flag.Args()); err != nil {
		if errors.Is(err, app.ErrDetectionsFailed) {
			log.Warnf("%v", err)
			os.Exit(3)
		}
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string, o overrides, set map[string]bool) (*config.ConfigData, error) {
	cfgData := &config.ConfigData{}

	if cfgFile != "" {
		filename, _ := filepath.Abs(cfgFile)
		provider := config.NewYAMLProvider(filename)
		defer provider.Close()

		var err error
		cfgData, err = provider.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
		}
	}

	applyOverrides(cfgData, o, set)
	cfgData.ApplyDefaults()
	if err := cfgData.Validate(); err != nil {
		return nil, err
	}
	return cfgData, nil
}

// applyOverrides copies every explicitly set flag into the config
func applyOverrides(c *config.ConfigData, o overrides, set map[string]bool) {
	if set["sections"] {
		c.Detection.NumSections = o.sections
	}
	if set["grad-filter"] {
		c.Detection.InitialGradFilter = config.Float64(o.gradFilter)
	}
	if set["step"] {
		c.Detection.RetryStep = o.step
	}
	if set["max-attempts"] {
		c.Detection.MaxAttempts = config.Int(o.maxAttempts)
	}
	if set["max-grad-filter"] {
		c.Detection.MaxGradFilter = o.maxGradFilter
	}
	if set["edge-policy"] {
		c.Detection.EdgePolicy = o.edgePolicy
	}
	if set["timeout"] {
		c.Detection.Timeout = o.timeout
	}
	if set["format"] {
		c.Report.Format = o.format
	}
	if set["input-format"] {
		c.Input.Format = o.inputFormat
	}
	if set["workers"] {
		c.Workers = o.workers
	}
	if set["plot"] {
		c.Plot.Enabled = o.plot
	}
	if set["plot-dir"] {
		c.Plot.OutputDir = o.plotDir
	}
	if set["calendar"] {
		c.Report.ShowCalendar = o.calendar
	}
}
