package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chrissnell/exotransit/internal/lightcurve"
	"github.com/chrissnell/exotransit/internal/log"
	"github.com/chrissnell/exotransit/pkg/config"
)

type Config struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
	Table       string
	Target      string
	InputFormat string
	CSVHeader   bool
	TimeColumn  string
	FluxColumn  string
}

func main() {
	var cfg Config

	flag.StringVar(&cfg.Host, "host", "localhost", "Database host")
	flag.IntVar(&cfg.Port, "port", 5432, "Database port")
	flag.StringVar(&cfg.Database, "database", "exotransit", "Database name")
	flag.StringVar(&cfg.User, "user", "postgres", "Database user")
	flag.StringVar(&cfg.Password, "password", "", "Database password")
	flag.StringVar(&cfg.SSLMode, "sslmode", "disable", "SSL mode (disable, require, etc)")
	flag.StringVar(&cfg.Table, "table", config.DefaultSampleTable, "Sample table, optionally schema-qualified")
	flag.StringVar(&cfg.Target, "target", "", "Target name (defaults to the file name; only valid with a single file)")
	flag.StringVar(&cfg.InputFormat, "input-format", "auto", "Input format: auto, text or csv")
	flag.BoolVar(&cfg.CSVHeader, "csv-header", false, "CSV input has a header row")
	flag.StringVar(&cfg.TimeColumn, "time-column", "time", "CSV header name of the time column")
	flag.StringVar(&cfg.FluxColumn, "flux-column", "flux", "CSV header name of the flux column")
	debug := flag.Bool("debug", false, "Turn on debugging output")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] light-curve files...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.Target != "" && len(files) > 1 {
		log.Fatalf("-target can only be used with a single file")
	}

	connStr := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)

	ctx := context.Background()
	src, err := lightcurve.NewPostgresSource(ctx, connStr, cfg.Table, log.Named("import"))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer src.Close()

	log.Infof("Connected to database %s@%s:%d", cfg.Database, cfg.Host, cfg.Port)

	if err := src.EnsureTable(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	opts := lightcurve.Options{
		Format:     cfg.InputFormat,
		CSVHeader:  cfg.CSVHeader,
		TimeColumn: cfg.TimeColumn,
		FluxColumn: cfg.FluxColumn,
	}

	start := time.Now()
	var total int64
	for _, path := range files {
		samples, err := lightcurve.ReadFile(path, opts)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}

		target := cfg.Target
		if target == "" {
			target = lightcurve.Label(path)
		}

		n, err := src.Import(ctx, target, samples)
		if err != nil {
			log.Fatalf("%v", err)
		}
		total += n
	}

	log.Infof("Import completed: %d samples from %d files in %v", total, len(files), time.Since(start).Round(time.Millisecond))
}
