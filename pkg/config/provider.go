package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/exotransit/internal/transit"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, defaults applied and validated
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// Default values for fields left empty in the config file
const (
	DefaultNumSections = 5000
	DefaultTimeout     = "30s"
	DefaultWorkers     = 4
	DefaultPlotWidth   = 1200
	DefaultPlotHeight  = 600
	DefaultRESTPort    = 8080
	DefaultSampleTable = "light_curve_samples"

	// DefaultTimeOffset converts Kepler BKJD times to Julian dates
	DefaultTimeOffset = 2454833.0
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Detection DetectionData   `yaml:"detection" json:"detection"`
	Input     InputData       `yaml:"input" json:"input"`
	Report    ReportData      `yaml:"report" json:"report"`
	Plot      PlotData        `yaml:"plot" json:"plot"`
	Storage   StorageData     `yaml:"storage" json:"storage,omitempty"`
	Source    SourceData      `yaml:"source" json:"source,omitempty"`
	REST      *RESTServerData `yaml:"rest,omitempty" json:"rest,omitempty"`
	Workers   int             `yaml:"workers" json:"workers"`
}

// DetectionData holds the transit search parameters. Unset fields (zero, or
// nil for the pointer fields) mean "use the default" so a partial section can
// be merged over another. InitialGradFilter and MaxAttempts are pointers
// because zero is a meaningful value for both: a zero starting filter, and no
// attempt cap.
type DetectionData struct {
	NumSections       int      `yaml:"num_sections" json:"num_sections,omitempty" msgpack:"num_sections,omitempty"`
	InitialGradFilter *float64 `yaml:"initial_grad_filter" json:"initial_grad_filter,omitempty" msgpack:"initial_grad_filter,omitempty"`
	RetryStep         float64  `yaml:"retry_step" json:"retry_step,omitempty" msgpack:"retry_step,omitempty"`
	MaxAttempts       *int     `yaml:"max_attempts" json:"max_attempts,omitempty" msgpack:"max_attempts,omitempty"`
	MaxGradFilter     float64  `yaml:"max_grad_filter" json:"max_grad_filter,omitempty" msgpack:"max_grad_filter,omitempty"`
	EdgePolicy        string   `yaml:"edge_policy" json:"edge_policy,omitempty" msgpack:"edge_policy,omitempty"`
	Timeout           string   `yaml:"timeout" json:"timeout,omitempty" msgpack:"timeout,omitempty"`
}

// Float64 returns a pointer to v, for the optional DetectionData fields
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for the optional DetectionData fields
func Int(v int) *int { return &v }

// InputData controls how light-curve files are parsed
type InputData struct {
	Format     string `yaml:"format" json:"format"`
	CSVHeader  bool   `yaml:"csv_header" json:"csv_header"`
	TimeColumn string `yaml:"time_column" json:"time_column,omitempty"`
	FluxColumn string `yaml:"flux_column" json:"flux_column,omitempty"`
}

// ReportData controls the transit table output
type ReportData struct {
	Format       string  `yaml:"format" json:"format"`
	TimeOffset   float64 `yaml:"time_offset" json:"time_offset"`
	ShowCalendar bool    `yaml:"show_calendar" json:"show_calendar"`
}

// PlotData controls PNG rendering of each light curve
type PlotData struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir,omitempty"`
	Width     int    `yaml:"width" json:"width,omitempty"`
	Height    int    `yaml:"height" json:"height,omitempty"`
}

// StorageData holds the configuration for the run storage backends
type StorageData struct {
	SQLite      *SQLiteData      `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `yaml:"timescaledb,omitempty" json:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `yaml:"path" json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
}

// SourceData points at a database table of raw samples
type SourceData struct {
	TimescaleDB *SampleTableData `yaml:"timescaledb,omitempty" json:"timescaledb,omitempty"`
}

type SampleTableData struct {
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
	Table            string `yaml:"table" json:"table"`
}

type RESTServerData struct {
	Cert       string `yaml:"cert,omitempty" json:"cert,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	Port       int    `yaml:"port,omitempty" json:"port,omitempty"`
	ListenAddr string `yaml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
}

// Default returns a config with every default applied
func Default() *ConfigData {
	c := &ConfigData{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in every unset field
func (c *ConfigData) ApplyDefaults() {
	c.Detection = c.Detection.Merge(DetectionDefaults())

	if c.Input.Format == "" {
		c.Input.Format = "auto"
	}
	if c.Input.TimeColumn == "" {
		c.Input.TimeColumn = "time"
	}
	if c.Input.FluxColumn == "" {
		c.Input.FluxColumn = "flux"
	}

	if c.Report.Format == "" {
		c.Report.Format = "table"
	}
	if c.Report.TimeOffset == 0 {
		c.Report.TimeOffset = DefaultTimeOffset
	}

	if c.Plot.OutputDir == "" {
		c.Plot.OutputDir = "."
	}
	if c.Plot.Width == 0 {
		c.Plot.Width = DefaultPlotWidth
	}
	if c.Plot.Height == 0 {
		c.Plot.Height = DefaultPlotHeight
	}

	if c.REST != nil && c.REST.Port == 0 {
		c.REST.Port = DefaultRESTPort
	}

	if c.Source.TimescaleDB != nil && c.Source.TimescaleDB.Table == "" {
		c.Source.TimescaleDB.Table = DefaultSampleTable
	}

	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

// Validate checks every section; failures wrap transit.ErrInvalidConfig
func (c *ConfigData) Validate() error {
	if _, err := c.Detection.TransitConfig(); err != nil {
		return err
	}

	switch c.Input.Format {
	case "auto", "text", "csv":
	default:
		return invalidf("input format must be auto, text or csv, got %q", c.Input.Format)
	}

	switch c.Report.Format {
	case "table", "csv", "json", "msgpack":
	default:
		return invalidf("report format must be table, csv, json or msgpack, got %q", c.Report.Format)
	}

	if c.Plot.Enabled && (c.Plot.Width < 100 || c.Plot.Height < 100) {
		return invalidf("plot size must be at least 100x100, got %dx%d", c.Plot.Width, c.Plot.Height)
	}

	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		return invalidf("storage.sqlite.path is required")
	}
	if c.Storage.TimescaleDB != nil && c.Storage.TimescaleDB.ConnectionString == "" {
		return invalidf("storage.timescaledb.connection_string is required")
	}
	if c.Source.TimescaleDB != nil && c.Source.TimescaleDB.ConnectionString == "" {
		return invalidf("source.timescaledb.connection_string is required")
	}

	if c.REST != nil && (c.REST.Port < 1 || c.REST.Port > 65535) {
		return invalidf("rest port must be between 1 and 65535, got %d", c.REST.Port)
	}
	if c.REST != nil && (c.REST.Cert == "") != (c.REST.Key == "") {
		return invalidf("rest cert and key must be set together")
	}

	if c.Workers < 1 {
		return invalidf("workers must be >= 1, got %d", c.Workers)
	}

	return nil
}

// DetectionDefaults returns the reference detection parameters
func DetectionDefaults() DetectionData {
	return DetectionData{
		NumSections:       DefaultNumSections,
		InitialGradFilter: Float64(transit.DefaultGradFilter),
		RetryStep:         transit.DefaultRetryStep,
		MaxAttempts:       Int(transit.DefaultMaxAttempts),
		EdgePolicy:        string(transit.EdgeFail),
		Timeout:           DefaultTimeout,
	}
}

// Merge returns d with every unset field taken from base
func (d DetectionData) Merge(base DetectionData) DetectionData {
	if d.NumSections == 0 {
		d.NumSections = base.NumSections
	}
	if d.InitialGradFilter == nil {
		d.InitialGradFilter = base.InitialGradFilter
	}
	if d.RetryStep == 0 {
		d.RetryStep = base.RetryStep
	}
	if d.MaxAttempts == nil {
		d.MaxAttempts = base.MaxAttempts
	}
	if d.MaxGradFilter == 0 {
		d.MaxGradFilter = base.MaxGradFilter
	}
	if d.EdgePolicy == "" {
		d.EdgePolicy = base.EdgePolicy
	}
	if d.Timeout == "" {
		d.Timeout = base.Timeout
	}
	return d
}

// TransitConfig converts the section into validated detector parameters
func (d DetectionData) TransitConfig() (transit.Config, error) {
	policy, err := transit.ParseEdgePolicy(d.EdgePolicy)
	if err != nil {
		return transit.Config{}, err
	}

	var timeout time.Duration
	if d.Timeout != "" {
		timeout, err = time.ParseDuration(d.Timeout)
		if err != nil {
			return transit.Config{}, invalidf("detection timeout %q: %v", d.Timeout, err)
		}
	}

	var initialFilter float64
	if d.InitialGradFilter != nil {
		initialFilter = *d.InitialGradFilter
	}
	var maxAttempts int
	if d.MaxAttempts != nil {
		maxAttempts = *d.MaxAttempts
	}

	cfg := transit.Config{
		NumSections: d.NumSections,
		Search: transit.SearchParams{
			InitialFilter: initialFilter,
			Step:          d.RetryStep,
			MaxAttempts:   maxAttempts,
			MaxFilter:     d.MaxGradFilter,
			EdgePolicy:    policy,
		},
		Timeout: timeout,
	}
	if err := cfg.Validate(); err != nil {
		return transit.Config{}, err
	}
	return cfg, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", transit.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
