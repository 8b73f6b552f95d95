package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/google/go-cmp/cmp"
)

func TestParseYAMLDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte("{}"))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}

	if diff := cmp.Diff(DetectionDefaults(), cfg.Detection); diff != "" {
		t.Errorf("detection defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("expected %d workers, got %d", DefaultWorkers, cfg.Workers)
	}
	if cfg.Report.Format != "table" {
		t.Errorf("expected table report, got %q", cfg.Report.Format)
	}
	if cfg.Report.TimeOffset != DefaultTimeOffset {
		t.Errorf("expected time offset %v, got %v", DefaultTimeOffset, cfg.Report.TimeOffset)
	}
	if cfg.REST != nil {
		t.Errorf("expected no rest section, got %+v", cfg.REST)
	}
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	doc := `
detection:
  num_sections: 2500
  retry_step: 0.25
  max_grad_filter: 10
  edge_policy: clamp
  timeout: 5s
input:
  format: csv
  csv_header: true
  flux_column: pdcsap_flux
report:
  format: json
storage:
  sqlite:
    path: /tmp/runs.db
rest:
  listen_addr: 127.0.0.1
workers: 8
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	provider := NewYAMLProvider(path)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !provider.IsReadOnly() {
		t.Errorf("expected YAML provider to be read-only")
	}
	if cfg.Input.FluxColumn != "pdcsap_flux" || cfg.Input.TimeColumn != "time" {
		t.Errorf("unexpected input columns: %+v", cfg.Input)
	}
	if cfg.REST == nil || cfg.REST.Port != DefaultRESTPort {
		t.Errorf("expected rest port %d, got %+v", DefaultRESTPort, cfg.REST)
	}
	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "/tmp/runs.db" {
		t.Errorf("unexpected sqlite storage: %+v", cfg.Storage.SQLite)
	}

	tc, err := cfg.Detection.TransitConfig()
	if err != nil {
		t.Fatalf("TransitConfig failed: %v", err)
	}
	want := transit.Config{
		NumSections: 2500,
		Search: transit.SearchParams{
			InitialFilter: transit.DefaultGradFilter,
			Step:          0.25,
			MaxAttempts:   transit.DefaultMaxAttempts,
			MaxFilter:     10,
			EdgePolicy:    transit.EdgeClamp,
		},
		Timeout: 5 * time.Second,
	}
	if diff := cmp.Diff(want, tc); diff != "" {
		t.Errorf("transit config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAMLInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "negative step", doc: "detection:\n  retry_step: -1\n"},
		{name: "bad edge policy", doc: "detection:\n  edge_policy: wrap\n"},
		{name: "bad timeout", doc: "detection:\n  timeout: soon\n"},
		{name: "bad report format", doc: "report:\n  format: xml\n"},
		{name: "bad input format", doc: "input:\n  format: fits\n"},
		{name: "negative workers", doc: "workers: -2\n"},
		{name: "cert without key", doc: "rest:\n  cert: server.crt\n"},
		{name: "empty sqlite path", doc: "storage:\n  sqlite: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			if !errors.Is(err, transit.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseYAMLUnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("detection:\n  grad_filter: 2\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
	if errors.Is(err, transit.ErrInvalidConfig) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestParseYAMLExplicitZero(t *testing.T) {
	cfg, err := ParseYAML([]byte("detection:\n  initial_grad_filter: 0\n  max_attempts: 0\n"))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}

	tc, err := cfg.Detection.TransitConfig()
	if err != nil {
		t.Fatalf("TransitConfig failed: %v", err)
	}
	if tc.Search.InitialFilter != 0 {
		t.Errorf("expected initial filter 0, got %v", tc.Search.InitialFilter)
	}
	if tc.Search.MaxAttempts != 0 {
		t.Errorf("expected no attempt cap, got %d", tc.Search.MaxAttempts)
	}
}

func TestDetectionMergeExplicitZero(t *testing.T) {
	override := DetectionData{InitialGradFilter: Float64(0), MaxAttempts: Int(0)}
	got := override.Merge(DetectionDefaults())

	if got.InitialGradFilter == nil || *got.InitialGradFilter != 0 {
		t.Errorf("expected explicit zero initial filter to survive, got %v", got.InitialGradFilter)
	}
	if got.MaxAttempts == nil || *got.MaxAttempts != 0 {
		t.Errorf("expected explicit zero max attempts to survive, got %v", got.MaxAttempts)
	}

	inherited := DetectionData{}.Merge(DetectionDefaults())
	if *inherited.MaxAttempts != transit.DefaultMaxAttempts {
		t.Errorf("expected unset max attempts to inherit %d, got %d", transit.DefaultMaxAttempts, *inherited.MaxAttempts)
	}
}

func TestDetectionMerge(t *testing.T) {
	override := DetectionData{NumSections: 100, EdgePolicy: "discard"}
	got := override.Merge(DetectionDefaults())

	want := DetectionDefaults()
	want.NumSections = 100
	want.EdgePolicy = "discard"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}
