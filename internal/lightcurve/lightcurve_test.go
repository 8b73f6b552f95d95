package lightcurve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/google/go-cmp/cmp"
)

func TestParseText(t *testing.T) {
	input := `# Kepler light curve
# time flux

131.512 1.0002
131.533   0.9998  0.0001
131.553	nan

131.574 1.0001
`
	samples, err := ParseText(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}

	want := []transit.Sample{
		{Time: 131.512, Flux: 1.0002},
		{Time: 131.533, Flux: 0.9998},
		{Time: 131.574, Flux: 1.0001},
	}
	if diff := cmp.Diff(want, samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{name: "single column", input: "1 1.0\n2\n", wantLine: 2},
		{name: "bad flux", input: "1 1.0\n2 1.0\n3 abc\n", wantLine: 3},
		{name: "bad time", input: "# header\nx 1.0\n", wantLine: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(strings.NewReader(tt.input))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Line != tt.wantLine {
				t.Errorf("expected line %d, got %d", tt.wantLine, parseErr.Line)
			}
		})
	}

	if _, err := ParseText(strings.NewReader("# nothing\n\n")); !errors.Is(err, ErrNoSamples) {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
	if _, err := ParseText(strings.NewReader("2 1.0\n1 1.0\n")); err == nil {
		t.Errorf("expected an error for samples out of time order")
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
	}{
		{
			name:  "positional",
			input: "1.0,0.99\n2.0,0.98\n",
		},
		{
			name:  "named columns",
			input: "cadence,flux,time\n7,0.99,1.0\n8,0.98,2.0\n",
			opts:  Options{CSVHeader: true, TimeColumn: "time", FluxColumn: "flux"},
		},
		{
			name:  "comments and spaces",
			input: "# exported\ntime, flux\n1.0, 0.99\n2.0, 0.98\n",
			opts:  Options{CSVHeader: true, TimeColumn: "time", FluxColumn: "flux"},
		},
	}

	want := []transit.Sample{{Time: 1, Flux: 0.99}, {Time: 2, Flux: 0.98}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := ParseCSV(strings.NewReader(tt.input), tt.opts)
			if err != nil {
				t.Fatalf("ParseCSV failed: %v", err)
			}
			if diff := cmp.Diff(want, samples); diff != "" {
				t.Errorf("samples mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("time,sap_flux\n1,1\n"), Options{CSVHeader: true, TimeColumn: "time", FluxColumn: "flux"})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Line != 1 {
		t.Errorf("expected line 1, got %d", parseErr.Line)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	textPath := filepath.Join(dir, "kplr006922244.txt")
	if err := os.WriteFile(textPath, []byte("1 0.5\n2 0.6\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	csvPath := filepath.Join(dir, "kplr006922244.csv")
	if err := os.WriteFile(csvPath, []byte("1,0.5\n2,0.6\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	want := []transit.Sample{{Time: 1, Flux: 0.5}, {Time: 2, Flux: 0.6}}
	for _, path := range []string{textPath, csvPath} {
		samples, err := ReadFile(path, Options{Format: "auto"})
		if err != nil {
			t.Fatalf("ReadFile(%s) failed: %v", path, err)
		}
		if diff := cmp.Diff(want, samples); diff != "" {
			t.Errorf("%s: samples mismatch (-want +got):\n%s", path, diff)
		}
	}

	if got := Label(textPath); got != "kplr006922244" {
		t.Errorf("expected label kplr006922244, got %q", got)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.txt"), Options{}); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestTableIdent(t *testing.T) {
	tests := map[string]string{
		"samples":             `"samples"`,
		"kepler.light_curves": `"kepler"."light_curves"`,
	}
	for in, want := range tests {
		if got := tableIdent(in).Sanitize(); got != want {
			t.Errorf("tableIdent(%q): expected %s, got %s", in, want, got)
		}
	}
}
