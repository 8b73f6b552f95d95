// Package lightcurve loads raw (time, flux) samples from text files, CSV
// files and a Postgres/TimescaleDB table.
package lightcurve

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chrissnell/exotransit/internal/transit"
)

// Options selects and configures the file parser
type Options struct {
	// Format is auto, text or csv. auto picks csv for a .csv extension.
	Format string

	CSVHeader  bool
	TimeColumn string
	FluxColumn string
}

// ParseError reports the input line that could not be read
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrNoSamples means the input held no usable rows
var ErrNoSamples = errors.New("no samples in input")

// Label derives a light-curve name from its file path
func Label(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadFile loads the samples in path
func ReadFile(path string, opts Options) ([]transit.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open light curve: %w", err)
	}
	defer f.Close()

	format := opts.Format
	if format == "" || format == "auto" {
		format = "text"
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = "csv"
		}
	}

	var samples []transit.Sample
	switch format {
	case "text":
		samples, err = ParseText(f)
	case "csv":
		samples, err = ParseCSV(f, opts)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// ParseText reads whitespace-separated "time flux" rows. Blank lines and
// lines starting with # are skipped, as are rows whose flux is not finite.
// Extra columns are ignored.
func ParseText(r io.Reader) ([]transit.Sample, error) {
	var samples []transit.Sample

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("expected time and flux, got %d field(s)", len(fields))}
		}

		s, ok, err := parseSample(fields[0], fields[1])
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if ok {
			samples = append(samples, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read light curve: %w", err)
	}

	return checkSamples(samples)
}

// ParseCSV reads comma-separated rows. With a header the time and flux
// columns are found by name, otherwise the first two columns are used.
func ParseCSV(r io.Reader, opts Options) ([]transit.Sample, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	timeIdx, fluxIdx := 0, 1

	if opts.CSVHeader {
		header, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoSamples
			}
			return nil, fmt.Errorf("could not read csv header: %w", err)
		}
		line, _ := reader.FieldPos(0)

		timeIdx, fluxIdx = -1, -1
		for i, name := range header {
			switch strings.TrimSpace(name) {
			case opts.TimeColumn:
				timeIdx = i
			case opts.FluxColumn:
				fluxIdx = i
			}
		}
		if timeIdx < 0 || fluxIdx < 0 {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("header is missing column %q or %q", opts.TimeColumn, opts.FluxColumn)}
		}
	}

	var samples []transit.Sample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if timeIdx >= len(record) || fluxIdx >= len(record) {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("row has %d column(s)", len(record))}
		}

		s, ok, err := parseSample(record[timeIdx], record[fluxIdx])
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if ok {
			samples = append(samples, s)
		}
	}

	return checkSamples(samples)
}

// parseSample returns ok=false for a row with a NaN or infinite flux
func parseSample(timeField, fluxField string) (transit.Sample, bool, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(timeField), 64)
	if err != nil {
		return transit.Sample{}, false, fmt.Errorf("invalid time %q", timeField)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return transit.Sample{}, false, fmt.Errorf("time must be finite, got %q", timeField)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(fluxField), 64)
	if err != nil {
		return transit.Sample{}, false, fmt.Errorf("invalid flux %q", fluxField)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return transit.Sample{}, false, nil
	}

	return transit.Sample{Time: t, Flux: f}, true, nil
}

func checkSamples(samples []transit.Sample) ([]transit.Sample, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if err := CheckOrder(samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// CheckOrder verifies samples are in strictly increasing time order
func CheckOrder(samples []transit.Sample) error {
	for i := 1; i < len(samples); i++ {
		if samples[i].Time <= samples[i-1].Time {
			return fmt.Errorf("samples out of time order at index %d: %g follows %g",
				i, samples[i].Time, samples[i-1].Time)
		}
	}
	return nil
}
