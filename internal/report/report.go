// Package report renders detected transits as a table, CSV, JSON or MessagePack.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/vmihailenco/msgpack/v5"
)

// CalendarLayout formats t0 as a UTC calendar time
const CalendarLayout = "2006-01-02 15:04:05"

// Options controls the rendering
type Options struct {
	Format string

	// TimeOffset is added to light-curve times to get Julian dates
	TimeOffset   float64
	ShowCalendar bool
}

// Report is the outcome of one light curve
type Report struct {
	Label      string
	Events     []transit.Event
	GradFilter float64
	Attempts   int
	Err        error
}

// NewReport builds a Report from a detection result or error
func NewReport(label string, result *transit.Result, err error) Report {
	rep := Report{Label: label, Err: err}
	if result != nil {
		rep.Events = result.Events
		rep.GradFilter = result.GradFilter
		rep.Attempts = len(result.Attempts)
	}
	return rep
}

// Calendar converts a light-curve time to UTC using the Julian date offset
func Calendar(t, offset float64) time.Time {
	return julian.JDToTime(t + offset).UTC()
}

type row struct {
	Number int `json:"transit"`
	transit.Event
	T0UTC string `json:"t0_utc,omitempty"`
}

type document struct {
	Label      string  `json:"label"`
	GradFilter float64 `json:"grad_filter,omitempty"`
	Attempts   int     `json:"attempts,omitempty"`
	Transits   []row   `json:"transits"`
	Error      string  `json:"error,omitempty"`
}

// Writer writes one report after another to the same stream
type Writer struct {
	out  io.Writer
	opts Options

	csv         *csv.Writer
	wroteHeader bool
}

// NewWriter returns a Writer for the given format
func NewWriter(out io.Writer, opts Options) (*Writer, error) {
	w := &Writer{out: out, opts: opts}
	switch opts.Format {
	case "", "table":
		w.opts.Format = "table"
	case "csv":
		w.csv = csv.NewWriter(out)
	case "json", "msgpack":
	default:
		return nil, fmt.Errorf("unknown report format %q", opts.Format)
	}
	return w, nil
}

// Write renders one report
func (w *Writer) Write(rep Report) error {
	switch w.opts.Format {
	case "csv":
		return w.writeCSV(rep)
	case "json":
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(w.document(rep))
	case "msgpack":
		enc := msgpack.NewEncoder(w.out)
		enc.SetCustomStructTag("json")
		return enc.Encode(w.document(rep))
	default:
		return w.writeTable(rep)
	}
}

// Flush writes any buffered output
func (w *Writer) Flush() error {
	if w.csv != nil {
		w.csv.Flush()
		return w.csv.Error()
	}
	return nil
}

func (w *Writer) document(rep Report) document {
	doc := document{
		Label:      rep.Label,
		GradFilter: rep.GradFilter,
		Attempts:   rep.Attempts,
		Transits:   make([]row, len(rep.Events)),
	}
	if rep.Err != nil {
		doc.Error = rep.Err.Error()
	}
	for i, ev := range rep.Events {
		doc.Transits[i] = row{Number: i + 1, Event: ev}
		if w.opts.ShowCalendar {
			doc.Transits[i].T0UTC = Calendar(ev.T0, w.opts.TimeOffset).Format(CalendarLayout)
		}
	}
	return doc
}

func (w *Writer) writeTable(rep Report) error {
	if rep.Err != nil {
		_, err := fmt.Fprintf(w.out, "%s: detection failed: %v\n\n", rep.Label, rep.Err)
		return err
	}

	if _, err := fmt.Fprintf(w.out, "%s: %d transits (grad filter %.2f, %d attempts)\n",
		rep.Label, len(rep.Events), rep.GradFilter, rep.Attempts); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := "#\ttI\ttII\ttIV\ttIII\tt0\t"
	if w.opts.ShowCalendar {
		header += "t0 (UTC)\t"
	}
	fmt.Fprintln(tw, header)

	for _, r := range w.document(rep).Transits {
		line := fmt.Sprintf("%d\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t", r.Number, r.T1, r.T2, r.T4, r.T3, r.T0)
		if w.opts.ShowCalendar {
			line += r.T0UTC + "\t"
		}
		fmt.Fprintln(tw, line)
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w.out)
	return err
}

func (w *Writer) writeCSV(rep Report) error {
	if !w.wroteHeader {
		header := []string{"label", "transit", "tI", "tII", "tIV", "tIII", "t0"}
		if w.opts.ShowCalendar {
			header = append(header, "t0_utc")
		}
		if err := w.csv.Write(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}

	for _, r := range w.document(rep).Transits {
		record := []string{
			rep.Label,
			strconv.Itoa(r.Number),
			formatFloat(r.T1),
			formatFloat(r.T2),
			formatFloat(r.T4),
			formatFloat(r.T3),
			formatFloat(r.T0),
		}
		if w.opts.ShowCalendar {
			record = append(record, r.T0UTC)
		}
		if err := w.csv.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
