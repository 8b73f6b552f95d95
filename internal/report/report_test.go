package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleReport() Report {
	return Report{
		Label: "kplr006922244",
		Events: []transit.Event{
			{T1: 3, T2: 4, T4: 6, T3: 5, T0: 4.5},
			{T1: 7, T2: 8, T4: 10, T3: 9, T0: 8.5},
		},
		GradFilter: 1.5,
		Attempts:   3,
	}
}

func TestCalendar(t *testing.T) {
	got := Calendar(0, 2454833)
	want := time.Date(2009, time.January, 1, 12, 0, 0, 0, time.UTC)
	if d := got.Sub(want); d < -time.Second || d > time.Second {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{Format: "table", TimeOffset: 2454833, ShowCalendar: true})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Write(Report{Label: "flat", Err: errors.New("no boundary candidates")}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"kplr006922244: 2 transits (grad filter 1.50, 3 attempts)",
		"tIII",
		"t0 (UTC)",
		"4.50000",
		"10.00000",
		Calendar(4.5, 2454833).Format(CalendarLayout),
		"flat: detection failed: no boundary candidates",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{Format: "csv"})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := w.Write(sampleReport()); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"label,transit,tI,tII,tIV,tIII,t0",
		"kplr006922244,1,3,4,6,5,4.5",
		"kplr006922244,2,7,8,10,9,8.5",
		"kplr006922244,1,3,4,6,5,4.5",
		"kplr006922244,2,7,8,10,9,8.5",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{Format: "json"})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got struct {
		Label    string `json:"label"`
		Transits []struct {
			Transit int     `json:"transit"`
			TI      float64 `json:"tI"`
			T0      float64 `json:"t0"`
		} `json:"transits"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Label != "kplr006922244" || len(got.Transits) != 2 {
		t.Fatalf("unexpected document: %+v", got)
	}
	if got.Transits[1].Transit != 2 || got.Transits[1].TI != 7 || got.Transits[1].T0 != 8.5 {
		t.Errorf("unexpected second transit: %+v", got.Transits[1])
	}
}

func TestWriteMsgPack(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{Format: "msgpack"})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Write(sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got map[string]any
	if err := msgpack.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid msgpack: %v", err)
	}
	if got["label"] != "kplr006922244" {
		t.Errorf("expected label kplr006922244, got %v", got["label"])
	}
}

func TestNewWriterUnknownFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Errorf("expected an error for an unknown format")
	}
}
