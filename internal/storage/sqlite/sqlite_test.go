package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/exotransit/internal/storage"
	"github.com/chrissnell/exotransit/internal/transit"
	"github.com/google/go-cmp/cmp"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(label string, created time.Time) *storage.Run {
	run := storage.NewRun(label, 10000, transit.DefaultConfig(), &transit.Result{
		Events:          []transit.Event{{T1: 3, T2: 4, T4: 6, T3: 5, T0: 4.5}},
		GradFilter:      1.5,
		MeanAbsGradient: 0.25,
		Attempts:        []transit.Attempt{{Filter: 0.5, Starts: 3, Ends: 2}, {Filter: 1, Starts: 1, Ends: 1, Validated: true}},
	}, nil)
	run.CreatedAt = created
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	run := testRun("kplr006922244", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveFailedRun(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	detectErr := &transit.DetectionFailedError{Reason: "no boundary candidates above threshold", LastFilter: 2.5, Attempts: 5}
	run := storage.NewRun("flat", 500, transit.DefaultConfig(), nil, detectErr)
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != storage.StatusFailed {
		t.Errorf("expected status %q, got %q", storage.StatusFailed, got.Status)
	}
	if got.GradFilter != 2.5 {
		t.Errorf("expected last grad filter 2.5, got %v", got.GradFilter)
	}
	if got.Error != detectErr.Error() {
		t.Errorf("expected error %q, got %q", detectErr.Error(), got.Error)
	}
	if len(got.Events) != 0 {
		t.Errorf("expected no events, got %v", got.Events)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	labels := []string{"first", "second", "third"}
	for i, label := range labels {
		if err := s.SaveRun(ctx, testRun(label, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	var got []string
	for _, r := range runs {
		got = append(got, r.Label)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	runs, err = s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := New(ctx, path, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	run := testRun("kplr006922244", time.Now().UTC())
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	s.Close()

	s, err = New(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if _, err := s.GetRun(ctx, run.ID); err != nil {
		t.Errorf("expected run to survive reopen: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
