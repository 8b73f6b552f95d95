package transit

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// stepCurve has a small fall at index 1, real dips at 3-5 and 7-9
func stepCurve() Curve {
	fluxes := []float64{10, 10, 6, 6, 0, 0, 10, 10, 0, 0, 10, 10}
	curve := make(Curve, len(fluxes))
	for i, f := range fluxes {
		curve[i] = Point{Time: float64(i), Flux: f}
	}
	return curve
}

func TestSplitRuns(t *testing.T) {
	tests := []struct {
		name     string
		indices  []int
		expected []Run
	}{
		{name: "empty", indices: nil, expected: nil},
		{name: "single", indices: []int{4}, expected: []Run{{4}}},
		{name: "one run", indices: []int{1, 2, 3}, expected: []Run{{1, 2, 3}}},
		{name: "gaps", indices: []int{1, 2, 5, 6, 9}, expected: []Run{{1, 2}, {5, 6}, {9}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRuns(tt.indices)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("SplitRuns(%v) mismatch (-want +got):\n%s", tt.indices, diff)
			}
		})
	}
}

func TestMeanAbsGradient(t *testing.T) {
	mean, err := MeanAbsGradient(stepCurve())
	if err != nil {
		t.Fatalf("MeanAbsGradient failed: %v", err)
	}
	if math.Abs(mean-40.0/11.0) > 1e-12 {
		t.Errorf("expected 40/11, got %v", mean)
	}

	_, err = MeanAbsGradient(Curve{{Time: 0, Flux: 1}})
	var empty *EmptyCurveError
	if !errors.As(err, &empty) {
		t.Errorf("expected EmptyCurveError, got %v", err)
	}
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name        string
		filter      float64
		wantFalling []Run
		wantRising  []Run
	}{
		{
			name:        "low threshold keeps the small step",
			filter:      0.5,
			wantFalling: []Run{{1}, {3}, {7}},
			wantRising:  []Run{{5}, {9}},
		},
		{
			name:        "high threshold drops it",
			filter:      1.5,
			wantFalling: []Run{{3}, {7}},
			wantRising:  []Run{{5}, {9}},
		},
		{
			name:   "threshold above every gradient",
			filter: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := Segment(stepCurve(), tt.filter)
			if err != nil {
				t.Fatalf("Segment failed: %v", err)
			}
			if diff := cmp.Diff(tt.wantFalling, seg.Falling); diff != "" {
				t.Errorf("falling runs mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRising, seg.Rising); diff != "" {
				t.Errorf("rising runs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentRunContiguity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	curve := make(Curve, 2000)
	for i := range curve {
		curve[i] = Point{
			Time: float64(i),
			Flux: math.Sin(float64(i)/40) + rng.NormFloat64()*0.05,
		}
	}

	for _, filter := range []float64{0.5, 1, 2, 4} {
		seg, err := Segment(curve, filter)
		if err != nil {
			t.Fatalf("Segment failed: %v", err)
		}

		seen := map[int]bool{}
		for _, runs := range [][]Run{seg.Falling, seg.Rising} {
			prevEnd := -1
			for _, run := range runs {
				if len(run) == 0 {
					t.Fatalf("filter %v: empty run", filter)
				}
				if run[0] <= prevEnd+1 && prevEnd >= 0 {
					t.Errorf("filter %v: run %v not separated from previous run ending at %d", filter, run, prevEnd)
				}
				for i := 1; i < len(run); i++ {
					if run[i]-run[i-1] != 1 {
						t.Errorf("filter %v: run %v is not contiguous", filter, run)
					}
				}
				for _, idx := range run {
					if seen[idx] {
						t.Errorf("filter %v: index %d appears in two runs", filter, idx)
					}
					seen[idx] = true
				}
				prevEnd = run[len(run)-1]
			}
		}
	}
}
