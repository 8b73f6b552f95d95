package transit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func uniformSamples(fluxes ...float64) []Sample {
	samples := make([]Sample, len(fluxes))
	for i, f := range fluxes {
		samples[i] = Sample{Time: float64(i), Flux: f}
	}
	return samples
}

func TestSmoothBinCount(t *testing.T) {
	samples := make([]Sample, 997)
	for i := range samples {
		samples[i] = Sample{Time: float64(i) * 0.02, Flux: float64(i % 7)}
	}

	for _, n := range []int{1, 2, 3, 10, 100, 498, 997} {
		curve, err := Smooth(samples, n)
		if err != nil {
			t.Fatalf("Smooth(%d) failed: %v", n, err)
		}
		if len(curve) != n {
			t.Errorf("Smooth(%d): expected %d points, got %d", n, n, len(curve))
		}
	}
}

func TestSmoothDeterministic(t *testing.T) {
	samples := uniformSamples(3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7)

	first, err := Smooth(samples, 4)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}
	second, err := Smooth(samples, 4)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Smooth calls differ (-first +second):\n%s", diff)
	}

	// input must not be reordered by the in-place median
	if samples[0].Flux != 3 || samples[1].Flux != 1 {
		t.Errorf("Smooth modified its input: %v", samples[:2])
	}
}

func TestSmoothMedian(t *testing.T) {
	levels := []float64{1.0, 0.98, 0.97, 1.02}
	noise := []float64{0, 0.003, -0.003, 0.001, -0.001}

	var samples []Sample
	for _, level := range levels {
		for _, n := range noise {
			samples = append(samples, Sample{Time: float64(len(samples)), Flux: level + n})
		}
	}
	curve, err := Smooth(samples, len(levels))
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	for i, level := range levels {
		if curve[i].Flux != level {
			t.Errorf("bin %d: expected median %v, got %v", i, level, curve[i].Flux)
		}
	}
}

func TestSmoothMidpointAndRemainder(t *testing.T) {
	// 10 samples into 3 sections: width 3, sample 9 is dropped
	samples := uniformSamples(1, 2, 3, 4, 5, 6, 7, 8, 9, 1000)

	curve, err := Smooth(samples, 3)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	want := Curve{
		{Time: 1, Flux: 2},
		{Time: 4, Flux: 5},
		{Time: 7, Flux: 8},
	}
	if diff := cmp.Diff(want, curve); diff != "" {
		t.Errorf("unexpected curve (-want +got):\n%s", diff)
	}
}

func TestSmoothEvenWindow(t *testing.T) {
	samples := uniformSamples(1, 4, 10, 20)

	curve, err := Smooth(samples, 1)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}
	if curve[0].Flux != 7 {
		t.Errorf("expected mean of two middle values 7, got %v", curve[0].Flux)
	}
	if curve[0].Time != 2 {
		t.Errorf("expected time of index 2, got %v", curve[0].Time)
	}
}

func TestSmoothErrors(t *testing.T) {
	samples := uniformSamples(1, 2, 3)

	_, err := Smooth(samples, 4)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Samples != 3 || insufficient.Sections != 4 {
		t.Errorf("unexpected error context: %+v", insufficient)
	}

	if _, err := Smooth(samples, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero sections, got %v", err)
	}
}
