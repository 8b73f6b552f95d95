package transit

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Segmentation holds the gradient runs found at one threshold, in time order
type Segmentation struct {
	Rising  []Run
	Falling []Run
}

// Gradients returns the first differences of the curve's flux:
// diffs[i] = curve[i+1].Flux - curve[i].Flux
func Gradients(curve Curve) ([]float64, error) {
	if len(curve) < 2 {
		return nil, &EmptyCurveError{Length: len(curve)}
	}

	diffs := make([]float64, len(curve)-1)
	for i := 0; i < len(curve)-1; i++ {
		diffs[i] = curve[i+1].Flux - curve[i].Flux
	}
	return diffs, nil
}

// MeanAbsGradient is the average magnitude of the curve's first differences
func MeanAbsGradient(curve Curve) (float64, error) {
	diffs, err := Gradients(curve)
	if err != nil {
		return 0, err
	}
	return meanAbs(diffs), nil
}

func meanAbs(diffs []float64) float64 {
	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	return stat.Mean(abs, nil)
}

// Segment classifies every gradient whose magnitude exceeds
// MeanAbsGradient(curve)*gradFilter as falling (negative) or rising, and groups
// each class into runs of consecutive indices
func Segment(curve Curve, gradFilter float64) (Segmentation, error) {
	diffs, err := Gradients(curve)
	if err != nil {
		return Segmentation{}, err
	}
	return segmentDiffs(diffs, meanAbs(diffs)*gradFilter), nil
}

// segmentDiffs does the thresholding for a precomputed gradient series so the
// search loop only computes the mean once
func segmentDiffs(diffs []float64, threshold float64) Segmentation {
	var rising, falling []int

	for i, d := range diffs {
		if math.Abs(d) <= threshold {
			continue
		}
		if d < 0 {
			falling = append(falling, i)
		} else {
			rising = append(rising, i)
		}
	}

	return Segmentation{
		Rising:  SplitRuns(rising),
		Falling: SplitRuns(falling),
	}
}

// SplitRuns breaks an ascending index list into maximal runs of consecutive
// integers. A gap greater than one starts a new run.
func SplitRuns(indices []int) []Run {
	if len(indices) == 0 {
		return nil
	}

	var runs []Run
	start := 0
	for i := 1; i < len(indices); i++ {
		if indices[i]-indices[i-1] > 1 {
			runs = append(runs, Run(indices[start:i:i]))
			start = i
		}
	}
	runs = append(runs, Run(indices[start:len(indices):len(indices)]))

	return runs
}
