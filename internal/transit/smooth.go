package transit

import (
	"sort"
)

// Smooth bins samples into numSections fixed-width windows and replaces each
// window with its midpoint time and median flux.
//
// The window width is len(samples)/numSections (integer division); samples past
// numSections*width are dropped. The emitted time is the time of the sample at
// the middle index of the window, not the mean of the window's times.
func Smooth(samples []Sample, numSections int) (Curve, error) {
	if numSections < 1 {
		return nil, invalidConfigf("num_sections must be >= 1, got %d", numSections)
	}
	if len(samples) < numSections {
		return nil, &InsufficientDataError{Samples: len(samples), Sections: numSections}
	}

	sectionLength := len(samples) / numSections
	curve := make(Curve, numSections)

	// Reused across sections; median sorts in place
	window := make([]float64, sectionLength)

	for n := 0; n < numSections; n++ {
		start := n * sectionLength
		for i := 0; i < sectionLength; i++ {
			window[i] = samples[start+i].Flux
		}

		curve[n] = Point{
			Time: samples[start+sectionLength/2].Time,
			Flux: median(window),
		}
	}

	return curve, nil
}

// median sorts values in place and returns the middle value, or the mean of
// the two middle values for even lengths
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}

	sort.Float64s(values)

	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}
