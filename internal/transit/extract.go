package transit

// Extract turns falling runs into transit-start boundaries and rising runs into
// transit-end boundaries, keeping run (time) order.
//
// Start: outer is the first run index, tail is one point past the last run index.
// End: outer is one point past the last run index, tail is the first run index.
func Extract(curve Curve, falling, rising []Run, policy EdgePolicy) (starts, ends []Boundary, err error) {
	starts = make([]Boundary, 0, len(falling))
	for _, run := range falling {
		first, last, ok, err := runEnds(curve, run, policy)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			starts = append(starts, Boundary{Outer: first.Time, Tail: last.Time})
		}
	}

	ends = make([]Boundary, 0, len(rising))
	for _, run := range rising {
		first, last, ok, err := runEnds(curve, run, policy)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			ends = append(ends, Boundary{Outer: last.Time, Tail: first.Time})
		}
	}

	return starts, ends, nil
}

// runEnds returns the curve point at the run's first index and the point one
// past its last index
func runEnds(curve Curve, run Run, policy EdgePolicy) (first, last Point, ok bool, err error) {
	if len(run) == 0 {
		return Point{}, Point{}, false, nil
	}
	if first, ok, err = neighbor(curve, run[0], policy); err != nil || !ok {
		return Point{}, Point{}, false, err
	}
	if last, ok, err = neighbor(curve, run[len(run)-1]+1, policy); err != nil || !ok {
		return Point{}, Point{}, false, err
	}
	return first, last, true, nil
}

// neighbor looks up curve[idx] under the edge policy. ok is false when the
// run should be dropped.
func neighbor(curve Curve, idx int, policy EdgePolicy) (Point, bool, error) {
	if idx >= 0 && idx < len(curve) {
		return curve[idx], true, nil
	}

	switch policy {
	case EdgeClamp:
		if len(curve) == 0 {
			return Point{}, false, &IndexOutOfRangeError{Index: idx, Length: 0}
		}
		if idx < 0 {
			return curve[0], true, nil
		}
		return curve[len(curve)-1], true, nil
	case EdgeDiscard:
		return Point{}, false, nil
	default:
		return Point{}, false, &IndexOutOfRangeError{Index: idx, Length: len(curve)}
	}
}

// Outers returns the outer time of each boundary
func Outers(bs []Boundary) []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Outer
	}
	return out
}

// Tails returns the tail time of each boundary
func Tails(bs []Boundary) []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Tail
	}
	return out
}
