package transit

// Classify labels each adjacent pair i of start/end outer times.
// starts and ends must have equal length.
func Classify(starts, ends []float64) []Ordering {
	if len(starts) != len(ends) || len(starts) < 2 {
		return nil
	}

	orderings := make([]Ordering, 0, len(starts)-1)
	for i := 0; i < len(starts)-1; i++ {
		switch {
		case starts[i] > ends[i] && ends[i+1] > starts[i]:
			orderings = append(orderings, OrderingEndBeforeStart)
		case starts[i] < ends[i] && ends[i] < starts[i+1]:
			orderings = append(orderings, OrderingStartBeforeEnd)
		default:
			orderings = append(orderings, OrderingInconsistent)
		}
	}
	return orderings
}

// Validate reports whether start and end outer times form a consistently
// alternating transit sequence: equal counts, at least one adjacent pair, and
// every pair classified the same way as the first. A sequence whose pairs are
// all inconsistent passes. Fewer than three transits gives a weak check.
func Validate(starts, ends []float64) bool {
	orderings := Classify(starts, ends)
	if len(orderings) == 0 {
		return false
	}
	for _, o := range orderings[1:] {
		if o != orderings[0] {
			return false
		}
	}
	return true
}
