package transit

// Group pairs per-transit boundary times into events, in input order.
// All four slices must have the same length.
func Group(starts, startTails, ends, endTails []float64) ([]Event, error) {
	n := len(starts)
	if len(startTails) != n || len(ends) != n || len(endTails) != n {
		return nil, &MismatchedCountError{
			Starts:     len(starts),
			StartTails: len(startTails),
			Ends:       len(ends),
			EndTails:   len(endTails),
		}
	}

	events := make([]Event, n)
	for i := 0; i < n; i++ {
		events[i] = Event{
			T1: starts[i],
			T2: startTails[i],
			T4: ends[i],
			T3: endTails[i],
			T0: (starts[i] + ends[i]) / 2,
		}
	}
	return events, nil
}
