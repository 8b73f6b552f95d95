package transit

// Sample is a single raw light-curve measurement
type Sample struct {
	Time float64 `json:"time" msgpack:"time"`
	Flux float64 `json:"flux" msgpack:"flux"`
}

// Point is one bin of a smoothed curve: the bin's midpoint time and median flux
type Point struct {
	Time float64 `json:"time"`
	Flux float64 `json:"flux"`
}

// Curve is a smoothed light curve in increasing time order
type Curve []Point

// Times returns the time coordinate of every point
func (c Curve) Times() []float64 {
	times := make([]float64, len(c))
	for i, p := range c {
		times[i] = p.Time
	}
	return times
}

// Fluxes returns the flux coordinate of every point
func (c Curve) Fluxes() []float64 {
	fluxes := make([]float64, len(c))
	for i, p := range c {
		fluxes[i] = p.Flux
	}
	return fluxes
}

// Run is a maximal block of consecutive curve indices whose gradients cross
// the threshold in the same direction
type Run []int

// Boundary marks one side of a dip. Outer is the point furthest from the dip
// bottom, Tail the point closest to it.
type Boundary struct {
	Outer float64 `json:"outer"`
	Tail  float64 `json:"tail"`
}

// Event is one detected transit.
// T1/T2 are ingress outer/tail, T4/T3 are egress outer/tail, T0 is the midpoint
// of T1 and T4.
type Event struct {
	T1 float64 `json:"tI" msgpack:"tI"`
	T2 float64 `json:"tII" msgpack:"tII"`
	T4 float64 `json:"tIV" msgpack:"tIV"`
	T3 float64 `json:"tIII" msgpack:"tIII"`
	T0 float64 `json:"t0" msgpack:"t0"`
}

// Duration is the time between first and last contact
func (e Event) Duration() float64 {
	return e.T4 - e.T1
}

// Ordering is the classification of an adjacent pair of boundaries
type Ordering string

const (
	// OrderingEndBeforeStart is an end-start-end-start sequence
	OrderingEndBeforeStart Ordering = "e-s"

	// OrderingStartBeforeEnd is a start-end-start-end sequence
	OrderingStartBeforeEnd Ordering = "s-e"

	// OrderingInconsistent is neither
	OrderingInconsistent Ordering = "X"
)

// EdgePolicy decides what extraction does when a run's neighbor index falls
// past the end of the curve
type EdgePolicy string

const (
	// EdgeFail returns an IndexOutOfRangeError
	EdgeFail EdgePolicy = "fail"

	// EdgeClamp uses the last curve point instead
	EdgeClamp EdgePolicy = "clamp"

	// EdgeDiscard drops the offending run
	EdgeDiscard EdgePolicy = "discard"
)

// ParseEdgePolicy maps a config string onto an EdgePolicy. Empty means EdgeFail.
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch EdgePolicy(s) {
	case "", EdgeFail:
		return EdgeFail, nil
	case EdgeClamp:
		return EdgeClamp, nil
	case EdgeDiscard:
		return EdgeDiscard, nil
	default:
		return "", invalidConfigf("unknown edge policy %q (want fail, clamp or discard)", s)
	}
}
