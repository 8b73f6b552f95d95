package transit

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration validation failure
var ErrInvalidConfig = errors.New("invalid detection config")

func invalidConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// InsufficientDataError means there are fewer raw samples than requested bins
type InsufficientDataError struct {
	Samples  int
	Sections int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d samples cannot fill %d sections", e.Samples, e.Sections)
}

// EmptyCurveError means the smoothed curve is too short to take a gradient of
type EmptyCurveError struct {
	Length int
}

func (e *EmptyCurveError) Error() string {
	return fmt.Sprintf("curve has %d points, need at least 2 to compute gradients", e.Length)
}

// IndexOutOfRangeError means a run's neighbor lookup fell outside the curve
type IndexOutOfRangeError struct {
	Index  int
	Length int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("boundary index %d out of range for curve of length %d", e.Index, e.Length)
}

// DetectionFailedError means the adaptive search ran out of candidates, attempts
// or time without finding a valid transit sequence
type DetectionFailedError struct {
	Reason      string
	LastFilter  float64
	Attempts    int
	CurveLength int
	Cause       error
}

func (e *DetectionFailedError) Error() string {
	msg := fmt.Sprintf("transit detection failed after %d attempts (last grad filter %.2f, curve length %d): %s",
		e.Attempts, e.LastFilter, e.CurveLength, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DetectionFailedError) Unwrap() error {
	return e.Cause
}

// MismatchedCountError means the grouping stage got boundary lists of
// different lengths. Search never produces this.
type MismatchedCountError struct {
	Starts     int
	StartTails int
	Ends       int
	EndTails   int
}

func (e *MismatchedCountError) Error() string {
	return fmt.Sprintf("mismatched boundary counts: starts=%d start_tails=%d ends=%d end_tails=%d",
		e.Starts, e.StartTails, e.Ends, e.EndTails)
}
