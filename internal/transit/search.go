package transit

import (
	"context"

	"go.uber.org/zap"
)

const (
	// DefaultGradFilter is the starting threshold multiplier
	DefaultGradFilter = 0.5

	// DefaultRetryStep is added to the threshold multiplier after each failed validation
	DefaultRetryStep = 0.5

	// DefaultMaxAttempts bounds the retry loop
	DefaultMaxAttempts = 200
)

// SearchParams controls the adaptive threshold search
type SearchParams struct {
	InitialFilter float64
	Step          float64

	// MaxAttempts caps the number of thresholds tried; 0 means no cap
	MaxAttempts int

	// MaxFilter caps the threshold multiplier; 0 means no cap
	MaxFilter float64

	EdgePolicy EdgePolicy
}

// DefaultSearchParams returns the reference starting filter and step with a
// bounded retry count
func DefaultSearchParams() SearchParams {
	return SearchParams{
		InitialFilter: DefaultGradFilter,
		Step:          DefaultRetryStep,
		MaxAttempts:   DefaultMaxAttempts,
		EdgePolicy:    EdgeFail,
	}
}

// Validate checks the parameters can drive a terminating search
func (p SearchParams) Validate() error {
	if p.InitialFilter < 0 {
		return invalidConfigf("initial_grad_filter must be >= 0, got %g", p.InitialFilter)
	}
	if p.Step <= 0 {
		return invalidConfigf("retry_step must be > 0, got %g", p.Step)
	}
	if p.MaxAttempts < 0 {
		return invalidConfigf("max_attempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.MaxFilter < 0 {
		return invalidConfigf("max_grad_filter must be >= 0, got %g", p.MaxFilter)
	}
	if p.MaxFilter > 0 && p.MaxFilter < p.InitialFilter {
		return invalidConfigf("max_grad_filter %g is below initial_grad_filter %g", p.MaxFilter, p.InitialFilter)
	}
	if _, err := ParseEdgePolicy(string(p.EdgePolicy)); err != nil {
		return err
	}
	return nil
}

// Attempt records one pass of the search loop
type Attempt struct {
	Filter    float64 `json:"grad_filter"`
	Starts    int     `json:"starts"`
	Ends      int     `json:"ends"`
	Validated bool    `json:"validated"`
}

// SearchResult is the validated boundary set and how it was found
type SearchResult struct {
	Starts          []Boundary
	Ends            []Boundary
	Filter          float64
	MeanAbsGradient float64
	Attempts        []Attempt
}

// Search segments the curve at increasing thresholds until the extracted
// start/end boundaries validate. Each failed validation raises the filter by
// params.Step. The search fails with a DetectionFailedError when a threshold
// yields no start or no end boundaries, when the attempt or filter cap is hit,
// or when ctx is done.
func Search(ctx context.Context, curve Curve, params SearchParams, logger *zap.SugaredLogger) (*SearchResult, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	diffs, err := Gradients(curve)
	if err != nil {
		return nil, err
	}
	meanAbsGradient := meanAbs(diffs)

	result := &SearchResult{MeanAbsGradient: meanAbsGradient}
	filter := params.InitialFilter

	fail := func(reason string, cause error) error {
		return &DetectionFailedError{
			Reason:      reason,
			LastFilter:  filter,
			Attempts:    len(result.Attempts),
			CurveLength: len(curve),
			Cause:       cause,
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fail("search interrupted", err)
		}

		seg := segmentDiffs(diffs, meanAbsGradient*filter)
		starts, ends, err := Extract(curve, seg.Falling, seg.Rising, params.EdgePolicy)
		if err != nil {
			return nil, err
		}

		attempt := Attempt{Filter: filter, Starts: len(starts), Ends: len(ends)}
		if len(starts) == 0 || len(ends) == 0 {
			result.Attempts = append(result.Attempts, attempt)
			logger.Debugf("grad filter %.2f: %d starts, %d ends; no candidates left", filter, len(starts), len(ends))
			return nil, fail("no boundary candidates above threshold", nil)
		}

		attempt.Validated = Validate(Outers(starts), Outers(ends))
		result.Attempts = append(result.Attempts, attempt)

		if attempt.Validated {
			logger.Debugf("grad filter %.2f: %d transits validated", filter, len(starts))
			result.Starts = starts
			result.Ends = ends
			result.Filter = filter
			return result, nil
		}

		if params.MaxAttempts > 0 && len(result.Attempts) >= params.MaxAttempts {
			return nil, fail("maximum attempts reached", nil)
		}
		next := filter + params.Step
		if params.MaxFilter > 0 && next > params.MaxFilter {
			return nil, fail("grad filter limit reached", nil)
		}

		logger.Debugf("grad filter %.2f: %d starts, %d ends failed validation; retrying with %.2f",
			filter, len(starts), len(ends), next)
		filter = next
	}
}
