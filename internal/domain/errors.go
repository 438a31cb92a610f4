package domain

import (
	"errors"
	"fmt"
)

// ErrNoSnapshots indicates a return/series computation found no snapshots in
// the requested window. Callers must surface this, never default to 0%.
var ErrNoSnapshots = errors.New("no snapshots in window")

// ErrDataUnavailable is returned to readers when a cache entry is missing and
// on-demand regeneration also failed. It is distinct from a legitimate zero.
var ErrDataUnavailable = errors.New("performance data unavailable")

// ValuationError indicates that no price could be resolved for a holding by
// any fallback tier. It blocks snapshot creation for that user/day and is
// retryable once market data recovers.
type ValuationError struct {
	UserID string
	Symbol string
	Day    Date
	Cause  error
}

func (e *ValuationError) Error() string {
	return fmt.Sprintf("valuation failed for user %s: no price for %s on %s", e.UserID, e.Symbol, e.Day)
}

func (e *ValuationError) Unwrap() error { return e.Cause }

// NoBaselineError indicates the return calculator could not establish a
// starting value: the period opens at zero with no net flows, so a percentage
// return is undefined. Distinct from a genuine 0% return.
type NoBaselineError struct {
	UserID string
	Start  Date
	End    Date
}

func (e *NoBaselineError) Error() string {
	return fmt.Sprintf("no return baseline for user %s in %s..%s", e.UserID, e.Start, e.End)
}

// IsRetryable reports whether the error is worth retrying on the next batch
// run. Valuation failures are; structural errors are not.
func IsRetryable(err error) bool {
	var ve *ValuationError
	return errors.As(err, &ve)
}
