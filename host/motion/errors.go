package motion

import "github.com/pkg/errors"

// Move validation errors (category 1 of the error taxonomy): synchronous,
// recoverable, never corrupt planner state.
var (
	// ErrMustHomeFirst is returned when a move touches an axis whose
	// soft limits are still the unhomed sentinel (lo > hi).
	ErrMustHomeFirst = errors.New("must home axis first")
	// ErrBeyondLimit is returned when a homed axis would move outside
	// its configured [lo, hi] soft limits.
	ErrBeyondLimit = errors.New("move out of range")
)

// EndstopError wraps ErrMustHomeFirst/ErrBeyondLimit with the offending
// end position, matching the EndstopMoveError the original host raises.
type EndstopError struct {
	EndPos Position
	Err    error
}

func (e *EndstopError) Error() string {
	return e.Err.Error()
}

func (e *EndstopError) Unwrap() error { return e.Err }

// NewEndstopError builds an EndstopError, defaulting to ErrBeyondLimit.
func NewEndstopError(endPos Position, mustHome bool) *EndstopError {
	if mustHome {
		return &EndstopError{EndPos: endPos, Err: ErrMustHomeFirst}
	}
	return &EndstopError{EndPos: endPos, Err: ErrBeyondLimit}
}
