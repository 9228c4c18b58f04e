package launch

import (
	"errors"
	"fmt"
)

// ErrNoHandles is returned when asked to wait on an empty instance set.
var ErrNoHandles = errors.New("no instances to wait for")

// Provider response invariants. A violation is fatal to the run.
var (
	ErrNoInstances           = errors.New("launch response has no instances")
	ErrNoReservation         = errors.New("describe response has no reservation")
	ErrMultipleReservations  = errors.New("describe response has more than one reservation")
	ErrInstanceCountMismatch = errors.New("describe response instance count mismatch")
	ErrUnexpectedInstance    = errors.New("describe response has an instance that was not requested")
)

// InvariantError reports a provider response that breaks an assumption
// the launcher relies on.
type InvariantError struct {
	Err    error // one of the Err* sentinels above
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("provider invariant violated: %v", e.Err)
	}
	return fmt.Sprintf("provider invariant violated: %v: %s", e.Err, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// IsInvariantError reports whether err wraps an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
