package driver

import (
	"errors"
	"fmt"
)

// ErrAlreadyLaunched is returned by Launch if Launch has already been called on the Driver,
// whether or not that earlier spawn succeeded. A Driver instance is single-use.
var ErrAlreadyLaunched = errors.New("driver already launched an engine")

// InvariantError indicates a violation of a documented driver invariant -- a bug in the
// driver's own bookkeeping, never a caller input problem. It is returned rather than panicked
// so that a single internal inconsistency does not take down the host process.
type InvariantError struct {
	Invariant string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %v", e.Invariant)
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Invariant: fmt.Sprintf(format, args...)}
}
