package atom

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is matched by errors reporting an atom that transitively reads
// itself. Use errors.As with *CycleError for the path.
var ErrCycle = errors.New("atom: circular dependency")

// ErrInvalidWrite is returned when writing an atom that has no write function.
// The store is not modified.
var ErrInvalidWrite = errors.New("atom: attempted to set a read-only atom")

// ErrComputation is matched by every *ComputationError.
var ErrComputation = errors.New("atom: computation failed")

// ErrFlushBudget is returned when listeners keep writing the atoms they
// observe and notification delivery exceeds the store's pass budget. The
// undelivered notifications are dropped.
var ErrFlushBudget = errors.New("atom: notification flush budget exceeded")

// ErrBlockingAwait is returned by Await when it is called while the store
// lock is held by the calling goroutine, which would deadlock.
var ErrBlockingAwait = errors.New("atom: Await called from a synchronous read or write")

// ErrClosed is the load error of async atoms read after their store was
// closed.
var ErrClosed = errors.New("atom: store closed")

// CycleError reports a dependency cycle discovered during a computation.
type CycleError struct {
	// Atom is the label of the atom that was read while already computing.
	Atom string

	// Path lists the atoms being computed, outermost first.
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s reads itself", ErrCycle, e.Atom)
	}
	return fmt.Sprintf("%s: %s -> %s", ErrCycle, strings.Join(e.Path, " -> "), e.Atom)
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// ComputationError wraps an error returned (or a panic raised) by an atom's
// read, load or write function. The atom keeps it as its errored state until
// the next successful computation.
type ComputationError struct {
	// Atom is the label of the atom whose function failed.
	Atom string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ComputationError) Error() string {
	return fmt.Sprintf("atom %s: %v", e.Atom, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrComputation.
func (e *ComputationError) Is(target error) bool {
	return target == ErrComputation
}

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// wrapComputation attributes err to d unless it already carries an atom
// attribution or is a store-level error that must surface unchanged.
func wrapComputation(d *descriptor, err error) error {
	if err == nil {
		return nil
	}
	var ce *ComputationError
	var cy *CycleError
	switch {
	case errors.As(err, &ce), errors.As(err, &cy):
		return err
	case errors.Is(err, ErrInvalidWrite), errors.Is(err, ErrFlushBudget), errors.Is(err, ErrBlockingAwait):
		return err
	}
	return &ComputationError{Atom: d.String(), Err: err}
}

// invalidWrite reports a write to d, which has no write function.
func invalidWrite(d *descriptor) error {
	return fmt.Errorf("%w: %s", ErrInvalidWrite, d)
}
