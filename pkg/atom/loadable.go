package atom

import (
	"context"
	"fmt"
)

// LoadState is the state of an async atom's value.
type LoadState uint8

const (
	// Loading means a load is in flight.
	Loading LoadState = iota

	// Ready means the last load returned a value.
	Ready

	// Failed means the last load returned an error.
	Failed
)

// String returns a human-readable name for the state.
func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Loadable is the value of an async atom.
type Loadable[T any] struct {
	State LoadState
	Value T
	Err   error

	// done is closed when the load that produced a Loading snapshot returns.
	done <-chan struct{}
}

// Done returns a channel closed when the in-flight load behind this snapshot
// finishes. It is nil for settled snapshots.
func (l Loadable[T]) Done() <-chan struct{} {
	return l.done
}

// String formats the loadable for logs and inspection.
func (l Loadable[T]) String() string {
	switch l.State {
	case Ready:
		return fmt.Sprintf("ready(%v)", l.Value)
	case Failed:
		return fmt.Sprintf("failed(%v)", l.Err)
	default:
		return "loading"
	}
}

// loadableEqual treats two settled snapshots as equal when their states,
// errors and values match. Loading snapshots are never equal because each
// belongs to a different load.
func loadableEqual[T any](a, b any) bool {
	la, oka := a.(Loadable[T])
	lb, okb := b.(Loadable[T])
	if !oka || !okb {
		return false
	}
	if la.State != lb.State || la.State == Loading {
		return false
	}
	if la.State == Failed {
		return la.Err == lb.Err
	}
	return defaultEqual(la.Value, lb.Value)
}

// Await blocks until the async atom a has settled and returns its value or
// load error. It may be called with a Store or with the Getter handed to an
// async load; in the latter case a is tracked as a dependency.
//
// Await must not be called from a synchronous read or write function: the
// load it waits for needs the store lock that the caller is holding.
func Await[T any](ctx context.Context, g Getter, a Atom[Loadable[T]]) (T, error) {
	var zero T
	if s := g.owner(); s != nil && s.heldByCaller() {
		return zero, ErrBlockingAwait
	}
	for {
		l, err := Get(g, a)
		switch {
		case l.State == Ready:
			return l.Value, nil
		case l.State == Failed && l.Err != nil:
			return zero, l.Err
		case err != nil:
			return zero, err
		case l.done == nil:
			return zero, fmt.Errorf("atom: %s has no load in flight", a)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-l.done:
		}
	}
}
