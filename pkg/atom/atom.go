package atom

import (
	"context"
	"runtime"
	"strconv"
	"sync/atomic"
	"weak"
)

// ids hands out descriptor identities; they are never reused.
var ids atomic.Uint64

func nextID() uint64 { return ids.Add(1) }

// kind classifies how a descriptor produces its value.
type kind uint8

const (
	// kindValue atoms store their value in the node.
	kindValue kind = iota + 1

	// kindComputed atoms derive their value with a synchronous read function.
	kindComputed

	// kindAsync atoms derive their value with a background load function.
	kindAsync
)

// descriptor is the type-erased definition shared by every atom type.
// The store keys nodes by id and never compares descriptors by value.
type descriptor struct {
	id    uint64
	label string
	kind  kind

	// initial is the starting value of kindValue atoms.
	initial any

	// read derives the value of kindComputed atoms.
	read func(get Getter) (any, error)

	// load derives the value of kindAsync atoms.
	load func(ctx context.Context, get Getter) (any, error)

	// loadable wraps a load outcome in the atom's typed Loadable.
	loadable func(state LoadState, value any, err error, done <-chan struct{}) any

	// write is nil for read-only atoms.
	write func(get Getter, set Setter, arg any) error

	// equal suppresses notifications when a recomputed value is unchanged.
	equal func(a, b any) bool

	// onMount runs when a kindValue atom is mounted.
	onMount func(set func(any) error) func()

	// attach registers release to run with the descriptor id once the atom
	// value handed to the user is garbage collected. It reports false when
	// that already happened.
	attach func(release func(id uint64)) bool
}

// bind ties d's lifetime in stores to the handle h returned to the user.
// Only a weak reference to h is kept, so stores do not keep it alive.
func bind[H any](h *H, d *descriptor) *H {
	ref := weak.Make(h)
	d.attach = func(release func(uint64)) bool {
		p := ref.Value()
		if p == nil {
			return false
		}
		runtime.AddCleanup(p, release, d.id)
		return true
	}
	return h
}

// String returns the debug label, or "atom<id>" when none was set.
func (d *descriptor) String() string {
	if d.label != "" {
		return d.label
	}
	return "atom" + strconv.FormatUint(d.id, 10)
}

// kindName reports the descriptor kind for inspection output.
func (d *descriptor) kindName() string {
	switch d.kind {
	case kindValue:
		if d.onMount != nil {
			return "value+mount"
		}
		return "value"
	case kindComputed:
		if d.write != nil {
			return "writable"
		}
		return "computed"
	case kindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// AnyAtom is implemented by every atom regardless of its value type.
// It is what type-erased store operations such as Subscribe accept.
type AnyAtom interface {
	// ID returns the atom's identity, unique for the life of the process.
	ID() uint64

	// String returns the debug label.
	String() string

	descriptor() *descriptor
}

// Atom is a readable atom holding values of type T.
type Atom[T any] interface {
	AnyAtom
	convert(v any) T
}

// WritableAtom is an atom that accepts writes with an argument of type A.
// Read-only atoms do not implement it, so writing one is a compile error.
type WritableAtom[T, A any] interface {
	Atom[T]
	accepts(A)
}

// Action computes the next value of a primitive atom from the previous one.
type Action[T any] func(prev T) T

// base carries the descriptor for every concrete atom type.
type base struct {
	d *descriptor
}

// ID returns the atom's identity.
func (b base) ID() uint64 { return b.d.id }

// String returns the debug label.
func (b base) String() string { return b.d.String() }

func (b base) descriptor() *descriptor { return b.d }

// as converts a stored value to T, mapping nil to the zero value.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// equalFor adapts a typed equality function to the descriptor.
func equalFor[T any](fn func(a, b T) bool) func(a, b any) bool {
	return func(a, b any) bool {
		return fn(as[T](a), as[T](b))
	}
}

// =============================================================================
// Primitive atoms
// =============================================================================

// Value is a primitive atom holding a replaceable value.
type Value[T any] struct {
	base
}

// NewValue creates a primitive atom with an initial value.
// No store is touched until the atom is read.
func NewValue[T any](initial T) *Value[T] {
	d := &descriptor{
		id:      nextID(),
		kind:    kindValue,
		initial: initial,
		equal:   defaultEqual,
	}
	d.write = func(get Getter, set Setter, arg any) error {
		action, _ := arg.(Action[T])
		if action == nil {
			return nil
		}
		prev, err := get.get(d)
		if err != nil {
			return err
		}
		return set.setValue(d, action(as[T](prev)))
	}
	return bind(&Value[T]{base{d}}, d)
}

// Named sets the debug label. It has no semantic effect.
func (v *Value[T]) Named(label string) *Value[T] {
	v.d.label = label
	return v
}

// WithEquals configures the equality used to decide whether a write changes
// the value. Writes of an equal value are dropped without notification.
func (v *Value[T]) WithEquals(fn func(a, b T) bool) *Value[T] {
	if fn != nil {
		v.d.equal = equalFor(fn)
	}
	return v
}

// OnMount registers fn to run when the atom becomes mounted in a store.
// fn receives a setter for the atom and may return a cleanup that runs when
// the atom is unmounted again.
func (v *Value[T]) OnMount(fn func(set func(T) error) (onUnmount func())) *Value[T] {
	if fn == nil {
		v.d.onMount = nil
		return v
	}
	v.d.onMount = func(set func(any) error) func() {
		return fn(func(value T) error { return set(value) })
	}
	return v
}

// Initial returns the value the atom has in a store that never wrote it.
func (v *Value[T]) Initial() T {
	return as[T](v.d.initial)
}

func (v *Value[T]) convert(x any) T { return as[T](x) }
func (v *Value[T]) accepts(Action[T]) {}

// =============================================================================
// Derived atoms
// =============================================================================

// Computed is a read-only derived atom.
type Computed[T any] struct {
	base
}

// NewComputed creates a derived atom. read receives a Getter that records
// every atom read through it as a dependency of the current computation.
func NewComputed[T any](read func(get Getter) (T, error)) *Computed[T] {
	if read == nil {
		read = func(Getter) (T, error) {
			var zero T
			return zero, nil
		}
	}
	d := &descriptor{
		id:    nextID(),
		kind:  kindComputed,
		equal: defaultEqual,
		read: func(get Getter) (any, error) {
			return read(get)
		},
	}
	return bind(&Computed[T]{base{d}}, d)
}

// Named sets the debug label. It has no semantic effect.
func (c *Computed[T]) Named(label string) *Computed[T] {
	c.d.label = label
	return c
}

// WithEquals configures the equality used to suppress notifications when a
// recomputed value equals the previous one.
func (c *Computed[T]) WithEquals(fn func(a, b T) bool) *Computed[T] {
	if fn != nil {
		c.d.equal = equalFor(fn)
	}
	return c
}

func (c *Computed[T]) convert(x any) T { return as[T](x) }

// Writable is a derived atom with a write function.
type Writable[T, A any] struct {
	base
}

// NewWritable creates a derived atom that also accepts writes. write receives
// an untracked Getter and a Setter for updating other atoms. A nil write makes
// every write fail with ErrInvalidWrite.
func NewWritable[T, A any](read func(get Getter) (T, error), write func(get Getter, set Setter, arg A) error) *Writable[T, A] {
	c := NewComputed(read)
	d := c.d
	if write != nil {
		d.write = func(get Getter, set Setter, arg any) error {
			return write(get, set, as[A](arg))
		}
	}
	return bind(&Writable[T, A]{base{d}}, d)
}

// NewReducer creates a primitive atom whose writes are folded into the stored
// value by reduce.
func NewReducer[T, A any](initial T, reduce func(state T, arg A) T) *Writable[T, A] {
	d := &descriptor{
		id:      nextID(),
		kind:    kindValue,
		initial: initial,
		equal:   defaultEqual,
	}
	d.write = func(get Getter, set Setter, arg any) error {
		if reduce == nil {
			return nil
		}
		prev, err := get.get(d)
		if err != nil {
			return err
		}
		return set.setValue(d, reduce(as[T](prev), as[A](arg)))
	}
	return bind(&Writable[T, A]{base{d}}, d)
}

// Named sets the debug label. It has no semantic effect.
func (w *Writable[T, A]) Named(label string) *Writable[T, A] {
	w.d.label = label
	return w
}

// WithEquals configures the equality used to suppress notifications.
func (w *Writable[T, A]) WithEquals(fn func(a, b T) bool) *Writable[T, A] {
	if fn != nil {
		w.d.equal = equalFor(fn)
	}
	return w
}

func (w *Writable[T, A]) convert(x any) T { return as[T](x) }
func (w *Writable[T, A]) accepts(A)       {}

// NewAsync creates a derived atom whose value is produced by load in the
// background. Reading it returns a Loadable that is Loading until load
// returns. load runs with a context that is cancelled when its result can no
// longer be used: a newer load started, the atom was unmounted, or the store
// was closed.
func NewAsync[T any](load func(ctx context.Context, get Getter) (T, error)) *Computed[Loadable[T]] {
	if load == nil {
		load = func(context.Context, Getter) (T, error) {
			var zero T
			return zero, nil
		}
	}
	d := &descriptor{
		id:    nextID(),
		kind:  kindAsync,
		equal: loadableEqual[T],
		load: func(ctx context.Context, get Getter) (any, error) {
			return load(ctx, get)
		},
		loadable: func(state LoadState, value any, err error, done <-chan struct{}) any {
			return Loadable[T]{State: state, Value: as[T](value), Err: err, done: done}
		},
	}
	return bind(&Computed[Loadable[T]]{base{d}}, d)
}

// =============================================================================
// Getter / Setter
// =============================================================================

// Getter reads atoms. A Store is a Getter whose reads are not tracked; the
// Getter handed to a read function records each read as a dependency.
type Getter interface {
	get(d *descriptor) (any, error)
	owner() *Store
}

// Setter writes atoms. A Store is a Setter; write functions receive one that
// joins the surrounding write into a single propagation pass.
type Setter interface {
	write(d *descriptor, arg any) error
	setValue(d *descriptor, value any) error
}

// Get returns the current value of a. Inside a read function, pass the
// Getter the function received so the read is tracked.
func Get[T any](g Getter, a Atom[T]) (T, error) {
	v, err := g.get(a.descriptor())
	return a.convert(v), err
}

// Write applies arg to a writable atom.
func Write[T, A any](s Setter, a WritableAtom[T, A], arg A) error {
	return s.write(a.descriptor(), arg)
}

// Set replaces the value of a primitive atom.
func Set[T any](s Setter, a WritableAtom[T, Action[T]], value T) error {
	return Write(s, a, Action[T](func(T) T { return value }))
}

// Update replaces the value of a primitive atom with fn applied to the
// previous value.
func Update[T any](s Setter, a WritableAtom[T, Action[T]], fn func(prev T) T) error {
	if fn == nil {
		return nil
	}
	return Write(s, a, Action[T](fn))
}
