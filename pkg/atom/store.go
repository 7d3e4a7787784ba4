package atom

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxFlushPasses bounds how many rounds of notifications one flush
// delivers before giving up on listeners that keep re-triggering each other.
const DefaultMaxFlushPasses = 1000

// Store holds the per-instance state of atoms: cached values, dependency
// edges, listeners and in-flight loads. The same atom used with two stores
// has two independent values.
//
// A Store is safe for concurrent use. Operations are serialized by a lock
// that is re-entrant for the goroutine holding it, so read and write
// functions may read and write the store they run in. Listeners run after
// the lock is released and may use the store freely.
type Store struct {
	id     string
	label  string
	logger *slog.Logger

	metrics   *Metrics
	tracer    trace.Tracer
	maxPasses int

	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by mu.
	mu       sync.Mutex
	holder   atomic.Uint64
	depth    int
	nodes    map[uint64]*node
	clock    uint64
	mounted  int
	stack    []*descriptor
	pending  []*node
	hooks    []func()
	events   []Event
	traceCtx context.Context
	seq      uint64

	// attached holds the ids whose handles carry a release cleanup for this
	// store.
	attached map[uint64]struct{}
	self     weak.Pointer[Store]

	// Guarded by qmu.
	qmu      sync.Mutex
	queue    []func()
	flushing bool

	omu       sync.RWMutex
	observers map[uint64]func(Event)
	nextObs   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLabel sets a human-readable name used in logs, metrics and snapshots.
func WithLabel(label string) Option {
	return func(s *Store) { s.label = label }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records store activity in m. Stores without metrics record
// nothing.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithTracer sets the tracer used for write and propagation spans.
// Defaults to the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithContext sets the parent of the contexts handed to async loads.
// Cancelling it cancels every load, as does Close.
func WithContext(ctx context.Context) Option {
	return func(s *Store) {
		if ctx != nil {
			s.ctx = ctx
		}
	}
}

// WithMaxFlushPasses sets the notification pass budget. Zero or negative
// disables the budget.
func WithMaxFlushPasses(n int) Option {
	return func(s *Store) { s.maxPasses = n }
}

// WithObserver registers fn to receive store events, as Observe does.
func WithObserver(fn func(Event)) Option {
	return func(s *Store) {
		if fn != nil {
			s.nextObs++
			s.observers[s.nextObs] = fn
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		id:        ulid.Make().String(),
		ctx:       context.Background(),
		maxPasses: DefaultMaxFlushPasses,
		nodes:     make(map[uint64]*node),
		attached:  make(map[uint64]struct{}),
		observers: make(map[uint64]func(Event)),
	}
	s.self = weak.Make(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "atom")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/vango-dev/atoms/pkg/atom")
	}
	s.ctx, s.cancel = context.WithCancel(s.ctx)
	s.logger.Debug("atom: store created", "store", s.id, "label", s.label)
	return s
}

// ID returns the store's unique identifier.
func (s *Store) ID() string { return s.id }

// Label returns the label set with WithLabel.
func (s *Store) Label() string { return s.label }

// String returns the label, or the id when no label was set.
func (s *Store) String() string {
	if s.label != "" {
		return s.label
	}
	return s.id
}

// =============================================================================
// Getter / Setter
// =============================================================================

func (s *Store) owner() *Store { return s }

func (s *Store) get(d *descriptor) (any, error) {
	var v any
	var err error
	// Notification errors belong to the writer, not to readers that
	// happened to trigger a flush.
	_ = s.do(func() error {
		v, err = s.read(d)
		return nil
	})
	return v, err
}

// read returns the fresh value of d without tracking. Must hold the lock.
func (s *Store) read(d *descriptor) (any, error) {
	n := s.nodeFor(d)
	if n.inProgress() {
		return nil, s.cycleError(d)
	}
	s.ensureFresh(n)
	return n.value, n.err
}

func (s *Store) write(d *descriptor, arg any) error {
	if d.write == nil {
		s.metrics.recordError("invalid_write")
		return invalidWrite(d)
	}
	return s.do(func() error {
		parent := s.traceCtx
		if parent == nil {
			parent = s.ctx
		}
		ctx, span := s.tracer.Start(parent, "atom.write",
			trace.WithAttributes(
				attribute.String("atom.store", s.id),
				attribute.String("atom.name", d.String()),
			),
		)
		defer span.End()
		if s.traceCtx == nil {
			s.traceCtx = ctx
		}

		s.metrics.recordWrite()
		err := wrapComputation(d, invokeWrite(d, s, s, arg))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Debug("atom: write failed", "store", s.id, "atom", d.String(), "error", err)
		}
		return err
	})
}

func (s *Store) setValue(d *descriptor, v any) error {
	return s.do(func() error {
		return s.assign(d, v)
	})
}

// assign replaces the value of a primitive atom. Must hold the lock.
func (s *Store) assign(d *descriptor, v any) error {
	if d.kind != kindValue {
		return invalidWrite(d)
	}
	n := s.nodeFor(d)
	s.ensureFresh(n)
	n.written = true
	if d.equal(n.value, v) {
		return nil
	}
	n.value = v
	n.err = nil
	n.epoch++
	n.version = s.tick()
	s.invalidate(n)
	s.pending = append(s.pending, n)

	s.emit(Event{Kind: EventSet, Atom: d.String(), AtomID: d.id, Version: n.version})
	return nil
}

// =============================================================================
// Subscriptions
// =============================================================================

// Subscribe registers fn to run after every propagation in which a's value
// or error changed. It mounts a and its dependencies. fn is not called for
// the current value; read it with Get.
//
// The returned function removes the listener and unmounts atoms that are no
// longer needed. Calling it more than once has no further effect.
func (s *Store) Subscribe(a AnyAtom, fn func()) (unsubscribe func()) {
	d := a.descriptor()
	l := &listener{fn: fn}
	l.active.Store(true)

	var n *node
	_ = s.do(func() error {
		s.seq++
		l.id = s.seq
		n = s.nodeFor(d)
		s.mount(n)
		if len(n.mount.listeners) == 0 {
			s.ensureFresh(n)
			n.mount.seen = n.version
		}
		n.mount.listeners = append(n.mount.listeners, l)
		s.metrics.addListeners(1)
		return nil
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Store(false)
			_ = s.do(func() error {
				if s.nodes[d.id] != n || n.mount == nil {
					return nil
				}
				ls := n.mount.listeners
				for i, x := range ls {
					if x == l {
						n.mount.listeners = append(ls[:i:i], ls[i+1:]...)
						s.metrics.addListeners(-1)
						break
					}
				}
				s.maybeUnmount(n)
				return nil
			})
		})
	}
}

// Watch subscribes to a and calls fn with its value after each change.
func Watch[T any](s *Store, a Atom[T], fn func(value T, err error)) (unsubscribe func()) {
	return s.Subscribe(a, func() {
		v, err := Get(s, a)
		fn(v, err)
	})
}

// Batch runs fn with a Setter whose writes share a single propagation pass.
// Listeners run once, after fn returns, for every atom that changed.
func (s *Store) Batch(fn func(set Setter) error) error {
	if fn == nil {
		return nil
	}
	return s.do(func() error {
		return fn(s)
	})
}

// =============================================================================
// Lifecycle
// =============================================================================

// Close cancels every in-flight load. Async atoms read afterwards fail with
// ErrClosed. Other atoms keep working.
func (s *Store) Close() {
	_ = s.do(func() error {
		s.cancel()
		for _, n := range s.nodes {
			fl := n.inflight
			if fl == nil {
				continue
			}
			fl.cancel()
			n.inflight = nil
			if s.storeLoad(n, nil, ErrClosed) {
				s.invalidate(n)
				s.pending = append(s.pending, n)
			}
		}
		s.logger.Debug("atom: store closed", "store", s.id)
		return nil
	})
}

// Len returns the number of atoms holding state in the store.
func (s *Store) Len() int {
	var n int
	_ = s.do(func() error {
		n = len(s.nodes)
		return nil
	})
	return n
}

// MountedLen returns the number of mounted atoms.
func (s *Store) MountedLen() int {
	var n int
	_ = s.do(func() error {
		n = s.mounted
		return nil
	})
	return n
}
