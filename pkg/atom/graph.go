package atom

import (
	"errors"
	"reflect"
	"slices"
	"sync/atomic"
)

// node is the per-store state of one atom.
//
// Mounted nodes hold mutual edges with their mounted dependencies and are
// marked stale when an upstream value changes. Unmounted nodes hold no edges;
// their cached value is validated on read by comparing the recorded version
// of each dependency with its current one.
type node struct {
	d *descriptor

	value any
	err   error
	has   bool

	// epoch counts computation starts. For async atoms it is the token that
	// identifies the current load.
	epoch uint64

	// version is the store clock at the last observable change.
	version uint64

	stale     bool
	computing bool

	// checking is set while the versions of n's dependencies are validated.
	// Reaching n again in that window means the dependencies read n.
	checking bool

	// orphan is set when the atom's handle was already collected when the
	// node was created, so no cleanup will release it.
	orphan bool

	// loading is set while an async atom holds a Loading snapshot.
	loading bool

	// written is set once a primitive atom has been written in this store.
	written bool

	// deps lists the dependencies read by the last computation, in read order.
	deps []dep

	mount    *mountState
	inflight *inflight
}

// dep records a dependency and its version when it was read.
type dep struct {
	d       *descriptor
	version uint64

	// cycle marks a read that was rejected as circular. It is validated like
	// any other dependency but never becomes a mount edge.
	cycle bool
}

// inProgress reports whether n is being computed or validated further up
// the call stack.
func (n *node) inProgress() bool {
	return n.computing || n.checking
}

// cyclic reports whether n's last computation hit a cycle.
func (n *node) cyclic() bool {
	for _, dp := range n.deps {
		if dp.cycle {
			return true
		}
	}
	return false
}

// mountState exists only while a node is mounted.
type mountState struct {
	listeners  []*listener
	dependents map[uint64]*node

	// seen is the version listeners were last notified of.
	seen uint64

	onUnmount func()
}

type listener struct {
	id     uint64
	fn     func()
	active atomic.Bool
}

// tick advances the store clock.
func (s *Store) tick() uint64 {
	s.clock++
	return s.clock
}

// nodeFor returns the node for d, creating it on first use.
func (s *Store) nodeFor(d *descriptor) *node {
	if n, ok := s.nodes[d.id]; ok {
		return n
	}
	n := &node{d: d}
	s.nodes[d.id] = n
	n.orphan = !s.watchHandle(d)
	return n
}

// watchHandle arranges for d's node to be dropped once the atom can no
// longer be named by user code. One cleanup per atom and store is enough:
// the node may come and go through mounts while the handle lives.
func (s *Store) watchHandle(d *descriptor) bool {
	if d.attach == nil {
		return true
	}
	if _, ok := s.attached[d.id]; ok {
		return true
	}
	ref := s.self
	if !d.attach(func(id uint64) {
		if st := ref.Value(); st != nil {
			st.releaseAtom(id)
		}
	}) {
		return false
	}
	s.attached[d.id] = struct{}{}
	return true
}

// releaseAtom drops the node of a collected atom unless it is still mounted,
// which happens only while a dependent that reads it is alive.
func (s *Store) releaseAtom(id uint64) {
	_ = s.do(func() error {
		delete(s.attached, id)
		s.drop(s.nodes[id])
		return nil
	})
}

// drop removes an unmounted node along with the orphaned dependencies only
// it could still reach.
func (s *Store) drop(n *node) {
	if n == nil || n.mount != nil || n.inProgress() {
		return
	}
	if fl := n.inflight; fl != nil {
		fl.cancel()
		n.inflight = nil
	}
	delete(s.nodes, n.d.id)
	s.logger.Debug("atom: released", "store", s.id, "atom", n.d.String())
	for _, dp := range n.deps {
		if dn := s.nodes[dp.d.id]; dn != nil && dn.orphan {
			s.drop(dn)
		}
	}
}

// ensureFresh brings n up to date with its dependencies, recomputing or
// restarting its load when any of them changed.
func (s *Store) ensureFresh(n *node) {
	if n.inProgress() {
		return
	}
	if n.d.kind == kindValue {
		if !n.has {
			n.value = n.d.initial
			n.has = true
			n.version = s.tick()
		}
		return
	}
	if n.loading && n.inflight == nil {
		// The load behind the Loading snapshot was dropped.
		s.startLoad(n)
		return
	}
	// Cycle reads carry no mount edge, so such nodes are validated by pull.
	if n.has && !n.stale && n.mount != nil && !n.cyclic() {
		return
	}
	if n.has && s.depsCurrent(n) {
		n.stale = false
		return
	}
	if n.d.kind == kindAsync {
		s.startLoad(n)
		return
	}
	s.recompute(n)
}

// depsCurrent reports whether every dependency of n still has the version
// n's last computation observed.
func (s *Store) depsCurrent(n *node) bool {
	n.checking = true
	s.stack = append(s.stack, n.d)
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		n.checking = false
	}()

	for _, dp := range n.deps {
		dn := s.nodeFor(dp.d)
		if dn.inProgress() {
			return false
		}
		s.ensureFresh(dn)
		if dn.version != dp.version {
			return false
		}
	}
	return true
}

// recompute runs n's read function with a tracking frame.
func (s *Store) recompute(n *node) {
	f := &frame{s: s, n: n}
	n.computing = true
	n.epoch++
	s.stack = append(s.stack, n.d)

	v, err := invokeRead(n.d, f)

	s.stack = s.stack[:len(s.stack)-1]
	n.computing = false
	f.done = true

	s.commitDeps(n, f.deps)
	err = wrapComputation(n.d, err)
	s.settleValue(n, v, err)

	s.metrics.recordRecompute(n.d.kindName())
	s.logger.Debug("atom: recomputed", "store", s.id, "atom", n.d.String(), "deps", len(n.deps), "error", err)
	s.emit(Event{Kind: EventRecompute, Atom: n.d.String(), AtomID: n.d.id, Version: n.version, Err: err})
}

// settleValue stores a computation result and reports whether it changed.
func (s *Store) settleValue(n *node, v any, err error) bool {
	changed := !n.has
	switch {
	case err != nil:
		v = nil
		changed = changed || !sameError(n.err, err)
	case n.err != nil:
		changed = true
	default:
		changed = changed || !n.d.equal(n.value, v)
	}
	n.value, n.err, n.has, n.stale = v, err, true, false
	if changed {
		n.version = s.tick()
	}
	if err != nil {
		s.metrics.recordError("computation")
	}
	return changed
}

// sameError compares errors by identity. Cycle errors are compared by the
// cycle they describe, since every detection creates a new one.
func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == b
	}
	var ca, cb *CycleError
	if errors.As(a, &ca) && errors.As(b, &cb) {
		return ca.Atom == cb.Atom && slices.Equal(ca.Path, cb.Path) && a.Error() == b.Error()
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// commitDeps replaces n's dependency list. For mounted nodes, edges to new
// dependencies are added before edges to dropped ones are removed, so shared
// upstream atoms stay mounted across the switch.
func (s *Store) commitDeps(n *node, deps []dep) {
	old := n.deps
	n.deps = deps
	if n.mount == nil {
		return
	}

	keep := make(map[uint64]struct{}, len(deps))
	for _, dp := range deps {
		if dp.cycle {
			continue
		}
		keep[dp.d.id] = struct{}{}
		dn := s.nodeFor(dp.d)
		s.mount(dn)
		dn.mount.dependents[n.d.id] = n
	}
	for _, dp := range old {
		if _, ok := keep[dp.d.id]; ok || dp.cycle {
			continue
		}
		if dn := s.nodes[dp.d.id]; dn != nil && dn.mount != nil {
			delete(dn.mount.dependents, n.d.id)
			s.maybeUnmount(dn)
		}
	}
}

// mount makes n mounted, computing it and mounting its dependencies first.
func (s *Store) mount(n *node) {
	if n.mount != nil {
		return
	}
	s.ensureFresh(n)

	m := &mountState{dependents: make(map[uint64]*node), seen: n.version}
	n.mount = m
	s.mounted++
	s.metrics.addMounted(1)

	for _, dp := range n.deps {
		if dp.cycle {
			continue
		}
		dn := s.nodeFor(dp.d)
		s.mount(dn)
		dn.mount.dependents[n.d.id] = n
	}

	if onMount := n.d.onMount; onMount != nil {
		d := n.d
		s.hooks = append(s.hooks, func() {
			if n.mount != m {
				return
			}
			m.onUnmount = onMount(func(v any) error {
				return s.setValue(d, v)
			})
		})
	}

	s.logger.Debug("atom: mounted", "store", s.id, "atom", n.d.String())
	s.emit(Event{Kind: EventMount, Atom: n.d.String(), AtomID: n.d.id, Version: n.version})
}

// maybeUnmount unmounts n once it has neither listeners nor mounted
// dependents, cascading to dependencies that lose their last dependent.
// Unmounted nodes are dropped from the store except primitives that were
// written, which keep their value.
func (s *Store) maybeUnmount(n *node) {
	m := n.mount
	if m == nil || len(m.listeners) > 0 || len(m.dependents) > 0 {
		return
	}
	n.mount = nil
	s.mounted--
	s.metrics.addMounted(-1)

	if m.onUnmount != nil {
		s.hooks = append(s.hooks, m.onUnmount)
	}
	for _, dp := range n.deps {
		if dp.cycle {
			continue
		}
		if dn := s.nodes[dp.d.id]; dn != nil && dn.mount != nil {
			delete(dn.mount.dependents, n.d.id)
			s.maybeUnmount(dn)
		}
	}
	if fl := n.inflight; fl != nil {
		fl.cancel()
		n.inflight = nil
	}
	if n.d.kind != kindValue || !n.written {
		delete(s.nodes, n.d.id)
	}

	s.logger.Debug("atom: unmounted", "store", s.id, "atom", n.d.String())
	s.emit(Event{Kind: EventUnmount, Atom: n.d.String(), AtomID: n.d.id, Version: n.version})
}

// invalidate marks every mounted node downstream of n stale.
func (s *Store) invalidate(n *node) {
	if n.mount == nil {
		return
	}
	queue := []*node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dn := range cur.mount.dependents {
			if dn.stale || dn.mount == nil {
				continue
			}
			dn.stale = true
			queue = append(queue, dn)
		}
	}
}
