package atom

import (
	"context"
	"time"
)

// inflight is a running load of an async atom.
type inflight struct {
	token   uint64
	cancel  context.CancelFunc
	done    chan struct{}
	deps    []dep
	started time.Time
}

// startLoad supersedes any running load of n and starts a new one. The node
// switches to a Loading snapshot whose Done channel closes when the new load
// returns.
func (s *Store) startLoad(n *node) {
	if fl := n.inflight; fl != nil {
		fl.cancel()
		n.inflight = nil
		s.discard(n, "superseded")
	}

	// The new load observes current values, so previously recorded
	// dependencies are re-stamped with their current versions.
	deps := make([]dep, 0, len(n.deps))
	for _, dp := range n.deps {
		if dn := s.nodes[dp.d.id]; dn != nil {
			deps = append(deps, dep{d: dp.d, version: dn.version, cycle: dp.cycle})
		}
	}
	n.deps = deps
	n.epoch++

	if s.ctx.Err() != nil {
		s.storeLoad(n, nil, ErrClosed)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	fl := &inflight{
		token:   n.epoch,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	n.inflight = fl
	n.loading = true
	n.value = n.d.loadable(Loading, nil, nil, fl.done)
	n.err = nil
	n.has = true
	n.stale = false
	n.version = s.tick()

	s.metrics.recordRecompute(n.d.kindName())
	s.emit(Event{Kind: EventRecompute, Atom: n.d.String(), AtomID: n.d.id, Version: n.version})

	go s.runLoad(ctx, n, fl)
}

func (s *Store) runLoad(ctx context.Context, n *node, fl *inflight) {
	defer close(fl.done)
	v, err := invokeLoad(ctx, n.d, &asyncFrame{s: s, n: n, fl: fl})
	_ = s.do(func() error {
		s.settle(n, fl, v, err)
		return nil
	})
}

// flightCurrent reports whether fl is the load the store is waiting for.
func (s *Store) flightCurrent(n *node, fl *inflight) bool {
	return s.nodes[n.d.id] == n && n.inflight == fl && n.epoch == fl.token
}

// settle records the outcome of a load unless it was superseded or the
// values it read have changed since, in which case it is dropped and, for
// mounted atoms, a fresh load is started.
func (s *Store) settle(n *node, fl *inflight, v any, err error) {
	if !s.flightCurrent(n, fl) {
		s.discard(n, "superseded")
		return
	}
	n.inflight = nil
	fl.cancel()

	// Atoms the load read may read n in turn; that is a cycle, not a reason
	// to start another load.
	var current bool
	s.within(n, func() { current = s.flightDepsCurrent(fl) })
	if n.stale || !current {
		s.discard(n, "stale")
		n.stale = true
		if n.mount != nil {
			s.startLoad(n)
			s.invalidate(n)
			s.pending = append(s.pending, n)
		}
		return
	}

	s.commitDeps(n, fl.deps)
	s.metrics.observeLoad(time.Since(fl.started))
	if s.storeLoad(n, v, err) {
		s.invalidate(n)
		s.pending = append(s.pending, n)
	}
}

// storeLoad replaces n's Loading snapshot with a settled one.
func (s *Store) storeLoad(n *node, v any, err error) bool {
	var lv any
	if err != nil {
		err = wrapComputation(n.d, err)
		lv = n.d.loadable(Failed, nil, err, nil)
		s.metrics.recordError("computation")
	} else {
		lv = n.d.loadable(Ready, v, nil, nil)
	}
	changed := !n.has || !n.d.equal(n.value, lv) || !sameError(n.err, err)
	n.value, n.err, n.has, n.stale, n.loading = lv, err, true, false, false
	if changed {
		n.version = s.tick()
	}
	s.emit(Event{Kind: EventRecompute, Atom: n.d.String(), AtomID: n.d.id, Version: n.version, Err: err})
	return changed
}

// flightDepsCurrent reports whether every atom read by fl still has the
// version it had when read.
func (s *Store) flightDepsCurrent(fl *inflight) bool {
	for _, dp := range fl.deps {
		dn := s.nodes[dp.d.id]
		if dn == nil {
			return false
		}
		s.ensureFresh(dn)
		if dn.version != dp.version {
			return false
		}
	}
	return true
}

func (s *Store) discard(n *node, reason string) {
	s.metrics.recordDiscard()
	s.logger.Debug("atom: discarded load", "store", s.id, "atom", n.d.String(), "reason", reason)
	s.emit(Event{Kind: EventDiscard, Atom: n.d.String(), AtomID: n.d.id, Version: n.version, Reason: reason})
}
