package atom

import (
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// frontier collects the mounted nodes reachable from roots through dependent
// edges, roots included.
func frontier(roots []*node) map[uint64]*node {
	set := make(map[uint64]*node, len(roots))
	queue := make([]*node, 0, len(roots))
	for _, r := range roots {
		if r.mount == nil {
			continue
		}
		if _, ok := set[r.d.id]; !ok {
			set[r.d.id] = r
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for id, dn := range cur.mount.dependents {
			if _, ok := set[id]; ok || dn.mount == nil {
				continue
			}
			set[id] = dn
			queue = append(queue, dn)
		}
	}
	return set
}

// topoOrder sorts the frontier so every node comes after the frontier nodes
// it depends on. Ties are broken by atom id, which keeps the order stable
// across runs.
func topoOrder(set map[uint64]*node) []*node {
	indegree := make(map[uint64]int, len(set))
	for id := range set {
		indegree[id] = 0
	}
	for _, n := range set {
		for id := range n.mount.dependents {
			if _, ok := set[id]; ok {
				indegree[id]++
			}
		}
	}

	ready := make([]*node, 0, len(set))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, set[id])
		}
	}
	byID := func(ns []*node) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].d.id < ns[j].d.id })
	}
	byID(ready)

	order := make([]*node, 0, len(set))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var next []*node
		for id, dn := range n.mount.dependents {
			if _, ok := set[id]; !ok {
				continue
			}
			indegree[id]--
			if indegree[id] == 0 {
				next = append(next, dn)
			}
		}
		if len(next) > 0 {
			ready = append(ready, next...)
			byID(ready)
		}
	}
	return order
}

// propagate refreshes the mounted nodes downstream of the changed roots in
// topological order and queues notifications for those with listeners whose
// version moved since they were last notified. Mounted nodes without
// listeners are refreshed only when a downstream listener pulls them.
func (s *Store) propagate(roots []*node) {
	start := time.Now()
	parent := s.traceCtx
	if parent == nil {
		parent = s.ctx
	}
	_, span := s.tracer.Start(parent, "atom.propagate",
		trace.WithAttributes(
			attribute.String("atom.store", s.id),
			attribute.Int("atom.roots", len(roots)),
		),
	)
	defer span.End()

	set := frontier(roots)
	order := topoOrder(set)

	notified := 0
	for _, n := range order {
		// Earlier refreshes may have unmounted or replaced the node.
		if n.mount == nil || s.nodes[n.d.id] != n || len(n.mount.listeners) == 0 {
			continue
		}
		s.ensureFresh(n)
		m := n.mount
		if m == nil || n.version == m.seen {
			continue
		}
		m.seen = n.version
		notified += s.notify(n)
	}

	span.SetAttributes(
		attribute.Int("atom.frontier", len(set)),
		attribute.Int("atom.notified", notified),
	)
	s.metrics.observePropagation(time.Since(start), len(set), notified)
	s.emit(Event{Kind: EventPropagate, Frontier: len(set), Notified: notified})
}

// notify queues every active listener of n and returns how many were queued.
func (s *Store) notify(n *node) int {
	label := n.d.String()
	count := 0
	for _, l := range n.mount.listeners {
		if l.fn == nil {
			continue
		}
		s.enqueue(func() {
			if l.active.Load() {
				l.fn()
			}
		})
		count++
	}
	s.logger.Debug("atom: notify", "store", s.id, "atom", label, "listeners", count, "version", n.version)
	s.emit(Event{Kind: EventNotify, Atom: label, AtomID: n.d.id, Version: n.version, Err: n.err})
	return count
}
