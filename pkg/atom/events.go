package atom

import (
	"fmt"
	"sort"
	"time"
)

// EventKind identifies a store event.
type EventKind string

const (
	EventSet       EventKind = "set"
	EventRecompute EventKind = "recompute"
	EventNotify    EventKind = "notify"
	EventMount     EventKind = "mount"
	EventUnmount   EventKind = "unmount"
	EventDiscard   EventKind = "discard"
	EventPropagate EventKind = "propagate"
)

// Event describes one step of store activity, for dev tooling.
type Event struct {
	Kind    EventKind
	Store   string
	Time    time.Time
	Atom    string
	AtomID  uint64
	Version uint64
	Err     error

	// Reason explains a discard.
	Reason string

	// Frontier and Notified summarize a propagation pass.
	Frontier int
	Notified int
}

// Observe registers fn to receive every subsequent event. Events of one
// operation are delivered together after the operation's notifications are
// queued, on the goroutine flushing the store. The returned function stops
// delivery.
func (s *Store) Observe(fn func(Event)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.omu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	s.omu.Unlock()

	return func() {
		s.omu.Lock()
		delete(s.observers, id)
		s.omu.Unlock()
	}
}

func (s *Store) observed() bool {
	s.omu.RLock()
	defer s.omu.RUnlock()
	return len(s.observers) > 0
}

// emit buffers an event until the operation commits. Must hold the lock.
func (s *Store) emit(e Event) {
	if !s.observed() {
		return
	}
	e.Store = s.id
	e.Time = time.Now()
	s.events = append(s.events, e)
}

// publishEvents queues buffered events for delivery to observers.
func (s *Store) publishEvents() {
	if len(s.events) == 0 {
		return
	}
	events := s.events
	s.events = nil
	s.enqueue(func() {
		s.omu.RLock()
		observers := make([]func(Event), 0, len(s.observers))
		ids := make([]uint64, 0, len(s.observers))
		for id := range s.observers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			observers = append(observers, s.observers[id])
		}
		s.omu.RUnlock()

		for _, e := range events {
			for _, fn := range observers {
				fn(e)
			}
		}
	})
}

// NodeInfo is a point-in-time description of one atom in a store.
type NodeInfo struct {
	ID         uint64   `json:"id"`
	Label      string   `json:"label"`
	Kind       string   `json:"kind"`
	Mounted    bool     `json:"mounted"`
	Listeners  int      `json:"listeners"`
	Deps       []uint64 `json:"deps"`
	Dependents []uint64 `json:"dependents"`
	Epoch      uint64   `json:"epoch"`
	Version    uint64   `json:"version"`
	Stale      bool     `json:"stale"`
	Loading    bool     `json:"loading"`
	Written    bool     `json:"written"`
	Value      string   `json:"value"`
	Error      string   `json:"error,omitempty"`
}

// Snapshot describes every atom holding state in the store, ordered by id.
// It does not compute anything: stale values are reported as cached.
func (s *Store) Snapshot() []NodeInfo {
	var out []NodeInfo
	_ = s.do(func() error {
		out = make([]NodeInfo, 0, len(s.nodes))
		for _, n := range s.nodes {
			out = append(out, s.describe(n))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Inspect describes a single atom, reporting false when it holds no state.
func (s *Store) Inspect(a AnyAtom) (NodeInfo, bool) {
	var info NodeInfo
	var ok bool
	_ = s.do(func() error {
		n, found := s.nodes[a.ID()]
		if found {
			info, ok = s.describe(n), true
		}
		return nil
	})
	return info, ok
}

func (s *Store) describe(n *node) NodeInfo {
	info := NodeInfo{
		ID:      n.d.id,
		Label:   n.d.String(),
		Kind:    n.d.kindName(),
		Mounted: n.mount != nil,
		Epoch:   n.epoch,
		Version: n.version,
		Stale:   n.stale,
		Loading: n.loading,
		Written: n.written,
		Deps:    make([]uint64, 0, len(n.deps)),
	}
	for _, dp := range n.deps {
		info.Deps = append(info.Deps, dp.d.id)
	}
	if n.mount != nil {
		info.Listeners = len(n.mount.listeners)
		info.Dependents = make([]uint64, 0, len(n.mount.dependents))
		for id := range n.mount.dependents {
			info.Dependents = append(info.Dependents, id)
		}
		sort.Slice(info.Dependents, func(i, j int) bool { return info.Dependents[i] < info.Dependents[j] })
	}
	if n.has {
		info.Value = fmt.Sprint(n.value)
	}
	if n.err != nil {
		info.Error = n.err.Error()
	}
	return info
}
