package atom

import (
	"runtime"
)

// goroutineID returns the identifier of the calling goroutine, parsed from
// the header of its stack trace ("goroutine <id> [...]").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// acquire takes the store lock. It is re-entrant for the goroutine already
// holding it, and reports whether this call is the outermost one.
func (s *Store) acquire() bool {
	gid := goroutineID()
	if s.holder.Load() == gid {
		s.depth++
		return false
	}
	s.mu.Lock()
	s.holder.Store(gid)
	s.depth = 1
	return true
}

// release undoes one acquire.
func (s *Store) release(outer bool) {
	s.depth--
	if outer {
		s.holder.Store(0)
		s.mu.Unlock()
	}
}

// heldByCaller reports whether the calling goroutine holds the store lock.
func (s *Store) heldByCaller() bool {
	return s.holder.Load() == goroutineID()
}

// do runs fn as one store operation. Calls nested on the goroutine holding
// the lock join the surrounding operation. The outermost call commits pending
// changes before releasing the lock, then delivers queued notifications.
//
// The returned error is fn's error, or the flush error if fn succeeded.
func (s *Store) do(fn func() error) error {
	outer := s.acquire()
	err := s.locked(outer, fn)
	if !outer {
		return err
	}
	if ferr := s.flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func (s *Store) locked(outer bool, fn func() error) error {
	defer s.release(outer)
	err := fn()
	if outer {
		s.commit()
	}
	return err
}

// commit runs mount hooks and propagates pending changes until both settle.
// Hooks may write atoms and propagation may mount or unmount atoms, so the
// two are drained together.
func (s *Store) commit() {
	for len(s.hooks) > 0 || len(s.pending) > 0 {
		hooks := s.hooks
		s.hooks = nil
		for _, hook := range hooks {
			s.runHook(hook)
		}
		if len(s.pending) > 0 {
			roots := s.pending
			s.pending = nil
			s.propagate(roots)
		}
	}
	s.traceCtx = nil
	s.publishEvents()
}

// runHook runs an onMount or onUnmount callback, containing panics.
func (s *Store) runHook(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("atom: mount hook panicked", "store", s.id, "panic", r)
			s.metrics.recordError("hook_panic")
		}
	}()
	hook()
}

// enqueue appends a delivery to the flush work-list.
func (s *Store) enqueue(fn func()) {
	s.qmu.Lock()
	s.queue = append(s.queue, fn)
	s.qmu.Unlock()
}

// flush delivers queued notifications with the store lock released. Only one
// goroutine flushes at a time; deliveries queued while a flush is running,
// including those caused by listeners writing the store, are picked up by the
// running flush in FIFO order.
func (s *Store) flush() error {
	s.qmu.Lock()
	if s.flushing || len(s.queue) == 0 {
		s.qmu.Unlock()
		return nil
	}
	s.flushing = true
	s.qmu.Unlock()

	passes := 0
	for {
		s.qmu.Lock()
		batch := s.queue
		s.queue = nil
		if len(batch) == 0 {
			s.flushing = false
			s.qmu.Unlock()
			return nil
		}
		passes++
		if s.maxPasses > 0 && passes > s.maxPasses {
			s.flushing = false
			s.qmu.Unlock()
			s.logger.Warn("atom: flush budget exceeded, dropping notifications",
				"store", s.id, "passes", passes-1, "dropped", len(batch))
			s.metrics.recordError("flush_budget")
			return ErrFlushBudget
		}
		s.qmu.Unlock()

		for _, fn := range batch {
			s.deliver(fn)
		}
	}
}

// deliver runs one queued callback, containing listener panics.
func (s *Store) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("atom: listener panicked", "store", s.id, "panic", r)
			s.metrics.recordError("listener_panic")
		}
	}()
	fn()
}
