package atom

import "context"

// frame is the Getter handed to a read function. It records the atoms read
// during one computation.
type frame struct {
	s    *Store
	n    *node
	deps []dep

	// done is set when the read function returns. Later reads through a
	// retained Getter are untracked.
	done bool
}

func (f *frame) owner() *Store { return f.s }

func (f *frame) get(d *descriptor) (any, error) {
	var v any
	var err error
	_ = f.s.do(func() error {
		if f.done {
			v, err = f.s.read(d)
			return nil
		}
		dn := f.s.nodeFor(d)
		if dn.inProgress() {
			err = f.s.cycleError(d)
			if dn != f.n {
				f.track(d, dn.version, true)
			}
			return nil
		}
		f.s.ensureFresh(dn)
		v, err = dn.value, dn.err
		f.track(d, dn.version, false)
		return nil
	})
	return v, err
}

// track appends d unless this computation already read it.
func (f *frame) track(d *descriptor, version uint64, cycle bool) {
	for i := range f.deps {
		if f.deps[i].d == d {
			f.deps[i].version = version
			f.deps[i].cycle = f.deps[i].cycle || cycle
			return
		}
	}
	f.deps = append(f.deps, dep{d: d, version: version, cycle: cycle})
}

// cycleError describes a read of d while d is being computed.
func (s *Store) cycleError(d *descriptor) error {
	start := 0
	for i, sd := range s.stack {
		if sd == d {
			start = i
			break
		}
	}
	path := make([]string, 0, len(s.stack)-start)
	for _, sd := range s.stack[start:] {
		path = append(path, sd.String())
	}
	s.metrics.recordError("cycle")
	return &CycleError{Atom: d.String(), Path: path}
}

// asyncFrame is the Getter handed to a load function. Reads are tracked only
// while its load is the current one for the node.
type asyncFrame struct {
	s  *Store
	n  *node
	fl *inflight
}

func (f *asyncFrame) owner() *Store { return f.s }

func (f *asyncFrame) get(d *descriptor) (any, error) {
	var v any
	var err error
	_ = f.s.do(func() error {
		if d == f.n.d {
			f.s.metrics.recordError("cycle")
			err = &CycleError{Atom: d.String(), Path: []string{d.String()}}
			return nil
		}
		if !f.s.flightCurrent(f.n, f.fl) {
			v, err = f.s.read(d)
			return nil
		}
		dn := f.s.nodeFor(d)
		if dn.inProgress() {
			err = f.s.cycleError(d)
			return nil
		}
		// Computations started from here that read the loading atom see a
		// cycle instead of its Loading snapshot.
		f.s.within(f.n, func() { f.s.ensureFresh(dn) })
		v, err = dn.value, dn.err
		f.s.trackAsync(f.n, f.fl, d, dn)
		return nil
	})
	return v, err
}

// within runs fn with n marked as computing. Must hold the lock.
func (s *Store) within(n *node, fn func()) {
	prev := n.computing
	n.computing = true
	s.stack = append(s.stack, n.d)
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		n.computing = prev
	}()
	fn()
}

// trackAsync records d as a dependency of the in-flight load. The node keeps
// the union of its previous dependencies and those read by the load so far,
// so that changes to either restart it.
func (s *Store) trackAsync(n *node, fl *inflight, d *descriptor, dn *node) {
	fl.deps = upsertDep(fl.deps, d, dn.version)
	n.deps = upsertDep(n.deps, d, dn.version)
	if n.mount != nil {
		s.mount(dn)
		dn.mount.dependents[n.d.id] = n
	}
}

func upsertDep(deps []dep, d *descriptor, version uint64) []dep {
	for i := range deps {
		if deps[i].d == d {
			deps[i].version = version
			return deps
		}
	}
	return append(deps, dep{d: d, version: version})
}

// invokeRead runs a read function, converting a panic into an error.
func invokeRead(d *descriptor, get Getter) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &panicError{value: r}
		}
	}()
	return d.read(get)
}

// invokeLoad runs a load function, converting a panic into an error.
func invokeLoad(ctx context.Context, d *descriptor, get Getter) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &panicError{value: r}
		}
	}()
	return d.load(ctx, get)
}

// invokeWrite runs a write function, converting a panic into an error.
func invokeWrite(d *descriptor, get Getter, set Setter, arg any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return d.write(get, set, arg)
}
