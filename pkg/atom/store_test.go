package atom

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

func TestGetPrimitive(t *testing.T) {
	s := NewStore()
	count := NewValue(7)

	v, err := Get(s, count)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Errorf("expected 7, got %d", v)
	}
}

func TestDoubledScenario(t *testing.T) {
	s := NewStore()
	count := NewValue(0).Named("count")
	doubled := NewComputed(func(get Getter) (int, error) {
		n, err := Get(get, count)
		return n * 2, err
	}).Named("doubled")

	if v, _ := Get(s, doubled); v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
	if err := Set(s, count, 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := Get(s, doubled); v != 10 {
		t.Fatalf("expected 10, got %d", v)
	}

	calls := 0
	unsubscribe := s.Subscribe(doubled, func() { calls++ })
	defer unsubscribe()

	if calls != 0 {
		t.Fatalf("subscribe must not call the listener, got %d calls", calls)
	}

	_ = Set(s, count, 5)
	if calls != 0 {
		t.Errorf("expected no notification for unchanged value, got %d", calls)
	}

	_ = Set(s, count, 6)
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
	if v, _ := Get(s, doubled); v != 12 {
		t.Errorf("expected 12, got %d", v)
	}

	_ = Set(s, count, 6)
	if calls != 1 {
		t.Errorf("expected still 1 notification after idempotent set, got %d", calls)
	}
}

func TestMemoization(t *testing.T) {
	s := NewStore()
	computations := 0
	count := NewValue(5)
	doubled := NewComputed(func(get Getter) (int, error) {
		computations++
		n, err := Get(get, count)
		return n * 2, err
	})

	for i := 0; i < 3; i++ {
		if v, _ := Get(s, doubled); v != 10 {
			t.Fatalf("expected 10, got %d", v)
		}
	}
	if computations != 1 {
		t.Errorf("expected 1 computation, got %d", computations)
	}

	_ = Set(s, count, 10)
	if v, _ := Get(s, doubled); v != 20 {
		t.Errorf("expected 20, got %d", v)
	}
	if computations != 2 {
		t.Errorf("expected 2 computations, got %d", computations)
	}
}

func TestMemoizationMounted(t *testing.T) {
	s := NewStore()
	computations := 0
	count := NewValue(1)
	doubled := NewComputed(func(get Getter) (int, error) {
		computations++
		n, err := Get(get, count)
		return n * 2, err
	})

	unsubscribe := s.Subscribe(doubled, nil)
	defer unsubscribe()

	_, _ = Get(s, doubled)
	_, _ = Get(s, doubled)
	if computations != 1 {
		t.Errorf("expected 1 computation, got %d", computations)
	}

	_ = Set(s, count, 2)
	_, _ = Get(s, doubled)
	if computations != 2 {
		t.Errorf("expected 2 computations, got %d", computations)
	}
}

func TestUpdate(t *testing.T) {
	s := NewStore()
	count := NewValue(1)

	for i := 0; i < 3; i++ {
		if err := Update(s, count, func(prev int) int { return prev + 1 }); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if v, _ := Get(s, count); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
	if err := Update(s, count, nil); err != nil {
		t.Errorf("nil update should be a no-op, got %v", err)
	}
}

func TestWritableFansOut(t *testing.T) {
	s := NewStore()
	first := NewValue("Ada")
	last := NewValue("Lovelace")
	full := NewWritable(
		func(get Getter) (string, error) {
			f, err := Get(get, first)
			if err != nil {
				return "", err
			}
			l, err := Get(get, last)
			return f + " " + l, err
		},
		func(get Getter, set Setter, name [2]string) error {
			if err := Set(set, first, name[0]); err != nil {
				return err
			}
			return Set(set, last, name[1])
		},
	)

	calls := 0
	unsubscribe := s.Subscribe(full, func() { calls++ })
	defer unsubscribe()

	if err := Write(s, full, [2]string{"Grace", "Hopper"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v, _ := Get(s, full); v != "Grace Hopper" {
		t.Errorf("expected %q, got %q", "Grace Hopper", v)
	}
	if calls != 1 {
		t.Errorf("expected writes inside one write function to notify once, got %d", calls)
	}
}

func TestWriteGetterIsUntracked(t *testing.T) {
	s := NewStore()
	src := NewValue(1)
	reads := 0
	sink := NewWritable(
		func(get Getter) (int, error) {
			reads++
			return 0, nil
		},
		func(get Getter, set Setter, _ struct{}) error {
			_, err := Get(get, src)
			return err
		},
	)

	unsubscribe := s.Subscribe(sink, nil)
	defer unsubscribe()

	_ = Write(s, sink, struct{}{})
	_ = Set(s, src, 2)
	if reads != 1 {
		t.Errorf("reads in a write function must not become dependencies, got %d computations", reads)
	}
}

func TestReducer(t *testing.T) {
	s := NewStore()
	total := NewReducer(0, func(state, delta int) int { return state + delta })

	_ = Write(s, total, 5)
	_ = Write(s, total, 3)
	if v, _ := Get(s, total); v != 8 {
		t.Errorf("expected 8, got %d", v)
	}
}

func TestMultipleStoresAreIndependent(t *testing.T) {
	count := NewValue(0)
	doubled := NewComputed(func(get Getter) (int, error) {
		n, err := Get(get, count)
		return n * 2, err
	})

	s1 := NewStore()
	s2 := NewStore()
	_ = Set(s1, count, 5)

	if v, _ := Get(s1, doubled); v != 10 {
		t.Errorf("s1: expected 10, got %d", v)
	}
	if v, _ := Get(s2, doubled); v != 0 {
		t.Errorf("s2: expected 0, got %d", v)
	}
	if s1.ID() == s2.ID() {
		t.Error("expected distinct store ids")
	}
}

func TestBatchSharesOnePass(t *testing.T) {
	s := NewStore()
	a := NewValue(1)
	b := NewValue(2)
	computations := 0
	sum := NewComputed(func(get Getter) (int, error) {
		computations++
		x, _ := Get(get, a)
		y, _ := Get(get, b)
		return x + y, nil
	})

	calls := 0
	unsubscribe := s.Subscribe(sum, func() { calls++ })
	defer unsubscribe()

	err := s.Batch(func(set Setter) error {
		if err := Set(set, a, 10); err != nil {
			return err
		}
		return Set(set, b, 20)
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
	if computations != 2 {
		t.Errorf("expected 2 computations (initial + batch), got %d", computations)
	}
	if v, _ := Get(s, sum); v != 30 {
		t.Errorf("expected 30, got %d", v)
	}

	// Outside a batch every top-level write propagates on its own.
	_ = Set(s, a, 11)
	_ = Set(s, b, 21)
	if calls != 3 {
		t.Errorf("expected 3 notifications, got %d", calls)
	}
}

func TestBatchReturnsError(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")
	if err := s.Batch(func(Setter) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if err := s.Batch(nil); err != nil {
		t.Errorf("expected nil for nil batch, got %v", err)
	}
}

func TestEqualityOverride(t *testing.T) {
	s := NewStore()
	items := NewValue([]int{1, 2}).WithEquals(DeepEqual[[]int])
	byRef := NewValue([]int{1, 2})

	deep, ref := 0, 0
	u1 := s.Subscribe(items, func() { deep++ })
	defer u1()
	u2 := s.Subscribe(byRef, func() { ref++ })
	defer u2()

	_ = Set(s, items, []int{1, 2})
	_ = Set(s, byRef, []int{1, 2})

	if deep != 0 {
		t.Errorf("structurally equal write should not notify, got %d", deep)
	}
	if ref != 1 {
		t.Errorf("default equality compares slices by identity, expected 1 notification, got %d", ref)
	}
}

func TestDerivedEqualitySuppression(t *testing.T) {
	s := NewStore()
	count := NewValue(0)
	parity := NewComputed(func(get Getter) (int, error) {
		n, err := Get(get, count)
		return n % 2, err
	})
	labels := 0
	label := NewComputed(func(get Getter) (string, error) {
		labels++
		p, err := Get(get, parity)
		if p == 0 {
			return "even", err
		}
		return "odd", err
	})

	calls := 0
	unsubscribe := s.Subscribe(label, func() { calls++ })
	defer unsubscribe()

	_ = Set(s, count, 2)
	if calls != 0 {
		t.Errorf("expected no notification, got %d", calls)
	}
	if labels != 1 {
		t.Errorf("downstream should not recompute when parity is unchanged, got %d computations", labels)
	}

	_ = Set(s, count, 3)
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
	if v, _ := Get(s, label); v != "odd" {
		t.Errorf("expected odd, got %q", v)
	}
}

func TestDynamicDependencies(t *testing.T) {
	s := NewStore()
	useA := NewValue(true)
	a := NewValue("a")
	b := NewValue("b")
	pick := NewComputed(func(get Getter) (string, error) {
		ok, _ := Get(get, useA)
		if ok {
			return Get(get, a)
		}
		return Get(get, b)
	})

	calls := 0
	unsubscribe := s.Subscribe(pick, func() { calls++ })
	defer unsubscribe()

	if got := s.MountedLen(); got != 3 {
		t.Fatalf("expected pick, useA and a mounted, got %d", got)
	}

	_ = Set(s, useA, false)
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
	if got := s.MountedLen(); got != 3 {
		t.Errorf("expected pick, useA and b mounted, got %d", got)
	}
	if info, ok := s.Inspect(a); ok && info.Mounted {
		t.Error("a should be unmounted after the branch switched")
	}

	_ = Set(s, a, "A")
	if calls != 1 {
		t.Errorf("writes to a dropped dependency must not notify, got %d", calls)
	}
	_ = Set(s, b, "B")
	if calls != 2 {
		t.Errorf("expected 2 notifications, got %d", calls)
	}
}

func TestWatch(t *testing.T) {
	s := NewStore()
	count := NewValue(1)

	var seen []int
	unwatch := Watch(s, count, func(v int, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		seen = append(seen, v)
	})

	_ = Set(s, count, 2)
	_ = Set(s, count, 3)
	unwatch()
	_ = Set(s, count, 4)

	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Errorf("expected [2 3], got %v", seen)
	}
}

func TestListenerMayWriteStore(t *testing.T) {
	s := NewStore()
	src := NewValue(0)
	mirror := NewValue(0)

	unsubscribe := s.Subscribe(src, func() {
		v, _ := Get(s, src)
		if err := Set(s, mirror, v*10); err != nil {
			t.Errorf("set from listener: %v", err)
		}
	})
	defer unsubscribe()

	var mirrored []int
	unwatch := Watch(s, mirror, func(v int, _ error) { mirrored = append(mirrored, v) })
	defer unwatch()

	if err := Set(s, src, 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := Get(s, mirror); v != 40 {
		t.Errorf("expected 40, got %d", v)
	}
	if len(mirrored) != 1 || mirrored[0] != 40 {
		t.Errorf("expected mirror listener to see [40], got %v", mirrored)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s := NewStore()
	count := NewValue(0)

	calls := 0
	u1 := s.Subscribe(count, func() { calls++ })
	u2 := s.Subscribe(count, func() { calls++ })
	u1()
	u1()

	_ = Set(s, count, 1)
	if calls != 1 {
		t.Errorf("expected remaining listener to fire once, got %d", calls)
	}
	u2()
	if s.MountedLen() != 0 {
		t.Errorf("expected nothing mounted, got %d", s.MountedLen())
	}
}

func TestListenerPanicIsContained(t *testing.T) {
	s := NewStore()
	count := NewValue(0)

	u1 := s.Subscribe(count, func() { panic("listener failed") })
	defer u1()
	calls := 0
	u2 := s.Subscribe(count, func() { calls++ })
	defer u2()

	if err := Set(s, count, 1); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected second listener to run, got %d calls", calls)
	}
}

func TestFlushBudget(t *testing.T) {
	s := NewStore(WithMaxFlushPasses(10))
	count := NewValue(0)

	unsubscribe := s.Subscribe(count, func() {
		_ = Update(s, count, func(prev int) int { return prev + 1 })
	})
	defer unsubscribe()

	err := Set(s, count, 1)
	if !errors.Is(err, ErrFlushBudget) {
		t.Fatalf("expected ErrFlushBudget, got %v", err)
	}
	if v, _ := Get(s, count); v != 11 {
		t.Errorf("expected 11 after 10 passes, got %d", v)
	}
}

func TestStoreLabel(t *testing.T) {
	s := NewStore(WithLabel("session"))
	if s.Label() != "session" || s.String() != "session" {
		t.Errorf("expected label session, got %q / %q", s.Label(), s.String())
	}
	anon := NewStore()
	if anon.String() != anon.ID() {
		t.Errorf("expected unlabeled store to print its id")
	}
}

func TestAtomIdentity(t *testing.T) {
	a := NewValue(0)
	b := NewComputed(func(get Getter) (int, error) { return Get(get, a) })
	c := NewAsync(func(context.Context, Getter) (int, error) { return 0, nil })
	if a.ID() == 0 || a.ID() >= b.ID() || b.ID() >= c.ID() {
		t.Errorf("expected increasing ids, got %d, %d, %d", a.ID(), b.ID(), c.ID())
	}
	if got := b.String(); got != "atom"+strconv.FormatUint(b.ID(), 10) {
		t.Errorf("expected unlabeled atom to print its id, got %q", got)
	}
}
