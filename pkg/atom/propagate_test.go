package atom

import (
	"reflect"
	"testing"
)

func TestGlitchFreeDiamond(t *testing.T) {
	s := NewStore()
	p := NewValue(1)
	plus := NewComputed(func(get Getter) (int, error) {
		v, err := Get(get, p)
		return v + 1, err
	})
	times := NewComputed(func(get Getter) (int, error) {
		v, err := Get(get, p)
		return v * 2, err
	})
	computations := 0
	sum := NewComputed(func(get Getter) (int, error) {
		computations++
		a, _ := Get(get, plus)
		b, _ := Get(get, times)
		return a + b, nil
	})

	var seen []int
	unwatch := Watch(s, sum, func(v int, _ error) { seen = append(seen, v) })
	defer unwatch()

	_ = Set(s, p, 5)

	if !reflect.DeepEqual(seen, []int{16}) {
		t.Errorf("expected a single consistent notification [16], got %v", seen)
	}
	if computations != 2 {
		t.Errorf("expected sum computed once per pass, got %d computations", computations)
	}
}

func TestGlitchFreeChain(t *testing.T) {
	s := NewStore()
	p := NewValue(1)
	d1 := NewComputed(func(get Getter) (int, error) {
		v, err := Get(get, p)
		return v * 10, err
	})
	d2 := NewComputed(func(get Getter) (int, error) {
		v, err := Get(get, d1)
		return v + 1, err
	})

	var log []string
	// Subscribe downstream first so order does not follow registration.
	u2 := Watch(s, d2, func(v int, _ error) {
		upstream, _ := Get(s, d1)
		if v != upstream+1 {
			t.Errorf("d2=%d observed with d1=%d", v, upstream)
		}
		log = append(log, "d2")
	})
	defer u2()
	u1 := Watch(s, d1, func(int, error) { log = append(log, "d1") })
	defer u1()

	_ = Set(s, p, 2)
	_ = Set(s, p, 3)

	want := []string{"d1", "d2", "d1", "d2"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("expected %v, got %v", want, log)
	}
}

func TestTopoOrder(t *testing.T) {
	s := NewStore()
	root := NewValue(0)
	left := NewComputed(func(get Getter) (int, error) { return Get(get, root) })
	right := NewComputed(func(get Getter) (int, error) { return Get(get, root) })
	join := NewComputed(func(get Getter) (int, error) {
		a, _ := Get(get, right)
		b, _ := Get(get, left)
		return a + b, nil
	})
	unsubscribe := s.Subscribe(join, nil)
	defer unsubscribe()

	rn := s.nodes[root.ID()]
	order := topoOrder(frontier([]*node{rn}))

	var got []uint64
	for _, n := range order {
		got = append(got, n.d.id)
	}
	want := []uint64{root.ID(), left.ID(), right.ID(), join.ID()}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestIntermediateWithoutListenerIsLazy(t *testing.T) {
	s := NewStore()
	p := NewValue(1)
	middle := 0
	mid := NewComputed(func(get Getter) (int, error) {
		middle++
		return Get(get, p)
	})
	// A listener on p mounts it but nothing downstream with a listener
	// depends on mid.
	other := NewComputed(func(get Getter) (int, error) { return Get(get, mid) })

	up := s.Subscribe(p, nil)
	defer up()
	_, _ = Get(s, other)
	middle = 0

	_ = Set(s, p, 2)
	if middle != 0 {
		t.Errorf("unmounted intermediate should not recompute eagerly, got %d", middle)
	}
	if v, _ := Get(s, other); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if middle != 1 {
		t.Errorf("expected recompute on read, got %d", middle)
	}
}

func TestPassPullsIntermediateOnce(t *testing.T) {
	s := NewStore()
	p := NewValue(1)
	mids := 0
	mid := NewComputed(func(get Getter) (int, error) {
		mids++
		return Get(get, p)
	})
	leaf := NewComputed(func(get Getter) (int, error) { return Get(get, mid) })

	// mid has no listener of its own; the pass pulls it through leaf.
	unsubscribe := s.Subscribe(leaf, nil)
	defer unsubscribe()
	mids = 0

	_ = Set(s, p, 2)
	if mids != 1 {
		t.Errorf("expected mid recomputed once while refreshing leaf, got %d", mids)
	}
	if v, _ := Get(s, leaf); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if mids != 1 {
		t.Errorf("expected no extra recompute, got %d", mids)
	}
}
