package atom

import (
	"math"
	"testing"
)

func TestDefaultEqual(t *testing.T) {
	type point struct{ X, Y int }
	slice := []int{1, 2}
	m := map[string]int{"a": 1}
	nan32 := float32(math.NaN())

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"mixed types", 1, int64(1), false},
		{"nil", nil, nil, true},
		{"nil and value", nil, 0, false},
		{"floats", 1.5, 1.5, true},
		{"nan", math.NaN(), math.NaN(), true},
		{"nan and number", math.NaN(), 1.0, false},
		{"float32 nan", nan32, nan32, true},
		{"float32 nan and number", nan32, float32(1), false},
		{"same slice", slice, slice, true},
		{"equal slices", slice, []int{1, 2}, false},
		{"same map", m, m, true},
		{"equal maps", m, map[string]int{"a": 1}, false},
		{"comparable structs", point{1, 2}, point{1, 2}, true},
		{"different structs", point{1, 2}, point{2, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("defaultEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNaNDoesNotRenotify(t *testing.T) {
	s := NewStore()
	factor := NewValue(1.0)
	undefined := NewComputed(func(get Getter) (float64, error) {
		f, err := Get(get, factor)
		return math.NaN() * f, err
	})

	calls := 0
	unsubscribe := s.Subscribe(undefined, func() { calls++ })
	defer unsubscribe()

	_ = Set(s, factor, 2)
	_ = Set(s, factor, 3)
	if calls != 0 {
		t.Errorf("expected no notifications for a value stuck at NaN, got %d", calls)
	}
}
