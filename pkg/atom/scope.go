package atom

import (
	"context"
	"sync"
)

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// Default returns the process-wide store, creating it on first use.
func Default() *Store {
	defaultStoreOnce.Do(func() {
		defaultStore = NewStore(WithLabel("default"))
	})
	return defaultStore
}

type storeKey struct{}

// WithStore returns a context that carries s.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext returns the store carried by ctx, or Default when there is none.
func FromContext(ctx context.Context) *Store {
	if ctx != nil {
		if s, ok := ctx.Value(storeKey{}).(*Store); ok && s != nil {
			return s
		}
	}
	return Default()
}
