// Package atom provides a fine-grained, dependency-tracked state store.
//
// State lives in atoms. An atom is an immutable descriptor: it holds no value
// itself. Values live in a Store, keyed by the atom's identity, so the same
// descriptor can be declared once at package scope and have independent state
// in every store it is used with.
//
// # Atoms
//
// A primitive atom holds a value that can be replaced:
//
//	count := atom.NewValue(0).Named("count")
//
// A computed atom derives its value from other atoms. Dependencies are not
// declared; they are discovered by observing which atoms the read function
// reads through the Getter it is handed:
//
//	doubled := atom.NewComputed(func(get atom.Getter) (int, error) {
//	    n, err := atom.Get(get, count)
//	    return n * 2, err
//	})
//
// A writable atom adds a write function that fans one logical write out to
// other atoms:
//
//	reset := atom.NewWritable(
//	    func(get atom.Getter) (int, error) { return atom.Get(get, count) },
//	    func(get atom.Getter, set atom.Setter, _ struct{}) error {
//	        return atom.Set(set, count, 0)
//	    },
//	)
//
// An async atom loads its value in the background and exposes it as a
// Loadable:
//
//	user := atom.NewAsync(func(ctx context.Context, get atom.Getter) (User, error) {
//	    id, err := atom.Get(get, userID)
//	    if err != nil {
//	        return User{}, err
//	    }
//	    return fetchUser(ctx, id)
//	})
//
// # Stores
//
//	s := atom.NewStore()
//	v, err := atom.Get(s, doubled)      // 0
//	err = atom.Set(s, count, 5)         // propagates to mounted dependents
//	unsubscribe := s.Subscribe(doubled, func() { ... })
//	defer unsubscribe()
//
// Reads are lazy and memoized. Writes mark every mounted dependent stale and
// eagerly recompute the ones that have listeners, in topological order, so a
// listener never observes a value derived from a stale upstream atom. An atom
// is mounted while it has listeners or mounted dependents; when the last one
// goes away it is unmounted and its cached state is released.
//
// # Concurrency
//
// A Store serializes all graph mutations behind one lock. The lock is
// re-entrant for the goroutine holding it, so read and write functions may
// call back into the store. Listeners run after the lock is released and may
// read or write the store; notifications they cause are queued and delivered
// in order by the goroutine already flushing.
package atom
