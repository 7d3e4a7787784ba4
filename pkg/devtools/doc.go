// Package devtools serves an HTTP inspector for a live atom store.
//
// Routes:
//
//	GET /            store summary
//	GET /atoms       every atom holding state, as JSON
//	GET /atoms/{id}  one atom
//	GET /graph.dot   the dependency graph in Graphviz DOT
//	GET /graph.svg   the dependency graph rendered to SVG
//	GET /events      WebSocket stream of store events
//	GET /metrics     Prometheus metrics
//
// Usage:
//
//	store := atom.NewStore(atom.WithMetrics(metrics))
//	srv := devtools.New(store, devtools.WithGatherer(registry))
//	defer srv.Close()
//	http.ListenAndServe("localhost:7070", srv)
package devtools
