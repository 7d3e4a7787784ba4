package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/atoms/internal/scenario"
	"github.com/vango-dev/atoms/pkg/atom"
)

// newMetrics registers store metrics on reg using the configured namespace.
func (a *app) newMetrics(reg prometheus.Registerer) *atom.Metrics {
	return atom.NewMetrics(atom.WithRegistry(reg), atom.WithNamespace(a.cfg.Metrics.Namespace))
}

// newStore creates a store configured from the loaded config. m may be nil.
func (a *app) newStore(label string, m *atom.Metrics) *atom.Store {
	opts := append(a.cfg.StoreOptions(),
		atom.WithLabel(label),
		atom.WithLogger(a.logger.With("component", "atom")),
	)
	if m != nil {
		opts = append(opts, atom.WithMetrics(m))
	}
	return atom.NewStore(opts...)
}

// loadProgram parses and compiles a scenario file.
func loadProgram(path string) (*scenario.Program, error) {
	f, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	return scenario.Compile(f)
}
