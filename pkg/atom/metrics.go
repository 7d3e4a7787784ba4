package atom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures store metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "atom").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for propagation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures store metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the propagation duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "atom",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records store activity in Prometheus. One Metrics may be shared by
// many stores. A nil *Metrics records nothing.
type Metrics struct {
	recomputes    *prometheus.CounterVec
	writes        prometheus.Counter
	notifications prometheus.Counter
	propagations  prometheus.Counter
	propDuration  prometheus.Histogram
	frontierSize  prometheus.Histogram
	loadDuration  prometheus.Histogram
	discarded     prometheus.Counter
	mounted       prometheus.Gauge
	listeners     prometheus.Gauge
	errors        *prometheus.CounterVec
}

// NewMetrics registers store metrics with the configured registry.
// Registering twice with the same registry panics, as promauto does.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	return &Metrics{
		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputes_total",
			Help:        "Total number of atom computations and load starts",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		writes:        counter("writes_total", "Total number of atom writes"),
		notifications: counter("notifications_total", "Total number of listener notifications queued"),
		propagations:  counter("propagations_total", "Total number of propagation passes"),

		propDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_duration_seconds",
			Help:        "Propagation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		frontierSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "propagation_frontier_size",
			Help:        "Number of mounted atoms visited per propagation pass",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),

		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "load_duration_seconds",
			Help:        "Duration of async atom loads that settled",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		discarded: counter("discarded_loads_total", "Total number of async load results dropped as stale or superseded"),
		mounted:   gauge("mounted_atoms", "Number of mounted atoms"),
		listeners: gauge("listeners", "Number of registered listeners"),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of store errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

func (m *Metrics) recordRecompute(kind string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordWrite() {
	if m == nil {
		return
	}
	m.writes.Inc()
}

func (m *Metrics) observePropagation(d time.Duration, frontier, notified int) {
	if m == nil {
		return
	}
	m.propagations.Inc()
	m.propDuration.Observe(d.Seconds())
	m.frontierSize.Observe(float64(frontier))
	m.notifications.Add(float64(notified))
}

func (m *Metrics) observeLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.loadDuration.Observe(d.Seconds())
}

func (m *Metrics) recordDiscard() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

func (m *Metrics) addMounted(delta int) {
	if m == nil {
		return
	}
	m.mounted.Add(float64(delta))
}

func (m *Metrics) addListeners(delta int) {
	if m == nil {
		return
	}
	m.listeners.Add(float64(delta))
}

func (m *Metrics) recordError(errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errorType).Inc()
}
