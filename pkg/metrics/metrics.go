// Package metrics exports querysync activity as Prometheus metrics.
//
// A Collector implements urlsync.Observer and navbridge.Observer, so one value
// can be handed to both:
//
//	c := metrics.New(metrics.WithRegistry(reg))
//	bridge := navbridge.New(host, navbridge.WithObserver(c))
//	engine, _ := urlsync.New(host, schema, render, urlsync.WithBridge(bridge), urlsync.WithObserver(c))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/navbridge"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "querysync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for message handling duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "querysync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the querysync metrics.
type Collector struct {
	commits         *prometheus.CounterVec
	noopPatches     prometheus.Counter
	publishes       prometheus.Counter
	errors          *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	intercepting    prometheus.Gauge
	sessions        prometheus.Gauge
	messages        *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
}

// New registers the querysync metrics and returns their collector.
// Registering twice against the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of addresses committed by engines",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		noopPatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "noop_patches_total",
			Help:        "Total number of patches that left the query string unchanged",
			ConstLabels: config.ConstLabels,
		}),

		publishes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "publishes_total",
			Help:        "Total number of snapshots published",
			ConstLabels: config.ConstLabels,
		}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of reported parse, serialize and validation failures",
			ConstLabels: config.ConstLabels,
		}, []string{"category"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_notifications_total",
			Help:        "Total number of navigation notifications broadcast",
			ConstLabels: config.ConstLabels,
		}, []string{"source"}),

		intercepting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridges_intercepting",
			Help:        "Number of hosts whose navigation primitives are intercepted",
			ConstLabels: config.ConstLabels,
		}),

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of active WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_total",
			Help:        "Total number of protocol messages by type and direction",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "direction"}),

		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "message_duration_seconds",
			Help:        "Inbound message handling duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"type"}),
	}
}

// Committed implements urlsync.Observer.
func (c *Collector) Committed(mode history.Mode) {
	c.commits.WithLabelValues(mode.String()).Inc()
}

// PatchSkipped implements urlsync.Observer.
func (c *Collector) PatchSkipped() {
	c.noopPatches.Inc()
}

// Published implements urlsync.Observer.
func (c *Collector) Published() {
	c.publishes.Inc()
}

// ErrorReported implements urlsync.Observer.
func (c *Collector) ErrorReported(category string) {
	c.errors.WithLabelValues(category).Inc()
}

// BridgeNotified implements navbridge.Observer.
func (c *Collector) BridgeNotified(source navbridge.Source) {
	c.notifications.WithLabelValues(source.String()).Inc()
}

// BridgeIntercepting implements navbridge.Observer.
func (c *Collector) BridgeIntercepting(active bool) {
	if active {
		c.intercepting.Inc()
		return
	}
	c.intercepting.Dec()
}

// SessionOpened records a new WebSocket session.
func (c *Collector) SessionOpened() {
	c.sessions.Inc()
}

// SessionClosed records the end of a WebSocket session.
func (c *Collector) SessionClosed() {
	c.sessions.Dec()
}

// MessageReceived records an inbound message and how long it took to handle.
func (c *Collector) MessageReceived(msgType string, d time.Duration) {
	c.messages.WithLabelValues(msgType, "in").Inc()
	c.messageDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

// MessageSent records an outbound message.
func (c *Collector) MessageSent(msgType string) {
	c.messages.WithLabelValues(msgType, "out").Inc()
}
