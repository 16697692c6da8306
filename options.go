package tagrelay

import (
	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/internal/metrics"
	"github.com/bft-labs/tagrelay/internal/ports"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// Re-export the types needed to plug custom collaborators into a Relay.
type (
	// Logger is the structured logger interface from pkg/log.
	Logger = log.Logger

	// TagReader produces raw tag reads.
	TagReader = ports.TagReader

	// TagRead is one raw read.
	TagRead = domain.TagRead

	// Indicator shows scanner state to the operator.
	Indicator = ports.Indicator

	// Signal is one indicator color pattern.
	Signal = domain.Signal

	// BrokerDialer opens broker connections.
	BrokerDialer = ports.BrokerDialer

	// Metrics is the Prometheus collector set.
	Metrics = metrics.Metrics
)

// Option configures optional behavior of a Relay.
type Option func(*options)

type options struct {
	logger         log.Logger
	reader         ports.TagReader
	indicator      ports.Indicator
	dialer         ports.BrokerDialer
	metrics        *metrics.Metrics
	statusHandler  func(connected bool)
	stateObserver  func(previous, current State, reason string)
	simulationSeed int64
}

// WithLogger sets the logger. Without it nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithReader replaces the default tag reader (stdin lines, or the simulator
// when Config.Simulate is set).
func WithReader(r TagReader) Option {
	return func(o *options) {
		o.reader = r
	}
}

// WithIndicator replaces the logging indicator.
func WithIndicator(ind Indicator) Option {
	return func(o *options) {
		o.indicator = ind
	}
}

// WithDialer replaces the RabbitMQ dialer.
func WithDialer(d BrokerDialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithMetrics shares a collector set, for example one registered by the host
// application.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithStatusHandler is called once per broker connectivity transition, after
// the indicator has been updated. It may call back into the Relay.
func WithStatusHandler(fn func(connected bool)) Option {
	return func(o *options) {
		o.statusHandler = fn
	}
}

// WithStateObserver is called on every service lifecycle transition.
func WithStateObserver(fn func(previous, current State, reason string)) Option {
	return func(o *options) {
		o.stateObserver = fn
	}
}

// WithSimulationSeed fixes the sequence of the simulated reader.
func WithSimulationSeed(seed int64) Option {
	return func(o *options) {
		o.simulationSeed = seed
	}
}
