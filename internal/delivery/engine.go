// Package delivery implements the reliable delivery engine: one broker
// connection, a background connection monitor, a durable fallback queue and
// in-order replay once the broker is reachable again.
//
// All state that both the scan path and the monitor touch (the connection,
// the connected flag and the fallback store) is guarded by a single mutex, so
// no publish, persist, replay or reconnect ever interleaves with another.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/internal/metrics"
	"github.com/bft-labs/tagrelay/internal/ports"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// ShutdownTimeout bounds how long Close waits for the monitor to exit.
const ShutdownTimeout = 2 * time.Second

// Default timings.
const (
	DefaultRetryInterval     = 30 * time.Second
	DefaultConnectionTimeout = 5 * time.Second
)

// Config describes the single outbound destination.
type Config struct {
	Host              string
	Port              int
	QueueName         string
	RoutingKey        string
	UseSSL            bool
	RetryInterval     time.Duration
	ConnectionTimeout time.Duration
}

// Engine delivers composed messages to the broker, or to the fallback store
// when the broker is unavailable.
type Engine struct {
	cfg     Config
	dialer  ports.BrokerDialer
	store   ports.FallbackStore
	logger  log.Logger
	metrics *metrics.Metrics
	onState func(connected bool)
	now     func() time.Time

	mu       sync.Mutex
	conn     ports.BrokerConn
	state    domain.ConnectionState
	failures int
	closed   bool

	// Read by Close without mu, which the monitor may hold across a dial.
	started atomic.Bool

	// Status notifications queued under mu and delivered outside it.
	pending     []bool
	dispatching bool

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// Option configures optional behavior of an Engine.
type Option func(*Engine)

// WithStatusCallback registers fn to be called once per connection state
// transition. It is called outside the engine lock and may call back into
// the engine.
func WithStatusCallback(fn func(connected bool)) Option {
	return func(e *Engine) {
		e.onState = fn
	}
}

// WithMetrics records engine activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the clock used for fallback timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a disconnected engine. Call Start to launch the connection
// monitor, or Connect to attempt a connection synchronously.
func New(cfg Config, dialer ports.BrokerDialer, store ports.FallbackStore, logger log.Logger, opts ...Option) *Engine {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = cfg.QueueName
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	e := &Engine{
		cfg:    cfg,
		dialer: dialer,
		store:  store,
		logger: logger,
		now:    time.Now,
		state:  domain.Disconnected,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	e.metrics.FallbackQueueDepth.Set(float64(store.Count()))
	return e
}

// Connect dials the broker. On success the engine becomes Connected and
// replays the fallback queue before returning.
func (e *Engine) Connect(ctx context.Context) bool {
	defer e.dispatch()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	return e.connectLocked(ctx)
}

// IsConnected probes the current connection. A failed probe counts as a
// disconnect.
func (e *Engine) IsConnected() bool {
	defer e.dispatch()
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.isConnectedLocked()
}

// Transmit publishes msg to the broker, falling back to the fallback store.
// It returns an error wrapping domain.ErrDeliveryExhausted only when both
// paths failed, and one wrapping domain.ErrInvalidMessage, without any
// delivery attempt, when msg does not validate.
func (e *Engine) Transmit(ctx context.Context, msg domain.Message) (domain.TransmitResult, error) {
	if err := msg.Validate(); err != nil {
		return domain.TransmitResult{}, fmt.Errorf("transmit: %w", err)
	}

	defer e.dispatch()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.publishLocked(ctx, msg) {
		e.metrics.TransmitTotal.WithLabelValues(domain.MethodBroker).Inc()
		e.logger.Info("message published",
			log.String("message_id", msg.MessageID),
			log.String("queue", e.cfg.QueueName),
		)
		return domain.TransmitResult{
			Message:           msg,
			Method:            domain.MethodBroker,
			FallbackQueueSize: e.store.Count(),
		}, nil
	}

	if err := e.persistLocked(msg); err != nil {
		e.metrics.DeliveryFailuresTotal.Inc()
		e.logger.Error("message lost: broker and fallback both failed",
			log.String("message_id", msg.MessageID),
			log.Err(err),
		)
		return domain.TransmitResult{}, fmt.Errorf("transmit %s: %w: %w", msg.MessageID, domain.ErrDeliveryExhausted, err)
	}

	queued := e.store.Count()
	e.metrics.TransmitTotal.WithLabelValues(domain.MethodFallbackFile).Inc()
	e.metrics.FallbackQueueDepth.Set(float64(queued))
	e.logger.Info("message saved to fallback file",
		log.String("message_id", msg.MessageID),
		log.String("path", e.store.Path()),
		log.Int("queued", queued),
	)
	return domain.TransmitResult{
		Message:           msg,
		Method:            domain.MethodFallbackFile,
		FallbackQueueSize: queued,
	}, nil
}

// FallbackCount returns the number of queued fallback messages.
func (e *Engine) FallbackCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Count()
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() domain.TransmitterStatus {
	defer e.dispatch()
	e.mu.Lock()
	defer e.mu.Unlock()

	return domain.TransmitterStatus{
		Connected:     e.isConnectedLocked(),
		Host:          e.cfg.Host,
		Port:          e.cfg.Port,
		QueueName:     e.cfg.QueueName,
		FallbackCount: e.store.Count(),
		FallbackFile:  e.store.Path(),
		UseSSL:        e.cfg.UseSSL,
	}
}

// State returns the last known connection state without probing.
func (e *Engine) State() domain.ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close stops the monitor, abandoning any dial or replay in flight, closes
// the connection and marks the engine Disconnected. It waits at most
// ShutdownTimeout for the monitor. Messages transmitted after Close go to
// the fallback store.
func (e *Engine) Close() error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	var err error
	if e.started.Load() {
		select {
		case <-e.doneCh:
		case <-time.After(ShutdownTimeout):
			e.logger.Warn("connection monitor did not stop in time",
				log.Duration("timeout", ShutdownTimeout),
			)
			err = domain.ErrShutdownTimeout
		}
	}

	defer e.dispatch()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.conn != nil {
		if cerr := e.conn.Close(); cerr != nil {
			e.logger.Error("error closing broker connection", log.Err(cerr))
		} else {
			e.logger.Info("broker connection closed")
		}
		e.conn = nil
	}
	e.setStateLocked(domain.Disconnected)
	return err
}

func (e *Engine) connectLocked(ctx context.Context) bool {
	if e.conn != nil {
		if e.conn.Alive() == nil {
			e.replayLocked(ctx)
			return true
		}
		e.dropConnLocked()
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.ConnectionTimeout)
	conn, err := e.dialer.Dial(dialCtx)
	cancel()
	if err != nil {
		e.failures++
		switch {
		case e.state == domain.Connected:
			e.logger.Error("lost connection to broker", log.Err(err))
		case e.failures == 1:
			e.logger.Warn("unable to connect to broker, messages will be stored locally",
				log.String("host", e.cfg.Host),
				log.Int("port", e.cfg.Port),
				log.Err(err),
			)
		default:
			e.logger.Debug("reconnect attempt failed",
				log.Int("attempt", e.failures),
				log.Err(err),
			)
		}
		e.setStateLocked(domain.Disconnected)
		return false
	}

	e.conn = conn
	e.failures = 0
	e.logger.Info("connected to broker",
		log.String("host", e.cfg.Host),
		log.Int("port", e.cfg.Port),
		log.String("queue", e.cfg.QueueName),
		log.Bool("ssl", e.cfg.UseSSL),
	)
	e.setStateLocked(domain.Connected)
	e.replayLocked(ctx)
	return true
}

func (e *Engine) isConnectedLocked() bool {
	if e.conn == nil {
		e.setStateLocked(domain.Disconnected)
		return false
	}
	if err := e.conn.Alive(); err != nil {
		e.logger.Warn("broker connection probe failed", log.Err(err))
		e.dropConnLocked()
		e.setStateLocked(domain.Disconnected)
		return false
	}
	return true
}

// publishLocked makes exactly one delivery attempt. It never retries.
func (e *Engine) publishLocked(ctx context.Context, msg domain.Message) bool {
	if !e.isConnectedLocked() {
		return false
	}

	body, err := json.Marshal(msg)
	if err != nil {
		e.logger.Error("failed to encode message",
			log.String("message_id", msg.MessageID),
			log.Err(err),
		)
		return false
	}

	pubCtx, cancel := context.WithTimeout(ctx, e.cfg.ConnectionTimeout)
	defer cancel()

	err = e.conn.Publish(pubCtx, ports.Publishing{
		MessageID: msg.MessageID,
		Timestamp: msg.Timestamp,
		Body:      body,
	})
	if err != nil {
		e.logger.Error("failed to publish message",
			log.String("message_id", msg.MessageID),
			log.Err(err),
		)
		e.dropConnLocked()
		e.setStateLocked(domain.Disconnected)
		return false
	}
	return true
}

func (e *Engine) persistLocked(msg domain.Message) error {
	return e.store.Append(domain.FallbackEnvelope{
		OriginalMessage:   msg,
		FallbackTimestamp: e.now(),
		FallbackReason:    domain.FallbackReasonBrokerUnavailable,
		QueueName:         e.cfg.QueueName,
		RoutingKey:        e.cfg.RoutingKey,
	})
}

// replayLocked publishes queued envelopes in file order and stops at the
// first failure, keeping the unsent tail in order. Undecoded entries are
// skipped and stay queued.
func (e *Engine) replayLocked(ctx context.Context) {
	envs, err := e.store.Load()
	if err != nil {
		e.logger.Error("error loading fallback messages", log.Err(err))
		return
	}
	if len(envs) == 0 {
		return
	}

	e.logger.Info("processing fallback messages", log.Int("count", len(envs)))

	var kept []domain.FallbackEnvelope
	sent, next := 0, 0
	for ; next < len(envs); next++ {
		env := envs[next]
		if env.Undecoded() {
			kept = append(kept, env)
			continue
		}
		if !e.publishLocked(ctx, env.OriginalMessage) {
			break
		}
		sent++
	}
	if sent == 0 {
		if len(kept) > 0 {
			e.logger.Debug("fallback file holds undecodable entries", log.Int("count", len(kept)))
		}
		return
	}

	remaining := append(kept, envs[next:]...)
	if err := e.store.Replace(remaining); err != nil {
		// The sent messages stay queued and will be published again.
		e.logger.Error("error rewriting fallback file", log.Err(err))
	}
	e.metrics.ReplayedTotal.Add(float64(sent))
	e.metrics.FallbackQueueDepth.Set(float64(e.store.Count()))
	e.logger.Info("processed fallback messages",
		log.Int("sent", sent),
		log.Int("remaining", len(remaining)),
		log.Int("undecodable", len(kept)),
	)
}

func (e *Engine) dropConnLocked() {
	if e.conn == nil {
		return
	}
	_ = e.conn.Close()
	e.conn = nil
}

func (e *Engine) setStateLocked(s domain.ConnectionState) {
	if e.state == s {
		return
	}
	prev := e.state
	e.state = s
	e.metrics.SetConnected(s == domain.Connected)
	e.pending = append(e.pending, s == domain.Connected)
	e.logger.Info("broker connection state changed",
		log.String("from", prev.String()),
		log.String("to", s.String()),
	)
}

// dispatch delivers queued status notifications in transition order. A
// nested or concurrent call returns immediately; the active dispatcher
// drains whatever was queued meanwhile.
func (e *Engine) dispatch() {
	e.mu.Lock()
	if e.dispatching {
		e.mu.Unlock()
		return
	}
	e.dispatching = true
	for len(e.pending) > 0 {
		batch := e.pending
		e.pending = nil
		e.mu.Unlock()
		if e.onState != nil {
			for _, connected := range batch {
				e.onState(connected)
			}
		}
		e.mu.Lock()
	}
	e.dispatching = false
	e.mu.Unlock()
}
