package tagrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/tagrelay/internal/adapters/fs"
	"github.com/bft-labs/tagrelay/internal/adapters/indicator"
	"github.com/bft-labs/tagrelay/internal/adapters/rabbitmq"
	"github.com/bft-labs/tagrelay/internal/adapters/reader"
	"github.com/bft-labs/tagrelay/internal/app"
	"github.com/bft-labs/tagrelay/internal/catalog"
	"github.com/bft-labs/tagrelay/internal/cliconfig"
	"github.com/bft-labs/tagrelay/internal/delivery"
	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/internal/metrics"
	"github.com/bft-labs/tagrelay/internal/ports"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// ShutdownTimeout bounds how long Close waits for Run to return.
const ShutdownTimeout = 5 * time.Second

// Config holds the relay configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// State is the service lifecycle state.
type State = app.ServiceState

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

type (
	// TransmitterStatus is a snapshot of the delivery engine.
	TransmitterStatus = domain.TransmitterStatus

	// Statistics are the persisted scan counters.
	Statistics = domain.Statistics
)

// Status is a point-in-time view of a Relay.
type Status struct {
	State            string            `json:"state"`
	Pairing          string            `json:"pairing"`
	Transmitter      TransmitterStatus `json:"transmitter"`
	Statistics       Statistics        `json:"statistics"`
	CatalogObjects   int               `json:"catalog_objects"`
	CatalogLocations int               `json:"catalog_locations"`
}

// Relay wires a tag reader, the item catalog, the pairing state machine and
// the delivery engine into one service. A Relay runs once; create a new one
// to run again.
type Relay struct {
	config    Config
	opts      options
	logger    log.Logger
	metrics   *metrics.Metrics
	lifecycle *app.Lifecycle
	catalog   *catalog.Catalog
	watcher   *catalog.Watcher
	indicator ports.Indicator
	engine    *delivery.Engine
	scanner   *app.Scanner
	statsRepo ports.StatsRepository
	// stdin reader owned by the relay; nil when the caller supplied one.
	ownReader io.Closer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New creates a Relay in StateStopped. It loads the catalog but does not
// touch the broker; call Run to start.
func New(cfg Config, opts ...Option) (*Relay, error) {
	cfg.SetDefaults()

	o := options{simulationSeed: time.Now().UnixNano()}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	m := o.metrics
	if m == nil {
		m = metrics.New()
	}

	cat, err := catalog.Load(cfg.CatalogFile, logger)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	ind := o.indicator
	if ind == nil {
		ind = indicator.NewLogIndicator(logger, cfg.OrangeFlashInterval)
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = rabbitmq.NewDialer(rabbitmq.Config{
			Host:              cfg.Host,
			Port:              cfg.Port,
			VHost:             cfg.VHost,
			Username:          cfg.Username,
			Password:          cfg.Password,
			UseSSL:            cfg.UseSSL,
			Exchange:          cfg.Exchange,
			QueueName:         cfg.QueueName,
			RoutingKey:        cfg.RoutingKey,
			Heartbeat:         cfg.Heartbeat,
			ConnectionTimeout: cfg.ConnectionTimeout,
		}, logger)
	}

	r := &Relay{
		config:    cfg,
		opts:      o,
		logger:    logger,
		metrics:   m,
		lifecycle: app.NewLifecycle(logger, o.stateObserver),
		catalog:   cat,
		watcher:   catalog.NewWatcher(cat, logger),
		indicator: ind,
		statsRepo: fs.NewStatsFileRepository(cfg.StateDir),
	}

	store := fs.NewFallbackFileStore(cfg.FallbackDir, cfg.QueueName, logger)
	r.engine = delivery.New(delivery.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		QueueName:         cfg.QueueName,
		RoutingKey:        cfg.RoutingKey,
		UseSSL:            cfg.UseSSL,
		RetryInterval:     cfg.RetryInterval,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}, dialer, store, logger,
		delivery.WithStatusCallback(r.onBrokerStatus),
		delivery.WithMetrics(m),
	)

	tagReader := o.reader
	if tagReader == nil {
		tagReader = r.defaultReader()
		if c, ok := tagReader.(io.Closer); ok {
			r.ownReader = c
		}
	}

	composer := app.NewComposer(
		app.WithConfigFile(cfg.ConfigFile),
		app.WithServiceStarts(func() int { return r.scanner.Statistics().ServiceStarts }),
	)
	r.scanner = app.NewScanner(app.ScannerConfig{
		ReadInterval:  cfg.ReadInterval,
		FlashDuration: cfg.GreenFlashDuration,
		SentDuration:  cfg.GreenFlashDuration,
	}, tagReader, cat, composer, r.engine, r.statsRepo, ind, m, logger)

	return r, nil
}

// Run starts the relay and blocks until ctx is cancelled, Close is called,
// the reader is exhausted, or (with Config.Once) the first message has been
// delivered. The scan loop, connection monitor, catalog watcher and optional
// metrics server share one errgroup; the first failure stops them all.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if !r.lifecycle.CanStart() {
		r.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	if r.closed || r.done != nil {
		r.mu.Unlock()
		return domain.ErrEngineClosed
	}
	if err := r.lifecycle.TransitionTo(app.StateStarting, "Run called"); err != nil {
		r.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	defer close(done)
	defer cancel()

	r.scanner.RecordStart(runCtx)
	if r.engine.Connect(runCtx) {
		r.logger.Info("connected to broker", log.String("queue", r.config.QueueName))
	} else {
		r.logger.Warn("broker unavailable, messages will be queued",
			log.Int("queued", r.engine.FallbackCount()),
		)
	}

	g, gctx := errgroup.WithContext(runCtx)
	if err := r.engine.Start(gctx); err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return fmt.Errorf("start connection monitor: %w", err)
	}
	if err := r.lifecycle.TransitionTo(app.StateRunning, "workers started"); err != nil {
		r.logger.Error("failed to transition to running", log.Err(err))
	}

	g.Go(func() error {
		<-r.engine.Done()
		return nil
	})
	g.Go(func() error {
		// Nothing left to do once the scanner stops.
		defer cancel()
		return r.runScanner(gctx)
	})
	g.Go(func() error {
		if err := r.watcher.Run(gctx); err != nil {
			r.logger.Warn("catalog watcher stopped", log.Err(err))
		}
		return nil
	})
	if addr := r.config.MetricsAddr; addr != "" {
		g.Go(func() error {
			r.logger.Info("serving metrics", log.String("addr", addr))
			if err := r.metrics.Serve(gctx, addr); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if r.ownReader != nil {
		_ = r.ownReader.Close()
	}

	_ = r.lifecycle.TransitionTo(app.StateStopping, "workers stopped")
	err = errors.Join(err, r.engine.Close())

	if err != nil {
		r.logger.Error("relay stopped with error", log.Err(err))
		_ = r.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}
	_ = r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	return nil
}

// Close stops a running relay and waits up to ShutdownTimeout for it. On a
// relay that never ran it releases the broker connection. Close is
// idempotent.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return r.engine.Close()
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(ShutdownTimeout):
		r.logger.Warn("relay did not stop in time", log.Duration("timeout", ShutdownTimeout))
		return domain.ErrShutdownTimeout
	}
}

// Connect makes one connection attempt, replaying queued messages on
// success. It is used to probe the broker without running the relay.
func (r *Relay) Connect(ctx context.Context) bool {
	return r.engine.Connect(ctx)
}

// Status returns a snapshot of the relay. Safe for concurrent use.
func (r *Relay) Status() Status {
	objects, locations := r.catalog.Counts()
	return Status{
		State:            r.lifecycle.State().String(),
		Pairing:          r.scanner.Pairing().State().String(),
		Transmitter:      r.engine.Status(),
		Statistics:       r.statistics(),
		CatalogObjects:   objects,
		CatalogLocations: locations,
	}
}

// Metrics returns the collector set used by the relay.
func (r *Relay) Metrics() *Metrics {
	return r.metrics
}

func (r *Relay) statistics() Statistics {
	if r.lifecycle.State() == app.StateRunning {
		return r.scanner.Statistics()
	}
	stats, err := r.statsRepo.Load(context.Background())
	if err != nil {
		r.logger.Warn("failed to load statistics", log.Err(err))
	}
	return stats
}

func (r *Relay) runScanner(ctx context.Context) error {
	if !r.config.Once {
		return r.scanner.Run(ctx)
	}

	for {
		sent, err := r.scanner.RunOnce(ctx)
		switch {
		case sent:
			r.logger.Info("message delivered, stopping (once mode)")
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			continue
		}

		r.logger.Warn("scan cycle failed", log.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.ReadInterval):
		}
	}
}

func (r *Relay) onBrokerStatus(connected bool) {
	r.indicator.SetBrokerStatus(connected)
	if r.opts.statusHandler != nil {
		r.opts.statusHandler(connected)
	}
}

func (r *Relay) defaultReader() ports.TagReader {
	if r.config.Simulate {
		ids := append(r.catalog.IDs(domain.Object), r.catalog.IDs(domain.Location)...)
		r.logger.Info("using simulated tag reader", log.Int("tags", len(ids)))
		return reader.NewSimulatedReader(ids, r.config.ReadInterval, r.opts.simulationSeed)
	}
	return &lazyReader{open: func() ports.TagReader { return reader.NewLineReader(os.Stdin) }}
}

// lazyReader defers opening its reader to the first Read so that a relay
// used only for Status never consumes stdin.
type lazyReader struct {
	once sync.Once
	open func() ports.TagReader
	r    ports.TagReader
}

func (l *lazyReader) Read(ctx context.Context) (domain.TagRead, error) {
	l.once.Do(func() { l.r = l.open() })
	if l.r == nil {
		return domain.TagRead{}, io.EOF
	}
	return l.r.Read(ctx)
}

// Close closes the opened reader, if any, and prevents a later open.
func (l *lazyReader) Close() error {
	l.once.Do(func() {})
	if c, ok := l.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
