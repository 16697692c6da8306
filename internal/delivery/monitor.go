package delivery

import (
	"context"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// Start launches the connection monitor. It checks the connection
// immediately and then every RetryInterval, reconnecting and replaying the
// fallback queue whenever the broker becomes reachable. The monitor stops
// on Close or when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrEngineClosed
	}
	e.mu.Unlock()
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	e.logger.Info("connection monitor started",
		log.Duration("retry_interval", e.cfg.RetryInterval),
	)
	go e.monitor(ctx)
	return nil
}

// Done is closed when the monitor has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.doneCh
}

func (e *Engine) monitor(ctx context.Context) {
	defer close(e.doneCh)

	// Close cancels whatever the monitor is blocked on.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(e.cfg.RetryInterval)
	defer ticker.Stop()

	e.ensureConnected(ctx)
	for {
		select {
		case <-e.stopCh:
			e.logger.Debug("connection monitor stopped")
			return
		case <-ctx.Done():
			e.logger.Debug("connection monitor stopped", log.Err(ctx.Err()))
			return
		case <-ticker.C:
			e.ensureConnected(ctx)
		}
	}
}

// ensureConnected probes and reconnects under one lock hold so a Transmit
// cannot run between the probe and the reconnect.
func (e *Engine) ensureConnected(ctx context.Context) {
	defer e.dispatch()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.isConnectedLocked() {
		e.replayLocked(ctx)
		return
	}
	e.logger.Debug("broker unavailable, attempting reconnect")
	e.connectLocked(ctx)
}
