// Package indicator provides status light adapters.
package indicator

import (
	"sync"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// LogIndicator renders signals as log lines. It stands in for an RGB LED on
// hosts without one.
type LogIndicator struct {
	logger        log.Logger
	flashInterval time.Duration

	mu        sync.Mutex
	connected bool
	last      domain.Signal
	shown     bool
}

// NewLogIndicator creates an indicator. flashInterval is the orange flash
// period shown while the broker is unreachable.
func NewLogIndicator(logger log.Logger, flashInterval time.Duration) *LogIndicator {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &LogIndicator{logger: logger, flashInterval: flashInterval}
}

// Show logs sig.
func (l *LogIndicator) Show(sig domain.Signal) {
	l.mu.Lock()
	l.last = sig
	l.shown = true
	l.mu.Unlock()

	l.logger.Debug("indicator",
		log.String("color", string(sig.Color)),
		log.Bool("flash", sig.Flash),
		log.Duration("duration", sig.Duration),
	)
}

// SetBrokerStatus records connectivity and refreshes the waiting signal.
func (l *LogIndicator) SetBrokerStatus(connected bool) {
	l.mu.Lock()
	l.connected = connected
	l.mu.Unlock()

	if connected {
		l.logger.Info("indicator: broker connected")
	} else {
		l.logger.Warn("indicator: broker disconnected, storing messages locally")
	}
	l.Waiting()
}

// Waiting shows steady white when connected, flashing orange otherwise.
func (l *LogIndicator) Waiting() {
	l.Show(WaitingSignal(l.brokerConnected(), l.flashInterval))
}

// Last returns the most recent signal and whether any was shown.
func (l *LogIndicator) Last() (domain.Signal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.shown
}

func (l *LogIndicator) brokerConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// WaitingSignal returns the idle signal for the broker status.
func WaitingSignal(connected bool, flashInterval time.Duration) domain.Signal {
	if connected {
		return domain.Signal{Color: domain.ColorWhite}
	}
	return domain.Signal{Color: domain.ColorOrange, Flash: true, Duration: flashInterval}
}
