package app

import (
	"sync"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// ServiceState is the lifecycle state of the relay service.
type ServiceState int

const (
	StateStopped ServiceState = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s ServiceState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateObserver is notified of lifecycle transitions, outside the lock.
type StateObserver func(previous, current ServiceState, reason string)

// Lifecycle guards the service state machine:
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//
// Starting, Running and Stopping may also move to Crashed, and Crashed may
// restart.
type Lifecycle struct {
	logger   log.Logger
	observer StateObserver

	mu    sync.RWMutex
	state ServiceState
}

// NewLifecycle creates a lifecycle in StateStopped. observer may be nil.
func NewLifecycle(logger log.Logger, observer StateObserver) *Lifecycle {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Lifecycle{logger: logger, observer: observer, state: StateStopped}
}

// State returns the current state.
func (l *Lifecycle) State() ServiceState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to next or returns domain.ErrAlreadyRunning or
// domain.ErrNotRunning when the move is not allowed.
func (l *Lifecycle) TransitionTo(next ServiceState, reason string) error {
	l.mu.Lock()
	prev := l.state
	if err := checkTransition(prev, next); err != nil {
		l.mu.Unlock()
		return err
	}
	l.state = next
	l.mu.Unlock()

	if l.observer != nil {
		l.observer(prev, next, reason)
	}
	l.logger.Info("service state transition",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	return nil
}

func checkTransition(from, to ServiceState) error {
	switch from {
	case StateStopped, StateCrashed:
		if to != StateStarting {
			return domain.ErrNotRunning
		}
	case StateStarting:
		if to != StateRunning && to != StateStopping && to != StateCrashed {
			return domain.ErrAlreadyRunning
		}
	case StateRunning:
		if to != StateStopping && to != StateCrashed {
			return domain.ErrAlreadyRunning
		}
	case StateStopping:
		if to != StateStopped && to != StateCrashed {
			return domain.ErrAlreadyRunning
		}
	}
	return nil
}

// CanStart reports whether a start is allowed.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop reports whether a stop is allowed.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}
