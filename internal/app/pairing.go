package app

import (
	"sync"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// PairState is the observable state of the pairing slots.
type PairState int

const (
	PairEmpty PairState = iota
	PairHasObject
	PairHasLocation
)

func (s PairState) String() string {
	switch s {
	case PairEmpty:
		return "Empty"
	case PairHasObject:
		return "HasObject"
	case PairHasLocation:
		return "HasLocation"
	default:
		return "Unknown"
	}
}

// Pair is one completed object/location combination.
type Pair struct {
	Object   domain.ScannedItem
	Location domain.ScannedItem
}

// Pairing holds at most one pending object and one pending location.
// A second scan of the same type replaces the pending one. When both slots are
// filled the pair is handed out and the slots are cleared in the same call.
type Pairing struct {
	logger log.Logger

	mu       sync.Mutex
	object   domain.ScannedItem
	location domain.ScannedItem
}

// NewPairing creates an empty pairing state machine.
func NewPairing(logger log.Logger) *Pairing {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Pairing{logger: logger}
}

// Scan places item in its slot. It returns the completed pair, if any, and
// whether a pending item of the same type was replaced.
func (p *Pairing) Scan(item domain.ScannedItem) (*Pair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var replaced bool
	switch item.Type {
	case domain.Object:
		if !p.object.IsZero() {
			replaced = true
			p.logger.Info("replacing pending object",
				log.String("previous", p.object.ItemID),
				log.String("current", item.ItemID),
			)
		}
		p.object = item
	case domain.Location:
		if !p.location.IsZero() {
			replaced = true
			p.logger.Info("replacing pending location",
				log.String("previous", p.location.ItemID),
				log.String("current", item.ItemID),
			)
		}
		p.location = item
	default:
		return nil, false
	}

	if p.object.IsZero() || p.location.IsZero() {
		return nil, replaced
	}

	pair := &Pair{Object: p.object, Location: p.location}
	p.object = domain.ScannedItem{}
	p.location = domain.ScannedItem{}
	return pair, replaced
}

// Pending returns the current slot contents. Empty slots are zero values.
func (p *Pairing) Pending() (object, location domain.ScannedItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.object, p.location
}

// State reports which slot is occupied.
func (p *Pairing) State() PairState {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !p.object.IsZero():
		return PairHasObject
	case !p.location.IsZero():
		return PairHasLocation
	default:
		return PairEmpty
	}
}

// Reset clears both slots.
func (p *Pairing) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.object = domain.ScannedItem{}
	p.location = domain.ScannedItem{}
}
