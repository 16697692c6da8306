package reader

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
)

// ErrNoTags is returned by a simulated reader with nothing to pick from.
var ErrNoTags = errors.New("reader: no simulated tags")

// SimulatedReader presents random catalog ids after a fixed delay.
type SimulatedReader struct {
	delay time.Duration
	ids   []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedReader picks from ids every delay, using seed for the sequence.
func NewSimulatedReader(ids []string, delay time.Duration, seed int64) *SimulatedReader {
	return &SimulatedReader{
		delay: delay,
		ids:   append([]string(nil), ids...),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Read waits for the delay, then returns a random id.
func (s *SimulatedReader) Read(ctx context.Context) (domain.TagRead, error) {
	if len(s.ids) == 0 {
		return domain.TagRead{}, ErrNoTags
	}

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return domain.TagRead{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return domain.TagRead{}, err
	}

	s.mu.Lock()
	text := s.ids[s.rnd.Intn(len(s.ids))]
	s.mu.Unlock()

	return domain.TagRead{TagID: TagID(text), Text: text}, nil
}
