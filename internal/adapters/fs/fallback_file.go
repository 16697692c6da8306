package fs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// FallbackFileStore implements ports.FallbackStore as one JSON array per queue.
// The whole file is rewritten on every change. Callers serialize access.
type FallbackFileStore struct {
	path   string
	logger log.Logger
}

// FallbackFileName returns the file name used for queue.
func FallbackFileName(queue string) string {
	return queue + "_messages.json"
}

// NewFallbackFileStore creates a store for queue under dir.
func NewFallbackFileStore(dir, queue string, logger log.Logger) *FallbackFileStore {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &FallbackFileStore{
		path:   filepath.Join(dir, FallbackFileName(queue)),
		logger: logger,
	}
}

// Load returns the queued envelopes in file order.
// A missing file is an empty queue. A file that is not a JSON array is
// treated as empty (start fresh); the next write replaces it. An element that
// does not decode is returned with only Raw set so rewrites keep it.
func (s *FallbackFileStore) Load() ([]domain.FallbackEnvelope, error) {
	raws, err := s.readRaw()
	if err != nil {
		return nil, err
	}

	envs := make([]domain.FallbackEnvelope, 0, len(raws))
	for i, raw := range raws {
		var env domain.FallbackEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.Warn("undecodable fallback entry kept as is",
				log.String("path", s.path),
				log.Int("index", i),
				log.Err(err),
			)
			env = domain.FallbackEnvelope{Raw: raw}
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func (s *FallbackFileStore) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		s.logger.Warn("corrupted fallback file, starting fresh",
			log.String("path", s.path),
			log.Err(err),
		)
		return nil, nil
	}
	return raws, nil
}

// Append adds env at the tail of the queue.
func (s *FallbackFileStore) Append(env domain.FallbackEnvelope) error {
	envs, err := s.Load()
	if err != nil {
		return err
	}
	return writeJSONAtomic(s.path, append(envs, env))
}

// Replace rewrites the queue with remaining, removing the file when empty.
func (s *FallbackFileStore) Replace(remaining []domain.FallbackEnvelope) error {
	if len(remaining) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return writeJSONAtomic(s.path, remaining)
}

// Count returns the number of queued envelopes, undecodable ones included;
// 0 when absent or unreadable.
func (s *FallbackFileStore) Count() int {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return 0
	}
	return len(raws)
}

// Path returns the fallback file path.
func (s *FallbackFileStore) Path() string {
	return s.path
}
