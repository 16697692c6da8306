package ports

import "github.com/bft-labs/tagrelay/internal/domain"

// FallbackStore is an ordered, durable queue of undelivered messages.
// It is not safe for concurrent use; the delivery engine serializes access.
type FallbackStore interface {
	// Load returns all envelopes in insertion order. A missing or corrupt
	// store yields an empty list. Entries that cannot be decoded are
	// returned with Undecoded() true and must be kept on Replace.
	Load() ([]domain.FallbackEnvelope, error)

	// Append adds one envelope at the tail.
	Append(env domain.FallbackEnvelope) error

	// Replace rewrites the store with remaining. An empty slice removes it.
	Replace(remaining []domain.FallbackEnvelope) error

	// Count returns the number of queued envelopes without modifying the store.
	Count() int

	// Path identifies the backing location for status output.
	Path() string
}
