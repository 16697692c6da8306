package ports

import (
	"context"

	"github.com/bft-labs/tagrelay/internal/domain"
)

// StatsRepository persists scan statistics.
type StatsRepository interface {
	// Load returns zero statistics and nil error if nothing was saved yet.
	Load(ctx context.Context) (domain.Statistics, error)

	// Save persists atomically.
	Save(ctx context.Context, stats domain.Statistics) error
}
