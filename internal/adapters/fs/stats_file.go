package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/tagrelay/internal/domain"
)

const statsFileName = "stats.json"

// StatsFileRepository implements ports.StatsRepository using a JSON file.
type StatsFileRepository struct {
	dir string
}

// NewStatsFileRepository creates a repository storing stats.json in dir.
func NewStatsFileRepository(dir string) *StatsFileRepository {
	return &StatsFileRepository{dir: dir}
}

// Load returns zero statistics and nil error if no file exists.
func (r *StatsFileRepository) Load(ctx context.Context) (domain.Statistics, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Statistics{}, nil
		}
		return domain.Statistics{}, err
	}

	var stats domain.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.Statistics{}, err
	}
	return stats, nil
}

// Save persists stats atomically.
func (r *StatsFileRepository) Save(ctx context.Context, stats domain.Statistics) error {
	return writeJSONAtomic(r.Path(), stats)
}

// Path returns the full path to the stats file.
func (r *StatsFileRepository) Path() string {
	return filepath.Join(r.dir, statsFileName)
}
