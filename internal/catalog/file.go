package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/tagrelay/pkg/log"
)

type fileFormat struct {
	Objects   map[string]map[string]any `toml:"objects"`
	Locations map[string]map[string]any `toml:"locations"`
}

// Load reads the catalog at path. A missing file yields an empty catalog.
func Load(path string, logger log.Logger) (*Catalog, error) {
	c := New(path, logger)
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the backing file and swaps it in. On error the current
// contents are kept.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("catalog file not found, starting empty", log.String("path", c.path))
			c.swap(map[string]map[string]any{}, map[string]map[string]any{})
			return nil
		}
		return fmt.Errorf("read catalog: %w", err)
	}

	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse catalog %s: %w", c.path, err)
	}
	if f.Objects == nil {
		f.Objects = map[string]map[string]any{}
	}
	if f.Locations == nil {
		f.Locations = map[string]map[string]any{}
	}
	c.swap(f.Objects, f.Locations)

	c.logger.Info("catalog loaded",
		log.String("path", c.path),
		log.Int("objects", len(f.Objects)),
		log.Int("locations", len(f.Locations)),
	)
	return nil
}

// Save writes the catalog back to its file atomically.
func (c *Catalog) Save() error {
	data, err := toml.Marshal(c.snapshot())
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename catalog: %w", err)
	}
	return nil
}
