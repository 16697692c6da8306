// Package catalog classifies tag ids as objects or locations.
//
// The catalog lives in a TOML file with one table per item:
//
//	[objects.RFID1]
//	name = "Drill"
//
//	[locations.OP1]
//	name = "Bay 1"
//
// An id present in both tables resolves as an object.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// Catalog is a concurrency-safe, reloadable item catalog.
// It implements ports.Catalog.
type Catalog struct {
	path   string
	logger log.Logger

	mu        sync.RWMutex
	objects   map[string]map[string]any
	locations map[string]map[string]any
}

// New returns an empty catalog backed by path. Nothing is read until Reload.
func New(path string, logger log.Logger) *Catalog {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Catalog{
		path:      path,
		logger:    logger,
		objects:   map[string]map[string]any{},
		locations: map[string]map[string]any{},
	}
}

// Resolve looks id up, objects first.
func (c *Catalog) Resolve(id string) (domain.ScannedItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if data, ok := c.objects[id]; ok {
		return domain.NewScannedItem(id, domain.Object, data), nil
	}
	if data, ok := c.locations[id]; ok {
		return domain.NewScannedItem(id, domain.Location, data), nil
	}
	return domain.ScannedItem{}, fmt.Errorf("%w: %s", domain.ErrUnknownItem, id)
}

// Add inserts or replaces an item in memory. Call Save to persist.
func (c *Catalog) Add(id string, typ domain.ItemType, data map[string]any) error {
	if id == "" {
		return fmt.Errorf("catalog: empty item id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.tableLocked(typ)
	if err != nil {
		return err
	}
	table[id] = deepCopy(data)
	return nil
}

// Remove deletes an item in memory and reports whether it existed.
func (c *Catalog) Remove(id string, typ domain.ItemType) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.tableLocked(typ)
	if err != nil {
		return false, err
	}
	if _, ok := table[id]; !ok {
		return false, nil
	}
	delete(table, id)
	return true, nil
}

// Items returns a deep copy of every item of typ.
func (c *Catalog) Items(typ domain.ItemType) (map[string]map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, err := c.tableLocked(typ)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(table))
	for id, data := range table {
		out[id] = deepCopy(data)
	}
	return out, nil
}

// IDs returns the sorted ids of typ.
func (c *Catalog) IDs(typ domain.ItemType) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table, err := c.tableLocked(typ)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Counts returns the number of objects and locations.
func (c *Catalog) Counts() (objects, locations int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects), len(c.locations)
}

// Path returns the backing file.
func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) tableLocked(typ domain.ItemType) (map[string]map[string]any, error) {
	switch typ {
	case domain.Object:
		return c.objects, nil
	case domain.Location:
		return c.locations, nil
	default:
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidItemType, int(typ))
	}
}

func (c *Catalog) swap(objects, locations map[string]map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects = objects
	c.locations = locations
}

func (c *Catalog) snapshot() fileFormat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f := fileFormat{
		Objects:   make(map[string]map[string]any, len(c.objects)),
		Locations: make(map[string]map[string]any, len(c.locations)),
	}
	for id, data := range c.objects {
		f.Objects[id] = deepCopy(data)
	}
	for id, data := range c.locations {
		f.Locations[id] = deepCopy(data)
	}
	return f
}

func deepCopy(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
