package ports

import "github.com/bft-labs/tagrelay/internal/domain"

// Catalog classifies tag ids.
type Catalog interface {
	// Resolve returns the item for id, or an error wrapping domain.ErrUnknownItem.
	Resolve(id string) (domain.ScannedItem, error)
}
