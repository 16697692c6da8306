package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ItemType classifies a scanned tag.
type ItemType int

const (
	Object ItemType = iota + 1
	Location
)

// String returns the wire name of the type.
func (t ItemType) String() string {
	switch t {
	case Object:
		return "object"
	case Location:
		return "location"
	default:
		return "unknown"
	}
}

// ParseItemType accepts singular and plural names, case-insensitively.
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "object", "objects":
		return Object, nil
	case "location", "locations":
		return Location, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidItemType, s)
	}
}

func (t ItemType) MarshalJSON() ([]byte, error) {
	if t != Object && t != Location {
		return nil, fmt.Errorf("%w: %d", ErrInvalidItemType, int(t))
	}
	return json.Marshal(t.String())
}

func (t *ItemType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseItemType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ScannedItem is a tag resolved against the catalog.
// Construct it with NewScannedItem; the data map is copied and never mutated.
type ScannedItem struct {
	ItemID string
	Type   ItemType
	data   map[string]any
}

// NewScannedItem builds an item, copying data.
func NewScannedItem(id string, typ ItemType, data map[string]any) ScannedItem {
	return ScannedItem{ItemID: id, Type: typ, data: copyData(data)}
}

// Data returns a copy of the catalog payload.
func (s ScannedItem) Data() map[string]any {
	return copyData(s.data)
}

// Name returns the catalog "name" attribute, or the item id when absent.
func (s ScannedItem) Name() string {
	if n, ok := s.data["name"].(string); ok && n != "" {
		return n
	}
	return s.ItemID
}

// IsZero reports whether the item is unset.
func (s ScannedItem) IsZero() bool {
	return s.ItemID == "" && s.Type == 0
}

// Ref converts the item to its wire form.
func (s ScannedItem) Ref() ItemRef {
	return ItemRef{ID: s.ItemID, Type: s.Type, Data: s.Data()}
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
