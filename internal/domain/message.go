package domain

import (
	"fmt"
	"time"
)

const (
	// ScanTypeRFID is the only scan type produced.
	ScanTypeRFID = "rfid"

	// ActionObjectLocationScan tags a composed object/location pair.
	ActionObjectLocationScan = "object_location_scan"
)

// Delivery methods reported in TransmitResult.
const (
	MethodBroker       = "broker"
	MethodFallbackFile = "fallback_file"
)

// ItemRef is the wire form of a ScannedItem inside a Message.
type ItemRef struct {
	ID   string         `json:"id"`
	Type ItemType       `json:"type"`
	Data map[string]any `json:"data"`
}

// Action describes what the pair means.
type Action struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ScannerInfo identifies the producing process.
type ScannerInfo struct {
	ServiceStarts int    `json:"service_starts"`
	ConfigFile    string `json:"config_file,omitempty"`
	InstanceID    string `json:"instance_id"`
	Hostname      string `json:"hostname,omitempty"`
}

// Message is the composed event for one object/location pair.
// It is immutable once composed.
type Message struct {
	MessageID   string      `json:"message_id"`
	Timestamp   time.Time   `json:"timestamp"`
	ScanType    string      `json:"scan_type"`
	Object      ItemRef     `json:"object"`
	Location    ItemRef     `json:"location"`
	Action      Action      `json:"action"`
	ScannerInfo ScannerInfo `json:"scanner_info"`
}

// Validate reports whether m can be delivered. The object and location refs
// must carry an id and the matching item type.
func (m Message) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("%w: empty message id", ErrInvalidMessage)
	}
	if m.Object.ID == "" || m.Object.Type != Object {
		return fmt.Errorf("%w: %s: object ref is not an object item", ErrInvalidMessage, m.MessageID)
	}
	if m.Location.ID == "" || m.Location.Type != Location {
		return fmt.Errorf("%w: %s: location ref is not a location item", ErrInvalidMessage, m.MessageID)
	}
	return nil
}

// TransmitResult reports how a message left the process.
type TransmitResult struct {
	Message           Message
	Method            string
	FallbackQueueSize int
}
