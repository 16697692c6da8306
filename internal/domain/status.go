package domain

import "time"

// ConnectionState is the broker connection state of the delivery engine.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// TransmitterStatus is a read-only snapshot of the delivery engine.
type TransmitterStatus struct {
	Connected     bool   `json:"connected"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	QueueName     string `json:"queue_name"`
	FallbackCount int    `json:"fallback_count"`
	FallbackFile  string `json:"fallback_file"`
	UseSSL        bool   `json:"use_ssl"`
}

// Statistics are the persisted scan counters.
type Statistics struct {
	TotalTags     int        `json:"total_tags"`
	ServiceStarts int        `json:"service_starts"`
	LastScan      *time.Time `json:"last_scan,omitempty"`
}

// TagRead is the raw output of a tag reader.
type TagRead struct {
	TagID uint64
	Text  string
}
