package domain

import (
	"encoding/json"
	"time"
)

// FallbackReasonBrokerUnavailable is recorded when direct delivery failed.
const FallbackReasonBrokerUnavailable = "broker_unavailable"

// FallbackEnvelope wraps an undelivered message in the fallback file.
type FallbackEnvelope struct {
	OriginalMessage   Message   `json:"original_message"`
	FallbackTimestamp time.Time `json:"fallback_timestamp"`
	FallbackReason    string    `json:"fallback_reason"`
	QueueName         string    `json:"queue_name"`
	RoutingKey        string    `json:"routing_key"`

	// Raw holds the stored bytes of an entry that could not be decoded.
	// Such entries are written back unchanged and never replayed.
	Raw json.RawMessage `json:"-"`
}

// Undecoded reports whether the envelope only carries raw stored bytes.
func (e FallbackEnvelope) Undecoded() bool {
	return len(e.Raw) > 0
}

func (e FallbackEnvelope) MarshalJSON() ([]byte, error) {
	if e.Undecoded() {
		return e.Raw, nil
	}
	type envelope FallbackEnvelope
	return json.Marshal(envelope(e))
}
