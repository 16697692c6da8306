package ports

import (
	"context"
	"time"
)

// BrokerDialer opens broker connections.
// Dial must declare the target queue (and exchange, when configured) durable.
type BrokerDialer interface {
	Dial(ctx context.Context) (BrokerConn, error)
}

// BrokerConn is one open broker connection with its publishing channel.
type BrokerConn interface {
	// Alive is a cheap, non-blocking liveness probe.
	Alive() error

	// Publish sends a persistent message.
	Publish(ctx context.Context, p Publishing) error

	// Close releases the connection.
	Close() error
}

// Publishing is the transport-neutral form of one outbound message.
type Publishing struct {
	MessageID string
	Timestamp time.Time
	Body      []byte
}
