package domain

import "errors"

// Domain errors. Check them with errors.Is; callers receive them wrapped.
var (
	// ErrUnknownItem is returned when a tag id is in neither catalog.
	ErrUnknownItem = errors.New("tagrelay: unknown item")

	// ErrInvalidItemType is returned for an item type other than object or location.
	ErrInvalidItemType = errors.New("tagrelay: invalid item type")

	// ErrInvalidMessage is returned by Transmit for a message that cannot be
	// encoded, such as one whose object or location ref is unset.
	ErrInvalidMessage = errors.New("tagrelay: invalid message")

	// ErrReadFailed wraps transient tag reader failures.
	ErrReadFailed = errors.New("tagrelay: tag read failed")
	// ErrDeliveryExhausted is returned when both the broker publish and the
	// fallback write failed for a message.
	ErrDeliveryExhausted = errors.New("tagrelay: broker and fallback delivery failed")

	// ErrNotConnected is returned by broker operations attempted without a connection.
	ErrNotConnected = errors.New("tagrelay: not connected")

	// ErrEngineClosed is returned when Start is called on a closed engine.
	ErrEngineClosed = errors.New("tagrelay: delivery engine closed")

	// ErrAlreadyRunning is returned when starting a service that is not stopped.
	ErrAlreadyRunning = errors.New("tagrelay: already running")
	// ErrNotRunning is returned when stopping a service that is not running.
	ErrNotRunning = errors.New("tagrelay: not running")
	// ErrShutdownTimeout is returned when a background worker did not stop in time.
	ErrShutdownTimeout = errors.New("tagrelay: shutdown timeout")
)
