// Package domain contains the core entities and value objects for tagrelay.
//
// It has no dependencies on infrastructure (broker, file system, logging)
// and holds only data and the rules attached to it.
//
// # Entities
//
//   - [ScannedItem]: a catalog-resolved tag (object or location)
//   - [Message]: the composed object/location event sent to the broker
//   - [FallbackEnvelope]: a Message parked on disk while the broker is down
//   - [TransmitterStatus]: read-only snapshot of the delivery engine
//   - [Statistics]: persisted scan counters
package domain
