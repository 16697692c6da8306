// Package ports defines the interfaces that connect the application layer to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [TagReader]: blocking source of raw tag reads
//   - [Indicator]: status light consuming the color vocabulary
//   - [BrokerDialer] / [BrokerConn]: outbound message broker
//   - [FallbackStore]: durable local queue for undelivered messages
//   - [StatsRepository]: persisted scan counters
//   - [Catalog]: tag id classification
//
// The application layer (internal/app, internal/delivery) depends only on
// these interfaces. Adapters under internal/adapters implement them with
// AMQP, the file system, zerolog, and so on.
package ports
