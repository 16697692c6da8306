// Package tagrelay pairs RFID object and location scans into messages and
// delivers them to RabbitMQ, falling back to a local JSON file while the
// broker is unreachable.
//
// Example usage:
//
//	cfg := tagrelay.DefaultConfig()
//	cfg.Host = "broker.local"
//	cfg.CatalogFile = "/etc/tagrelay/catalog.toml"
//	r, err := tagrelay.New(cfg, tagrelay.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	if err := r.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Messages that could not be published are appended to
// <FallbackDir>/<queue>_messages.json and replayed, oldest first, as soon as
// the connection monitor reconnects.
package tagrelay
