// Package log is the structured logging abstraction used across tagrelay.
//
// Components depend on the [Logger] interface only. The binary wires a
// [ZerologAdapter]; tests usually pass a [NoopLogger]:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	engine := delivery.New(cfg, dialer, store, logger)
//
// Fields are built with the typed helpers ([String], [Int], [Err], ...) so
// adapters can map them onto the backend without reflection.
package log
