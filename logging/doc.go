// Package logging provides a minimal logging interface and adapters for chatmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the store, dispatcher and backends use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZerologAdapter wrapping github.com/rs/zerolog
//   - ChatMeshLogger, a slog based logger with conversation scoped helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	st := store.New(func(o *store.Options) { o.Logger = logger })
//
// Arguments after the message are key/value pairs, as with log/slog.
package logging
