// Package logging provides a minimal logging interface and adapters for the
// encounter engine.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) taking slog-style key/value pairs. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component/session context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(persona.Default(), func(o *engine.Options) {
//	    o.Logger = logging.ForComponent(logger, "engine")
//	})
//
// The interface is kept minimal so any structured logger can be plugged in.
package logging
