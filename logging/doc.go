// Package logging provides a minimal logging interface and adapters for the
// scheduling assistant.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine and capability adapters use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - AssistantLogger with component scoping and calendar/parser/pipeline
//     call helpers, used automatically when passed where a Logger is expected
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(cal, engine.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
