// Package logging provides a minimal logging interface and adapters for agentrt.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runtime, registry client and server use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - RuntimeLogger with agent/component context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	rt := runtime.New(desc, analyzer, func(o *runtime.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
