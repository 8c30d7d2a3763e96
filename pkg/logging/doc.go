// Package logging provides the structured logging system for cheshire.
//
// It is a thin wrapper around Go's standard slog package. Every log entry
// carries a subsystem identifier so that output from the configuration
// loader, the lifecycle coordinator, the session, and the transport servers
// can be told apart and filtered by log aggregation tooling.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Bootstrap", "loaded configuration from %s", path)
//	logging.Error("Session", err, "pipeline execution failed for %s/%s", cap, action)
//
// # Subsystem Organization
//
//   - Bootstrap: process startup and wiring
//   - Config: configuration loading and validation
//   - Lifecycle: phased init and shutdown
//   - Sources / Engines / Capabilities: the three managers
//   - Session: task execution
//   - Dispatcher / Server: transport handling
//   - Health: health state and metrics
//
// The logging functions are safe for concurrent use. Level filtering happens
// in the handler, so filtered-out messages cost no allocation.
package logging
