// Package config loads, resolves, and validates the declarative cheshire
// specification.
//
// The main document (cheshire.yaml by default, overridable through the
// CHESHIRE_CONFIG environment variable) declares sources, engines,
// transports, exposures, and capabilities. Each capability references an
// actions file and a pipelines file resolved from the same configuration
// root; the loader reads them through the Source abstraction, which rejects
// any path escaping the root.
//
// Validation runs in a single pass and accumulates every problem into an
// ErrorCollection so an operator sees the full picture at once. On success
// the Spec is frozen inside a Manager, which hands out deep clones on every
// read.
package config
