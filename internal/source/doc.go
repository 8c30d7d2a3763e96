// Package source manages the lifecycle of data-source connections.
//
// For every entry under sources in the configuration, the manager resolves
// the declared factory from the plug-in catalog, adapts the raw config map
// into the factory's typed config, validates it, creates the source, opens
// it, and registers it under its declared name. Shutdown closes sources in
// reverse registration order and swallows per-source failures.
//
// Three providers ship in-tree: postgres (sqlx over lib/pq, pool owned by
// the source), redis (go-redis client), and memory (fixture rows for tests
// and local development).
package source
