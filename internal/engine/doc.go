// Package engine manages the lifecycle of query engines.
//
// The manager mirrors the source manager with two extra resolution steps:
// the raw factory input is enriched with the resolved configurations of the
// sources the engine references, and the created engine must report a name
// equal to its spec key. Engines borrow sources by name through a
// plugin.SourceResolver; they never own them.
//
// Two engines ship in-tree: direct, which forwards logical queries
// unchanged to a referenced source, and sql, which adds a read-only
// statement guard for relational sources.
package engine
