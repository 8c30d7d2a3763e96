// Package plugin defines the extension contracts of cheshire and the
// catalog that discovers implementations at process start.
//
// Plug-ins come in four kinds: source provider factories, query engine
// factories, server factories, and pipeline step implementations
// (pre-processors, executors, post-processors). Each publishes itself into a
// Catalog under a string identifier; configuration references those
// identifiers, and the managers resolve them with pure map reads after
// startup.
//
// Step implementations register either a configured constructor taking the
// step's {name, template, params} map, a parameterless default constructor,
// or both. Instantiation tries the configured constructor first and falls
// back to the default.
package plugin
