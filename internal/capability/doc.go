// Package capability materializes configured capabilities and their action
// pipelines.
//
// The manager resolves each capability's exposure and transport references,
// resolves the canonical shapes its pipelines declare, and instantiates every
// pipeline step through the plugin catalog. The result is a frozen
// PipelineProcessor per action: an ordered pre list, exactly one executor,
// and an ordered post list. Processors run the fold strictly sequentially;
// steps communicate through the pipeline context bag and treat canonical
// values as immutable.
//
// The package also ships the builtin step implementations: the
// validate-required and template pre-processors, the echo and query
// executors, and the timing and redact post-processors.
package capability
