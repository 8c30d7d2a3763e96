// Package core defines the canonical data model shared by every layer of
// cheshire: the request envelope and payload, the canonical input/output
// values pipelines operate on, the task and context handed to the session,
// the closed result variants (TaskResult, ResponseEntity), the pipeline step
// contracts, and the framework error taxonomy.
//
// All maps carried inside envelopes, tasks, and canonical values are
// defensively snapshotted on construction so mutation by a producer cannot
// affect consumers. Canonical values iterate their data in insertion order
// and copy functionally: WithMetadata and WithShape return new values.
//
// TaskResult and ResponseEntity are closed sum types realized as sealed
// interfaces. A type switch over TaskSuccess/TaskFailure (respectively
// ResponseOK/ResponseError) covers every variant.
package core
