// Package dispatch adapts transport-level request envelopes into session
// invocations and maps task results back onto response entities.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/pkg/logging"
)

// TransportKind is the closed set of transports a dispatcher serves.
type TransportKind string

const (
	KindHTTPJSON  TransportKind = "HTTP_JSON"
	KindJSONRPC   TransportKind = "JSONRPC"
	KindStdio     TransportKind = "STDIO"
	KindStreaming TransportKind = "STREAMING"
)

// ParseTransportKind resolves an exposure binding string case-insensitively.
// Unknown bindings are a configuration error reported at startup.
func ParseTransportKind(binding string) (TransportKind, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(binding), "-", "_"))
	switch TransportKind(normalized) {
	case KindHTTPJSON, KindJSONRPC, KindStdio, KindStreaming:
		return TransportKind(normalized), nil
	default:
		return "", &config.ConfigurationError{
			Field:   "binding",
			Message: fmt.Sprintf("unknown transport binding %q", binding),
		}
	}
}

// SessionExecutor is the slice of the session a dispatcher needs.
type SessionExecutor interface {
	Execute(task core.SessionTask, sctx core.SessionContext) core.TaskResult
}

// Tracer receives every envelope and its response when debug tracing is on.
type Tracer interface {
	Request(env *core.RequestEnvelope)
	Response(requestID string, resp core.ResponseEntity)
}

// Dispatcher converts envelopes into session calls for one transport kind.
type Dispatcher struct {
	kind    TransportKind
	session SessionExecutor
	tracer  Tracer
}

// New creates a dispatcher of the given kind over a session.
func New(kind TransportKind, session SessionExecutor) *Dispatcher {
	return &Dispatcher{kind: kind, session: session}
}

// Kind returns the transport kind this dispatcher serves.
func (d *Dispatcher) Kind() TransportKind { return d.kind }

// WithTracer attaches a tracer that sees every envelope and response. A nil
// tracer disables request tracing.
func (d *Dispatcher) WithTracer(tr Tracer) *Dispatcher {
	d.tracer = tr
	return d
}

// Dispatch builds a session task and context from the envelope, executes it,
// and maps the result variant onto a response entity. A panic anywhere below
// the dispatcher surfaces as an EXECUTION_FAILED response rather than
// tearing down the transport worker.
func (d *Dispatcher) Dispatch(ctx context.Context, env *core.RequestEnvelope) (resp core.ResponseEntity) {
	if d.tracer != nil {
		d.tracer.Request(env)
		// Runs after the recover below, so the traced response is final.
		defer func() { d.tracer.Response(env.RequestID, resp) }()
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during dispatch: %v", r)
			logging.Error("Dispatch", err, "request %s panicked", env.RequestID)
			resp = core.NewResponseError(core.StatusExecutionFailed, err, "internal error")
		}
	}()

	sctx := core.NewSessionContext(env.Context)
	if deadline, ok := ctx.Deadline(); ok && sctx.Deadline.IsZero() {
		sctx.Deadline = deadline
	}

	task := d.buildTask(env)
	result := d.session.Execute(task, sctx)

	switch r := result.(type) {
	case core.TaskSuccess:
		return core.NewResponseOK(r.Output, wireMetadata(r.Metadata))
	case core.TaskFailure:
		return core.NewResponseError(r.Status, r.Cause, "")
	default:
		return core.NewResponseError(core.StatusExecutionFailed,
			core.NewInternalError("unhandled task result variant %T", result), "internal error")
	}
}

// wireMetadata drops the in-process handles the session binds for pipeline
// steps; live engine and source instances never serialize to clients.
func wireMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if k == core.MetaEngine || k == core.MetaSources {
			continue
		}
		out[k] = v
	}
	return out
}

// buildTask extracts the session task from the envelope: the payload body
// and parameters as data, the payload metadata merged with routing and debug
// entries as metadata. Identity fields come from the envelope context, never
// from placeholders.
func (d *Dispatcher) buildTask(env *core.RequestEnvelope) core.SessionTask {
	data := map[string]interface{}{
		core.MetaPayloadData:   env.Payload.Data,
		core.MetaPayloadParams: env.Payload.Parameters,
	}

	metadata := make(map[string]interface{}, len(env.Payload.Metadata)+6)
	for k, v := range env.Payload.Metadata {
		metadata[k] = v
	}
	metadata[core.MetaCapability] = env.Capability
	metadata[core.MetaAction] = env.Action
	metadata[core.MetaRequestID] = env.RequestID
	if env.Context.UserID != "" {
		metadata[core.MetaUserID] = env.Context.UserID
	}
	metadata[core.MetaDispatchCtx] = map[string]interface{}{
		"transport":   string(d.kind),
		"request-id":  env.RequestID,
		"received-at": env.ReceivedAt,
	}
	metadata[core.MetaTaskStartedAt] = time.Now()

	return core.NewSessionTask(data, metadata)
}
