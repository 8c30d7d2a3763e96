package core

import (
	"fmt"
	"time"
)

// Metadata keys shared between the dispatcher, the session, and pipeline
// steps.
const (
	MetaCapability    = "capability"
	MetaAction        = "action"
	MetaEngine        = "engine"
	MetaSources       = "sources"
	MetaUserID        = "user-id"
	MetaRequestID     = "request-id"
	MetaPayloadData   = "payload-data"
	MetaPayloadParams = "payload-parameters"
	MetaTaskStartedAt = "debug.task-started-at"
	MetaDispatchCtx   = "debug.dispatch-context"
	MetaPipelineAt    = "pipeline-processor-at"
)

// SessionTask is the unit of work handed to the session by a dispatcher.
// Data carries the request body; Metadata carries routing and debug
// information, including the capability and action names.
type SessionTask struct {
	Data     map[string]interface{}
	Metadata map[string]interface{}
}

// NewSessionTask builds a task with defensive snapshots of both maps.
func NewSessionTask(data, metadata map[string]interface{}) SessionTask {
	return SessionTask{
		Data:     snapshotMap(data),
		Metadata: snapshotMap(metadata),
	}
}

// RequireMetaString returns the string metadata entry for key, with distinct
// errors for missing versus wrongly typed values.
func (t SessionTask) RequireMetaString(key string) (string, error) {
	raw, ok := t.Metadata[key]
	if !ok {
		return "", NewMissingFieldError(key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewWrongTypeError(key, "string", fmt.Sprintf("%T", raw))
	}
	return s, nil
}

// SessionContext carries the caller identity that accompanies a task through
// the session into the pipeline.
type SessionContext struct {
	SessionID       string
	UserID          string
	TraceID         string
	SecurityContext map[string]interface{}
	Attributes      map[string]interface{}
	ArrivedAt       time.Time
	Deadline        time.Time // zero means no deadline
}

// NewSessionContext builds a session context from a request context,
// stamping ArrivedAt if the transport left it unset.
func NewSessionContext(rc RequestContext) SessionContext {
	sc := SessionContext{
		SessionID:       rc.SessionID,
		UserID:          rc.UserID,
		TraceID:         rc.TraceID,
		SecurityContext: snapshotMap(rc.SecurityContext),
		Attributes:      snapshotMap(rc.Attributes),
		ArrivedAt:       rc.ArrivedAt,
		Deadline:        rc.Deadline,
	}
	if sc.ArrivedAt.IsZero() {
		sc.ArrivedAt = time.Now()
	}
	return sc
}
