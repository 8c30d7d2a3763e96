package core

import (
	"time"
)

// RequestPayload carries the protocol-agnostic body of a request.
type RequestPayload struct {
	Type       string
	Data       map[string]interface{}
	Parameters map[string]interface{}
	Metadata   map[string]interface{}
}

// NoData is the sentinel payload used where a request carries no body, so
// that envelope consumers never see a nil payload.
var NoData = RequestPayload{Type: "none"}

// NewRequestPayload builds a payload, defensively snapshotting the maps so
// later mutation by the producer cannot affect consumers.
func NewRequestPayload(payloadType string, data, parameters, metadata map[string]interface{}) RequestPayload {
	return RequestPayload{
		Type:       payloadType,
		Data:       snapshotMap(data),
		Parameters: snapshotMap(parameters),
		Metadata:   snapshotMap(metadata),
	}
}

// RequestContext carries the caller identity and deadline information that
// travels with every envelope.
type RequestContext struct {
	SessionID       string
	UserID          string
	TraceID         string
	SecurityContext map[string]interface{}
	Attributes      map[string]interface{}
	ArrivedAt       time.Time
	Deadline        time.Time // zero means no deadline
}

// RequestEnvelope is the canonical, protocol-agnostic request container.
type RequestEnvelope struct {
	RequestID    string
	Capability   string
	Action       string
	ProtocolMeta map[string]interface{}
	Payload      RequestPayload
	Context      RequestContext
	ReceivedAt   time.Time
}

// NewRequestEnvelope validates the identity fields and populates ReceivedAt
// if the transport did not.
func NewRequestEnvelope(requestID, capability, action string, payload RequestPayload, reqCtx RequestContext) (*RequestEnvelope, error) {
	if requestID == "" {
		return nil, NewMissingFieldError("requestID")
	}
	if capability == "" {
		return nil, NewMissingFieldError("capability")
	}
	if action == "" {
		return nil, NewMissingFieldError("action")
	}

	env := &RequestEnvelope{
		RequestID:  requestID,
		Capability: capability,
		Action:     action,
		Payload:    payload,
		Context:    reqCtx,
		ReceivedAt: time.Now(),
	}
	if env.Context.ArrivedAt.IsZero() {
		env.Context.ArrivedAt = env.ReceivedAt
	}
	return env, nil
}

// snapshotMap returns a shallow copy of m, or an empty map for nil input.
func snapshotMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
