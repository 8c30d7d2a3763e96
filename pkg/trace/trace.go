// Package trace provides an optional structured object tracer. When enabled
// it writes pretty-printed dumps of request envelopes and their outcomes,
// meant for debugging a running server, not for production logging.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"cheshire/internal/core"
)

// Tracer dumps envelopes and results to a writer when enabled. The zero
// value is disabled; a nil writer falls back to stderr.
type Tracer struct {
	mu      sync.Mutex
	enabled bool
	writer  io.Writer
}

// New creates a tracer. Pass nil to write to stderr.
func New(enabled bool, writer io.Writer) *Tracer {
	if writer == nil {
		writer = os.Stderr
	}
	return &Tracer{enabled: enabled, writer: writer}
}

// SetEnabled toggles tracing at runtime.
func (t *Tracer) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// Enabled reports whether the tracer writes anything.
func (t *Tracer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Request dumps an incoming envelope.
func (t *Tracer) Request(env *core.RequestEnvelope) {
	if env == nil {
		return
	}
	t.dump(fmt.Sprintf("request %s %s.%s", env.RequestID, env.Capability, env.Action), map[string]interface{}{
		"requestId":  env.RequestID,
		"capability": env.Capability,
		"action":     env.Action,
		"payload":    env.Payload,
		"context":    env.Context,
		"receivedAt": env.ReceivedAt,
	})
}

// Response dumps the outcome of a dispatch.
func (t *Tracer) Response(requestID string, resp core.ResponseEntity) {
	switch r := resp.(type) {
	case core.ResponseOK:
		t.dump(fmt.Sprintf("response %s %s", requestID, r.Status()), map[string]interface{}{
			"data":     r.Data,
			"metadata": r.Metadata,
		})
	case core.ResponseError:
		body := map[string]interface{}{
			"category": r.Category,
			"message":  r.Message,
		}
		if r.Cause != nil {
			body["cause"] = r.Cause.Error()
		}
		t.dump(fmt.Sprintf("response %s %s", requestID, r.Status()), body)
	}
}

// Result dumps a session task result.
func (t *Tracer) Result(requestID string, result core.TaskResult) {
	switch r := result.(type) {
	case core.TaskSuccess:
		t.dump(fmt.Sprintf("result %s success", requestID), map[string]interface{}{
			"output":   r.Output,
			"metadata": r.Metadata,
		})
	case core.TaskFailure:
		body := map[string]interface{}{
			"status": r.Status,
		}
		if r.Cause != nil {
			body["cause"] = r.Cause.Error()
		}
		t.dump(fmt.Sprintf("result %s failure", requestID), body)
	}
}

// Dump writes an arbitrary labeled object.
func (t *Tracer) Dump(label string, obj interface{}) {
	t.dump(label, obj)
}

func (t *Tracer) dump(label string, obj interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	fmt.Fprintf(t.writer, "[%s] TRACE %s:\n", time.Now().Format("2006-01-02 15:04:05"), label)
	fmt.Fprintln(t.writer, prettyJSON(obj))
}

func prettyJSON(obj interface{}) string {
	body, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", obj)
	}
	return string(body)
}
