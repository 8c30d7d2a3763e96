package dispatch

import (
	"context"
	"errors"

	"cheshire/internal/core"
	"cheshire/internal/plugin"
)

// StreamDispatcher is the streaming variant: instead of a single response
// entity it publishes output fragments on a channel. It is structurally
// identical to Dispatcher otherwise, and still answers Dispatch for
// transports that fall back to unary calls.
type StreamDispatcher struct {
	*Dispatcher
}

// NewStream creates a streaming dispatcher over a session.
func NewStream(session SessionExecutor) *StreamDispatcher {
	return &StreamDispatcher{Dispatcher: New(KindStreaming, session)}
}

// DispatchStream executes the envelope and publishes the result as a series
// of fragments: one per row when the output is tabular, a single fragment
// otherwise, always terminated by a final fragment. Failures arrive as a
// single final fragment carrying the error.
func (d *StreamDispatcher) DispatchStream(ctx context.Context, env *core.RequestEnvelope) (<-chan plugin.StreamFragment, error) {
	ch := make(chan plugin.StreamFragment)

	go func() {
		defer close(ch)

		resp := d.Dispatch(ctx, env)
		switch r := resp.(type) {
		case core.ResponseOK:
			for _, fragment := range fragmentsOf(r.Data) {
				select {
				case ch <- plugin.StreamFragment{Data: fragment}:
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- plugin.StreamFragment{Final: true, Data: r.Metadata}:
			case <-ctx.Done():
			}
		case core.ResponseError:
			err := r.Cause
			if err == nil {
				err = errors.New(r.Message)
			}
			select {
			case ch <- plugin.StreamFragment{Final: true, Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// fragmentsOf splits a response body into streamable fragments. A tabular
// body ("rows" holding a row list) streams row by row; anything else is one
// fragment.
func fragmentsOf(data map[string]interface{}) []map[string]interface{} {
	if rows, ok := data["rows"].([]map[string]interface{}); ok {
		out := make([]map[string]interface{}, 0, len(rows))
		for _, row := range rows {
			out = append(out, row)
		}
		return out
	}
	if len(data) == 0 {
		return nil
	}
	return []map[string]interface{}{data}
}
