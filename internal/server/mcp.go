package server

import (
	"context"
	"encoding/json"
	"fmt"

	"cheshire/internal/core"
	"cheshire/internal/health"
	"cheshire/internal/plugin"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// buildMCPServer exposes a capability's actions as MCP tools, one tool per
// action named capability.action. The same builder backs the JSON-RPC,
// stdio, and streaming transports.
func buildMCPServer(binding plugin.ServerBinding, metrics *health.Metrics) *server.MCPServer {
	s := server.NewMCPServer(
		"cheshire-"+binding.Capability,
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	for _, action := range binding.Actions {
		action := action
		tool := mcp.NewTool(
			binding.Capability+"."+action,
			mcp.WithDescription(fmt.Sprintf("Invoke action %s of capability %s", action, binding.Capability)),
			mcp.WithObject("data",
				mcp.Description("Request body"),
			),
			mcp.WithObject("parameters",
				mcp.Description("Request parameters"),
			),
			mcp.WithObject("context",
				mcp.Description("Caller identity: sessionId, userId, traceId"),
			),
		)
		s.AddTool(tool, actionHandler(binding, action, metrics))
	}
	return s
}

// actionHandler converts one tool call into an envelope dispatch. Identity
// fields come from the caller's context argument; a request ID is generated
// when the transport supplies none.
func actionHandler(binding plugin.ServerBinding, action string, metrics *health.Metrics) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var timer *health.RequestTimer
		if metrics != nil {
			timer = metrics.StartRequest()
			defer timer.Close()
			metrics.IncComponent(binding.Capability)
		}

		args := request.GetArguments()

		data, _ := args["data"].(map[string]interface{})
		parameters, _ := args["parameters"].(map[string]interface{})

		reqCtx := core.RequestContext{}
		if callerCtx, ok := args["context"].(map[string]interface{}); ok {
			reqCtx.SessionID, _ = callerCtx["sessionId"].(string)
			reqCtx.UserID, _ = callerCtx["userId"].(string)
			reqCtx.TraceID, _ = callerCtx["traceId"].(string)
		}

		env, err := core.NewRequestEnvelope(uuid.NewString(), binding.Capability, action,
			core.NewRequestPayload("jsonrpc", data, parameters, nil), reqCtx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		resp := binding.Dispatcher.Dispatch(ctx, env)
		switch res := resp.(type) {
		case core.ResponseOK:
			body, err := json.Marshal(map[string]interface{}{
				"status":   string(core.StatusSuccess),
				"data":     res.Data,
				"metadata": res.Metadata,
			})
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to encode response: %v", err)), nil
			}
			return mcp.NewToolResultText(string(body)), nil
		case core.ResponseError:
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", res.Category, res.Message)), nil
		default:
			return mcp.NewToolResultError("unhandled response variant"), nil
		}
	}
}
