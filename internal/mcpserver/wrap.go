package mcpserver

import (
	"context"

	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/metrics"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// errorOutput is the payload of every failed tool call. Failures are reported
// in the tool result, flagged with IsError, rather than as protocol errors.
type errorOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type toolFunc[In any] func(ctx context.Context, in In) (any, error)

// addTool registers fn under name with a span, a request id, a completion log
// and the tool metrics around every call.
func addTool[In any](s *Server, name, description string, fn toolFunc[In]) {
	tool := &mcp.Tool{Name: name, Description: description}
	mcp.AddTool(s.mcp, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		op := logger.StartOperation(ctx, "tool."+name, "tool", name, "request_id", uuid.NewString())

		out, err := fn(op.Context(), in)
		if err != nil {
			metrics.ObserveTool(name, false, op.EndWithError(err))
			return &mcp.CallToolResult{IsError: true}, errorOutput{Status: StatusError, Message: err.Error()}, nil
		}
		metrics.ObserveTool(name, true, op.End())
		return nil, out, nil
	})
}
