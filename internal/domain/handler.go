package domain

import (
	"context"
)

// ToolHandler processes tool calls for one backing service. The request
// router dispatches by the tool-name prefix returned from ToolName.
type ToolHandler interface {
	// Handle executes one MCP tool call.
	Handle(ctx context.Context, req *ToolRequest) (*ToolResponse, error)

	// ListTools returns the tool definitions this handler serves.
	ListTools() []ToolDefinition

	// ToolName returns the routing prefix for this handler (e.g. "jira").
	ToolName() string
}
