package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

// RequestRouter dispatches MCP tool requests to the appropriate
// ToolHandler based on the tool name prefix.
type RequestRouter struct {
	handlers map[string]domain.ToolHandler
}

// NewRequestRouter creates a RequestRouter with the provided handlers,
// registered by their ToolName() identifier.
func NewRequestRouter(handlers ...domain.ToolHandler) *RequestRouter {
	router := &RequestRouter{
		handlers: make(map[string]domain.ToolHandler),
	}

	for _, handler := range handlers {
		router.handlers[handler.ToolName()] = handler
	}

	return router
}

// Route dispatches a tool request to the handler owning its prefix.
// Tool names follow the pattern <handler>_<operation>, e.g.
// jira_get_issue.
func (r *RequestRouter) Route(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	handlerName := r.extractHandlerName(req.Name)
	if handlerName == "" {
		return nil, fmt.Errorf("invalid tool name format: %s (expected format: <handler>_<operation>)", req.Name)
	}

	handler, exists := r.handlers[handlerName]
	if !exists {
		return nil, fmt.Errorf("unknown tool: %s (no handler registered for '%s')", req.Name, handlerName)
	}

	return handler.Handle(ctx, req)
}

// ListAllTools aggregates tool definitions from all registered handlers
// for MCP tool discovery (tools/list).
func (r *RequestRouter) ListAllTools() []domain.ToolDefinition {
	var allTools []domain.ToolDefinition

	for _, handler := range r.handlers {
		allTools = append(allTools, handler.ListTools()...)
	}

	return allTools
}

// extractHandlerName extracts the handler identifier from a tool name.
func (r *RequestRouter) extractHandlerName(toolName string) string {
	idx := strings.Index(toolName, "_")
	if idx == -1 {
		return ""
	}

	return toolName[:idx]
}

// GetHandler returns the handler registered under a name. Useful for
// testing.
func (r *RequestRouter) GetHandler(handlerName string) (domain.ToolHandler, bool) {
	handler, exists := r.handlers[handlerName]
	return handler, exists
}
