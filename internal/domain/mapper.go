package domain

// ResponseMapper converts operation results and failures into the MCP
// wire format handed back to clients.
type ResponseMapper interface {
	// MapToToolResponse renders an operation result as MCP content.
	MapToToolResponse(result interface{}) (*ToolResponse, error)

	// MapError converts an operation failure into a JSON-RPC error with
	// the structured payload intact, so callers can branch on the error
	// kind instead of parsing message text.
	MapError(err error) *Error
}
