package application

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

// syncBuffer is a goroutine-safe bytes.Buffer for capturing transport
// output while the server goroutine writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startTestServer runs a Server over a stdio transport fed with the given
// input lines and returns the decoded responses once count have arrived.
func startTestServer(t *testing.T, handlers []domain.ToolHandler, input string, count int) []domain.Response {
	t.Helper()

	output := &syncBuffer{}
	transport := domain.NewStdioTransportWithIO(strings.NewReader(input), output)
	router := NewRequestRouter(handlers...)
	config := &domain.Config{Transport: domain.TransportConfig{Type: "stdio"}}

	server := NewServer(transport, router, config)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		lines := nonEmptyLines(output.String())
		if len(lines) >= count {
			responses := make([]domain.Response, 0, len(lines))
			for _, line := range lines {
				var resp domain.Response
				if err := json.Unmarshal([]byte(line), &resp); err != nil {
					t.Fatalf("response line %q is not valid JSON: %v", line, err)
				}
				responses = append(responses, resp)
			}
			return responses
		}
		select {
		case <-deadline:
			t.Fatalf("timed out: got %d responses, want %d\noutput: %q", len(lines), count, output.String())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// TestServer_Initialize tests the MCP handshake.
func TestServer_Initialize(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n"

	responses := startTestServer(t, nil, input, 1)

	resp := responses[0]
	if resp.Error != nil {
		t.Fatalf("Error = %+v, want nil", resp.Error)
	}
	result, _ := resp.Result.(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	serverInfo, _ := result["serverInfo"].(map[string]any)
	if serverInfo["name"] != "jira-mcp" {
		t.Errorf("serverInfo = %v", serverInfo)
	}
}

// TestServer_ToolsList tests tool discovery through the server.
func TestServer_ToolsList(t *testing.T) {
	handler := &stubHandler{
		name: "jira",
		tools: []domain.ToolDefinition{
			{Name: "jira_get_issue", Description: "Get an issue"},
		},
	}

	input := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"
	responses := startTestServer(t, []domain.ToolHandler{handler}, input, 1)

	result, _ := responses[0].Result.(map[string]any)
	tools, _ := result["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", result["tools"])
	}
	first, _ := tools[0].(map[string]any)
	if first["name"] != "jira_get_issue" {
		t.Errorf("tools[0] = %v", first)
	}
}

// TestServer_ToolsCall tests end-to-end dispatch of a tool call.
func TestServer_ToolsCall(t *testing.T) {
	handler := &stubHandler{
		name: "jira",
		onHandle: func(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
			if req.Arguments["issue_key"] != "IT-1" {
				t.Errorf("arguments = %v", req.Arguments)
			}
			return &domain.ToolResponse{
				Content: []domain.ContentBlock{{Type: "text", Text: `{"key":"IT-1"}`}},
			}, nil
		},
	}

	input := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"jira_get_issue","arguments":{"issue_key":"IT-1"}}}` + "\n"
	responses := startTestServer(t, []domain.ToolHandler{handler}, input, 1)

	resp := responses[0]
	if resp.Error != nil {
		t.Fatalf("Error = %+v, want nil", resp.Error)
	}
	result, _ := resp.Result.(map[string]any)
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("content = %v", result["content"])
	}
}

// TestServer_ToolsCall_HandlerError tests that a structured handler error
// reaches the client with its code and data intact.
func TestServer_ToolsCall_HandlerError(t *testing.T) {
	handler := &stubHandler{
		name: "jira",
		onHandle: func(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
			return nil, &domain.Error{
				Code:    domain.APIError,
				Message: "issue GONE-1 not found",
				Data:    map[string]any{"kind": "not_found", "issue_key": "GONE-1"},
			}
		},
	}

	input := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"jira_get_issue","arguments":{}}}` + "\n"
	responses := startTestServer(t, []domain.ToolHandler{handler}, input, 1)

	resp := responses[0]
	if resp.Error == nil {
		t.Fatal("Error = nil, want structured error")
	}
	if resp.Error.Code != domain.APIError {
		t.Errorf("Code = %d, want %d", resp.Error.Code, domain.APIError)
	}
	data, _ := resp.Error.Data.(map[string]any)
	if data["kind"] != "not_found" {
		t.Errorf("Data = %v", resp.Error.Data)
	}
}

// TestServer_UnknownMethod tests the method-not-found path.
func TestServer_UnknownMethod(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":5,"method":"resources/list"}` + "\n"
	responses := startTestServer(t, nil, input, 1)

	resp := responses[0]
	if resp.Error == nil || resp.Error.Code != domain.MethodNotFound {
		t.Errorf("Error = %+v, want code %d", resp.Error, domain.MethodNotFound)
	}
}

// TestServer_ToolsCall_MissingParams tests params validation.
func TestServer_ToolsCall_MissingParams(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":6,"method":"tools/call"}` + "\n"
	responses := startTestServer(t, nil, input, 1)

	resp := responses[0]
	if resp.Error == nil || resp.Error.Code != domain.InvalidParams {
		t.Errorf("Error = %+v, want code %d", resp.Error, domain.InvalidParams)
	}
}

// TestServer_ToolsCall_UnknownTool tests the unknown-prefix mapping.
func TestServer_ToolsCall_UnknownTool(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"bamboo_trigger_build","arguments":{}}}` + "\n"
	responses := startTestServer(t, nil, input, 1)

	resp := responses[0]
	if resp.Error == nil || resp.Error.Code != domain.MethodNotFound {
		t.Errorf("Error = %+v, want code %d", resp.Error, domain.MethodNotFound)
	}
}
