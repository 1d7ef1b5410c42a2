package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mideliberto/jira-mcp/internal/application"
	"github.com/mideliberto/jira-mcp/internal/domain"
	"github.com/mideliberto/jira-mcp/internal/infrastructure"
)

// TestServerWiring_EndToEnd exercises the full startup wiring the way
// main assembles it: authenticated client, field table, handler, router,
// stdio transport and server, with one tool call flowing end to end
// against a mock Jira.
func TestServerWiring_EndToEnd(t *testing.T) {
	jira := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{
			"id": "10001",
			"key": "ITCM-7",
			"fields": {
				"summary": "Rotate TLS certs",
				"status": {"id":"1","name":"Open"},
				"issuetype": {"name":"Change"},
				"customfield_10059": "High"
			}
		}`))
	}))
	defer jira.Close()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
transport:
  type: stdio

jira:
  base_url: ` + jira.URL + `
  credentials: env
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := domain.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	fieldTable, err := config.BuildFieldTable()
	if err != nil {
		t.Fatalf("Failed to build field table: %v", err)
	}

	creds := &domain.Credentials{
		BaseURL:  config.Jira.BaseURL,
		Email:    "sam@example.com",
		APIToken: "token-123",
	}
	httpClient := domain.NewAuthenticatedClient(creds)
	jiraClient := infrastructure.NewJiraClient(creds.BaseURL, httpClient)

	handler := application.NewJiraHandler(jiraClient, domain.NewResponseMapper(), fieldTable)
	router := application.NewRequestRouter(handler)

	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"jira_get_issue","arguments":{"issue_key":"ITCM-7"}}}` + "\n"
	output := &lockedBuffer{}
	transport := domain.NewStdioTransportWithIO(strings.NewReader(input), output)

	server := application.NewServer(transport, router, config)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		line := strings.TrimSpace(output.String())
		if line != "" {
			var resp domain.Response
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				t.Fatalf("Response is not valid JSON: %v", err)
			}
			if resp.Error != nil {
				t.Fatalf("Response error = %+v, want nil", resp.Error)
			}
			result, _ := resp.Result.(map[string]any)
			content, _ := result["content"].([]any)
			if len(content) == 0 {
				t.Fatalf("Response has no content: %v", resp.Result)
			}
			block, _ := content[0].(map[string]any)
			text, _ := block["text"].(string)
			if !strings.Contains(text, `"ITCM-7"`) || !strings.Contains(text, `"risk_level"`) {
				t.Errorf("Issue content = %s, want key and translated custom field", text)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for response")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// lockedBuffer is a goroutine-safe output sink for the stdio transport.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
