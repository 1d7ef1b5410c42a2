package infrastructure

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

// mockJiraServer simulates the subset of the Jira Cloud REST v3 API the
// client talks to.
func mockJiraServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/rest/api/3/myself":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(domain.User{
				AccountID:    "acc-1",
				DisplayName:  "Sam Doe",
				EmailAddress: "sam@example.com",
				Active:       true,
			})

		case r.Method == "GET" && r.URL.Path == "/rest/api/3/search":
			if r.URL.Query().Get("jql") == "broken ===" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"errorMessages":["Error in the JQL Query"]}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{
				"total": 2,
				"issues": [
					{"key": "IT-1", "fields": {"summary": "first"}},
					{"key": "IT-2", "fields": {"summary": "second"}}
				]
			}`))

		case r.Method == "GET" && r.URL.Path == "/rest/api/3/issue/ITCM-7":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{
				"id": "10001",
				"key": "ITCM-7",
				"fields": {
					"summary": "Rotate TLS certs",
					"status": {"id": "1", "name": "Open"},
					"issuetype": {"name": "Change"},
					"customfield_10059": "High"
				}
			}`))

		case r.Method == "GET" && r.URL.Path == "/rest/api/3/issue/GONE-1":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`))

		case r.Method == "POST" && r.URL.Path == "/rest/api/3/issue":
			var payload struct {
				Fields map[string]any `json:"fields"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if payload.Fields["summary"] == "reject me" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"errors":{"priority":"Priority is required"}}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 10042, "key": "ITCM-42", "self": "https://example/rest/api/3/issue/10042"}`))

		case r.Method == "PUT" && r.URL.Path == "/rest/api/3/issue/ITCM-7":
			w.WriteHeader(http.StatusNoContent)

		case r.Method == "DELETE" && r.URL.Path == "/rest/api/3/issue/ITCM-7":
			w.WriteHeader(http.StatusNoContent)

		case r.Method == "GET" && r.URL.Path == "/rest/api/3/issue/ITCM-7/transitions":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"transitions":[{"id":"11","name":"To Do"},{"id":"21","name":"In Progress"}]}`))

		case r.Method == "POST" && r.URL.Path == "/rest/api/3/issue/ITCM-7/transitions":
			var payload struct {
				Transition struct {
					ID string `json:"id"`
				} `json:"transition"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Transition.ID == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"errorMessages":["Missing transition id"]}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case r.Method == "POST" && r.URL.Path == "/rest/api/3/issue/ITCM-7/comment":
			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if _, ok := payload["body"]; !ok {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "20001", "created": "2026-03-01T12:00:00.000+0000"}`))

		case r.Method == "GET" && r.URL.Path == "/rest/api/3/user/search":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`[{"accountId":"acc-1","displayName":"Sam Doe","emailAddress":"sam@example.com","active":true}]`))

		case r.Method == "POST" && r.URL.Path == "/rest/api/3/issue/ITCM-7/attachments":
			if r.Header.Get("X-Atlassian-Token") != "no-check" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			header := r.MultipartForm.File["file"][0]
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode([]domain.Attachment{
				{ID: "30001", Filename: header.Filename, Size: header.Size},
			})

		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errorMessages":["no route"]}`))
		}
	}))
}

// newTestClient returns a client pointed at the mock server.
func newTestClient(server *httptest.Server) *JiraClient {
	return NewJiraClient(server.URL, server.Client())
}

// asOpError asserts that err is an OpError and returns it.
func asOpError(t *testing.T, err error) *domain.OpError {
	t.Helper()
	var opErr *domain.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %T (%v), want *domain.OpError", err, err)
	}
	return opErr
}

// TestJiraClient_Myself tests the connection check call.
func TestJiraClient_Myself(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	user, err := newTestClient(server).Myself()
	if err != nil {
		t.Fatalf("Myself() error = %v", err)
	}
	if user.DisplayName != "Sam Doe" || user.AccountID != "acc-1" {
		t.Errorf("user = %+v", user)
	}
}

// TestJiraClient_SearchIssues tests the JQL search happy path including
// the request parameters sent.
func TestJiraClient_SearchIssues(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"issues":[],"total":0}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).SearchIssues("project = IT", 25, []string{"key", "summary"})
	if err != nil {
		t.Fatalf("SearchIssues() error = %v", err)
	}

	if gotQuery.Get("jql") != "project = IT" {
		t.Errorf("jql = %q", gotQuery.Get("jql"))
	}
	if gotQuery.Get("maxResults") != "25" {
		t.Errorf("maxResults = %q, want 25", gotQuery.Get("maxResults"))
	}
	if !reflect.DeepEqual(gotQuery["fields"], []string{"key", "summary"}) {
		t.Errorf("fields = %v", gotQuery["fields"])
	}
}

// TestJiraClient_SearchIssues_InvalidJQL tests that a 400 surfaces as an
// invalid query error with the remote messages attached.
func TestJiraClient_SearchIssues_InvalidJQL(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	_, err := newTestClient(server).SearchIssues("broken ===", 50, nil)
	opErr := asOpError(t, err)

	if opErr.Kind != domain.KindInvalidQuery {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindInvalidQuery)
	}
	if opErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", opErr.StatusCode)
	}
	if len(opErr.ErrorMessages) == 0 || opErr.ErrorMessages[0] != "Error in the JQL Query" {
		t.Errorf("ErrorMessages = %v", opErr.ErrorMessages)
	}
}

// TestJiraClient_GetIssue tests issue retrieval and custom field capture.
func TestJiraClient_GetIssue(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	issue, err := newTestClient(server).GetIssue("ITCM-7")
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Key != "ITCM-7" || issue.Fields.Summary != "Rotate TLS certs" {
		t.Errorf("issue = %+v", issue)
	}
	if issue.Fields.Custom["customfield_10059"] != "High" {
		t.Errorf("Custom = %v", issue.Fields.Custom)
	}
}

// TestJiraClient_GetIssue_NotFound tests the 404 classification.
func TestJiraClient_GetIssue_NotFound(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	_, err := newTestClient(server).GetIssue("GONE-1")
	opErr := asOpError(t, err)

	if opErr.Kind != domain.KindNotFound {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindNotFound)
	}
	if opErr.IssueKey != "GONE-1" {
		t.Errorf("IssueKey = %s, want GONE-1", opErr.IssueKey)
	}
}

// TestJiraClient_CreateIssue tests creation and the 400 validation path.
func TestJiraClient_CreateIssue(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()
	client := newTestClient(server)

	created, err := client.CreateIssue(map[string]any{"summary": "new issue"})
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if created.Key != "ITCM-42" {
		t.Errorf("Key = %s, want ITCM-42", created.Key)
	}
	// Numeric id on the wire still decodes.
	if created.ID.String() != "10042" {
		t.Errorf("ID = %s, want 10042", created.ID)
	}

	_, err = client.CreateIssue(map[string]any{"summary": "reject me"})
	opErr := asOpError(t, err)
	if opErr.Kind != domain.KindValidationFailed {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindValidationFailed)
	}
	if opErr.FieldErrors["priority"] != "Priority is required" {
		t.Errorf("FieldErrors = %v", opErr.FieldErrors)
	}
}

// TestJiraClient_UpdateAndDelete tests the no-body success statuses.
func TestJiraClient_UpdateAndDelete(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()
	client := newTestClient(server)

	if err := client.UpdateIssue("ITCM-7", map[string]any{"summary": "renamed"}); err != nil {
		t.Errorf("UpdateIssue() error = %v", err)
	}
	if err := client.DeleteIssue("ITCM-7"); err != nil {
		t.Errorf("DeleteIssue() error = %v", err)
	}

	err := client.DeleteIssue("GONE-1")
	opErr := asOpError(t, err)
	if opErr.Kind != domain.KindNotFound {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindNotFound)
	}
}

// TestJiraClient_Transitions tests fetching and executing transitions.
func TestJiraClient_Transitions(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()
	client := newTestClient(server)

	transitions, err := client.GetTransitions("ITCM-7")
	if err != nil {
		t.Fatalf("GetTransitions() error = %v", err)
	}
	if len(transitions) != 2 || transitions[1].Name != "In Progress" {
		t.Errorf("transitions = %+v", transitions)
	}

	if err := client.DoTransition("ITCM-7", "21"); err != nil {
		t.Errorf("DoTransition() error = %v", err)
	}
}

// TestJiraClient_AddComment tests comment creation.
func TestJiraClient_AddComment(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	created, err := newTestClient(server).AddComment("ITCM-7", domain.TextToDocument("looks good"), nil)
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if created.ID.String() != "20001" {
		t.Errorf("ID = %s, want 20001", created.ID)
	}
	if created.Created == "" {
		t.Error("Created is empty")
	}
}

// TestJiraClient_SearchUsers tests the user lookup.
func TestJiraClient_SearchUsers(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	users, err := newTestClient(server).SearchUsers("sam", 10)
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].AccountID != "acc-1" {
		t.Errorf("users = %+v", users)
	}
}

// TestJiraClient_AttachFile tests the multipart upload, including the
// filename override.
func TestJiraClient_AttachFile(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()
	client := newTestClient(server)

	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("attachment body"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	attachments, err := client.AttachFile("ITCM-7", path, "")
	if err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if len(attachments) != 1 || attachments[0].Filename != "report.txt" {
		t.Errorf("attachments = %+v", attachments)
	}

	attachments, err = client.AttachFile("ITCM-7", path, "renamed.txt")
	if err != nil {
		t.Fatalf("AttachFile() with override error = %v", err)
	}
	if attachments[0].Filename != "renamed.txt" {
		t.Errorf("Filename = %s, want renamed.txt", attachments[0].Filename)
	}
}

// TestJiraClient_AttachFile_MissingFile tests the local open failure.
func TestJiraClient_AttachFile_MissingFile(t *testing.T) {
	server := mockJiraServer()
	defer server.Close()

	_, err := newTestClient(server).AttachFile("ITCM-7", "/no/such/file.txt", "")
	opErr := asOpError(t, err)
	if opErr.Kind != domain.KindFileNotFound {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindFileNotFound)
	}
}

// TestJiraClient_NetworkFailure tests that a connection-level failure is
// a transport error with no status code.
func TestJiraClient_NetworkFailure(t *testing.T) {
	server := mockJiraServer()
	server.Close() // refuse connections

	_, err := newTestClient(server).GetIssue("ITCM-7")
	opErr := asOpError(t, err)
	if opErr.Kind != domain.KindTransport {
		t.Errorf("Kind = %s, want %s", opErr.Kind, domain.KindTransport)
	}
	if opErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", opErr.StatusCode)
	}
}
