package infrastructure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

// JiraClient talks to the Jira Cloud REST v3 API. It is constructed once
// per process from the credential provider and reused for every call; it
// performs no retries and caches no remote state.
type JiraClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewJiraClient creates a Jira API client. The baseURL is the instance
// root (e.g. "https://company.atlassian.net"); the httpClient must carry
// the Basic auth transport from domain.NewAuthenticatedClient.
func NewJiraClient(baseURL string, httpClient *http.Client) *JiraClient {
	return &JiraClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the configured base URL for the Jira instance.
func (c *JiraClient) BaseURL() string {
	return c.baseURL
}

// Do executes an HTTP request with the JSON content headers set.
func (c *JiraClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// jiraErrorBody is the error payload shape Jira returns on failures.
type jiraErrorBody struct {
	ErrorMessages []string       `json:"errorMessages"`
	Errors        map[string]any `json:"errors"`
}

// transportError wraps a request-level failure that never produced a
// response.
func transportError(err error) *domain.OpError {
	return &domain.OpError{
		Kind:    domain.KindTransport,
		Message: err.Error(),
	}
}

// remoteError decodes a non-2xx response into an OpError of the given
// kind, preserving the status code, the raw body, and the structured
// Jira error payload.
func remoteError(kind domain.ErrorKind, issueKey, message string, resp *http.Response) *domain.OpError {
	body, _ := io.ReadAll(resp.Body)

	opErr := &domain.OpError{
		Kind:       kind,
		Message:    message,
		IssueKey:   issueKey,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	var parsed jiraErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		opErr.ErrorMessages = parsed.ErrorMessages
		opErr.FieldErrors = parsed.Errors
	}

	return opErr
}

// classifyIssueError maps a non-2xx status on an issue-scoped call to its
// error kind: 404 is NotFound, 400 is a validation failure, everything
// else is a generic transport error.
func classifyIssueError(issueKey string, resp *http.Response) *domain.OpError {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return remoteError(domain.KindNotFound, issueKey,
			fmt.Sprintf("issue %s not found", issueKey), resp)
	case http.StatusBadRequest:
		return remoteError(domain.KindValidationFailed, issueKey,
			fmt.Sprintf("Jira rejected the request for %s", issueKey), resp)
	default:
		return remoteError(domain.KindTransport, issueKey,
			fmt.Sprintf("unexpected response for %s", issueKey), resp)
	}
}

// Myself fetches the authenticated user, used by the connection check.
func (c *JiraClient) Myself() (*domain.User, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/myself", c.baseURL)

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(domain.KindTransport, "", "authentication check failed", resp)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &user, nil
}

// SearchIssues runs a JQL search. The JQL string is passed through
// verbatim; maxResults must already be clamped by the caller. A 400
// response surfaces as KindInvalidQuery with the remote's messages.
func (c *JiraClient) SearchIssues(jql string, maxResults int, fields []string) (*domain.RemoteSearchResults, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", strconv.Itoa(maxResults))
	for _, field := range fields {
		params.Add("fields", field)
	}

	endpoint := fmt.Sprintf("%s/rest/api/3/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, remoteError(domain.KindInvalidQuery, "", "Jira rejected the JQL query", resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(domain.KindTransport, "", "search failed", resp)
	}

	var results domain.RemoteSearchResults
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &results, nil
}

// GetIssue retrieves an issue by key. Every read is a fresh fetch.
func (c *JiraClient) GetIssue(issueKey string) (*domain.RemoteIssue, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s", c.baseURL, issueKey)

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyIssueError(issueKey, resp)
	}

	var issue domain.RemoteIssue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &issue, nil
}

// CreateIssue creates an issue from an already-translated field map.
func (c *JiraClient) CreateIssue(fields map[string]any) (*domain.CreatedIssue, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue", c.baseURL)

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue: %w", err)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		if resp.StatusCode == http.StatusBadRequest {
			return nil, remoteError(domain.KindValidationFailed, "", "Jira rejected the new issue", resp)
		}
		return nil, remoteError(domain.KindTransport, "", "issue creation failed", resp)
	}

	var created domain.CreatedIssue
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &created, nil
}

// UpdateIssue applies a sparse, already-translated field map to an
// issue. The endpoint returns no body on success.
func (c *JiraClient) UpdateIssue(issueKey string, fields map[string]any) error {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s", c.baseURL, issueKey)

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	req, err := http.NewRequest("PUT", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return classifyIssueError(issueKey, resp)
	}

	return nil
}

// DeleteIssue permanently deletes an issue. The confirmation guard lives
// in the façade, above this call.
func (c *JiraClient) DeleteIssue(issueKey string) error {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s", c.baseURL, issueKey)

	req, err := http.NewRequest("DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return classifyIssueError(issueKey, resp)
	}

	return nil
}

// GetTransitions fetches the transitions currently offered for an issue.
func (c *JiraClient) GetTransitions(issueKey string) ([]domain.Transition, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.baseURL, issueKey)

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyIssueError(issueKey, resp)
	}

	var payload struct {
		Transitions []domain.Transition `json:"transitions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return payload.Transitions, nil
}

// DoTransition executes a workflow transition by id.
func (c *JiraClient) DoTransition(issueKey, transitionID string) error {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.baseURL, issueKey)

	body, err := json.Marshal(map[string]any{
		"transition": map[string]string{"id": transitionID},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return classifyIssueError(issueKey, resp)
	}

	return nil
}

// AddComment posts a comment document to an issue. An optional
// visibility restriction is passed through verbatim.
func (c *JiraClient) AddComment(issueKey string, body *domain.Document, visibility map[string]any) (*domain.CreatedComment, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.baseURL, issueKey)

	payload := map[string]any{"body": body}
	if visibility != nil {
		payload["visibility"] = visibility
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment: %w", err)
	}

	req, err := http.NewRequest("POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, classifyIssueError(issueKey, resp)
	}

	var created domain.CreatedComment
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &created, nil
}

// SearchUsers finds users by name or email, for resolving account ids.
func (c *JiraClient) SearchUsers(query string, maxResults int) ([]domain.User, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("maxResults", strconv.Itoa(maxResults))

	endpoint := fmt.Sprintf("%s/rest/api/3/user/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(domain.KindTransport, "", "user search failed", resp)
	}

	var users []domain.User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return users, nil
}

// AttachFile uploads a local file as an issue attachment. The path must
// already be resolved and known to exist; the filename overrides the
// name stored in Jira when non-empty.
func (c *JiraClient) AttachFile(issueKey, path, filename string) ([]domain.Attachment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &domain.OpError{
			Kind:     domain.KindFileNotFound,
			Message:  fmt.Sprintf("cannot open %s: %v", path, err),
			IssueKey: issueKey,
		}
	}
	defer file.Close()

	if filename == "" {
		filename = filepath.Base(path)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s/attachments", c.baseURL, issueKey)

	req, err := http.NewRequest("POST", endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Attachment uploads require the XSRF check disabled and a
	// multipart content type instead of JSON.
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyIssueError(issueKey, resp)
	}

	var attachments []domain.Attachment
	if err := json.NewDecoder(resp.Body).Decode(&attachments); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return attachments, nil
}
