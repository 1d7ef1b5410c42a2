package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mideliberto/jira-mcp/internal/domain"
	"github.com/mideliberto/jira-mcp/internal/infrastructure"
)

// Operation constants.
const (
	// MaxSearchResults caps every search; larger requests are clamped
	// silently, never rejected.
	MaxSearchResults = 100
	// DefaultSearchResults applies when the caller omits max_results.
	DefaultSearchResults = 50
	// DefaultUserResults applies to user searches.
	DefaultUserResults = 10
	// DefaultPriority applies when create_issue is called without one.
	DefaultPriority = "Medium"
	// fallbackEpicLinkField receives epic_link when the project's
	// mapping does not alias it.
	fallbackEpicLinkField = "customfield_10014"
)

// defaultSearchFields is the field selection used when the caller does
// not narrow a search.
func defaultSearchFields() []string {
	return []string{"key", "summary", "status", "assignee", "created", "updated"}
}

// JiraHandler is the operation façade: each tool call is a fixed
// pipeline of translate fields in, call the REST client, translate and
// format the response out.
type JiraHandler struct {
	client *infrastructure.JiraClient
	mapper domain.ResponseMapper
	fields *domain.FieldTable
}

// NewJiraHandler creates a JiraHandler around an authenticated client
// and the process-lifetime field table.
func NewJiraHandler(client *infrastructure.JiraClient, mapper domain.ResponseMapper, fields *domain.FieldTable) *JiraHandler {
	return &JiraHandler{
		client: client,
		mapper: mapper,
		fields: fields,
	}
}

// Tool name constants for Jira operations
const (
	ToolSearchIssues    = "jira_search_issues"
	ToolGetIssue        = "jira_get_issue"
	ToolCreateIssue     = "jira_create_issue"
	ToolUpdateIssue     = "jira_update_issue"
	ToolAddComment      = "jira_add_comment"
	ToolTransitionIssue = "jira_transition_issue"
	ToolGetTransitions  = "jira_get_transitions"
	ToolDeleteIssue     = "jira_delete_issue"
	ToolSearchUsers     = "jira_search_users"
	ToolAttachFile      = "jira_attach_file"
)

// ToolName returns the routing prefix for this handler.
func (h *JiraHandler) ToolName() string {
	return "jira"
}

// ListTools returns the tool definitions for all Jira operations.
func (h *JiraHandler) ListTools() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        ToolSearchIssues,
			Description: "Search Jira issues using JQL (Jira Query Language)",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"jql": map[string]interface{}{
						"type":        "string",
						"description": "JQL query string, e.g. \"project = ITPROJ AND status = Open\"",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Maximum results to return (default %d, capped at %d)", DefaultSearchResults, MaxSearchResults),
					},
					"fields": map[string]interface{}{
						"type":        "array",
						"description": "Fields to return (default: key, summary, status, assignee, created, updated)",
					},
				},
				Required: []string{"jql"},
			},
		},
		{
			Name:        ToolGetIssue,
			Description: "Get full details for a specific Jira issue",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
				},
				Required: []string{"issue_key"},
			},
		},
		{
			Name:        ToolCreateIssue,
			Description: "Create a new Jira issue (epic, task or subtask)",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"project": map[string]interface{}{
						"type":        "string",
						"description": "Project key, e.g. ITPROJ",
					},
					"issue_type": map[string]interface{}{
						"type":        "string",
						"description": "Issue type name, e.g. Task, Epic, Sub-task",
					},
					"summary": map[string]interface{}{
						"type":        "string",
						"description": "Issue title (required, non-empty)",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "Plain-text description; defaults to the summary when omitted",
					},
					"priority": map[string]interface{}{
						"type":        "string",
						"description": "Priority name; defaults to " + DefaultPriority,
					},
					"assignee": map[string]interface{}{
						"type":        "string",
						"description": "Assignee: values containing @ are treated as an email address, anything else as an account id (best-effort heuristic)",
					},
					"labels": map[string]interface{}{
						"type":        "array",
						"description": "Label names",
					},
					"components": map[string]interface{}{
						"type":        "array",
						"description": "Component names",
					},
					"parent_key": map[string]interface{}{
						"type":        "string",
						"description": "Parent issue key (required for Sub-task; also links Tasks under an Epic in team-managed projects)",
					},
					"epic_link": map[string]interface{}{
						"type":        "string",
						"description": "Epic issue key for company-managed projects",
					},
					"custom_fields": map[string]interface{}{
						"type":        "object",
						"description": "Custom field values keyed by friendly name or raw customfield_XXXXX id",
					},
				},
				Required: []string{"project", "issue_type", "summary"},
			},
		},
		{
			Name:        ToolUpdateIssue,
			Description: "Update fields on an existing Jira issue; only provided fields change, lists replace existing values",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
					"summary": map[string]interface{}{
						"type":        "string",
						"description": "New summary",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "New plain-text description",
					},
					"priority": map[string]interface{}{
						"type":        "string",
						"description": "New priority name",
					},
					"assignee": map[string]interface{}{
						"type":        "string",
						"description": "New assignee (email or account id)",
					},
					"labels": map[string]interface{}{
						"type":        "array",
						"description": "New labels (replaces existing)",
					},
					"components": map[string]interface{}{
						"type":        "array",
						"description": "New components (replaces existing)",
					},
					"custom_fields": map[string]interface{}{
						"type":        "object",
						"description": "Custom field values keyed by friendly name or raw customfield_XXXXX id",
					},
				},
				Required: []string{"issue_key"},
			},
		},
		{
			Name:        ToolAddComment,
			Description: "Add a comment to a Jira issue",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
					"body": map[string]interface{}{
						"type":        "string",
						"description": "Comment text (plain text)",
					},
					"visibility": map[string]interface{}{
						"type":        "object",
						"description": "Optional visibility restriction, passed through verbatim",
					},
				},
				Required: []string{"issue_key", "body"},
			},
		},
		{
			Name:        ToolTransitionIssue,
			Description: "Transition a Jira issue through its workflow by target state name (case-insensitive)",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
					"transition_name": map[string]interface{}{
						"type":        "string",
						"description": "Target transition name, e.g. \"In Progress\"",
					},
				},
				Required: []string{"issue_key", "transition_name"},
			},
		},
		{
			Name:        ToolGetTransitions,
			Description: "List the workflow transitions currently available for an issue",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
				},
				Required: []string{"issue_key"},
			},
		},
		{
			Name:        ToolDeleteIssue,
			Description: "Permanently delete a Jira issue; requires confirm_delete=true",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
					"confirm_delete": map[string]interface{}{
						"type":        "boolean",
						"description": "Must be true; deletion cannot be undone",
					},
				},
				Required: []string{"issue_key"},
			},
		},
		{
			Name:        ToolSearchUsers,
			Description: "Search Jira users by name or email to resolve account ids",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Name or email to search for",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": fmt.Sprintf("Maximum results to return (default %d)", DefaultUserResults),
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        ToolAttachFile,
			Description: "Attach a local file to a Jira issue",
			InputSchema: domain.JSONSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"issue_key": map[string]interface{}{
						"type":        "string",
						"description": "Issue key, e.g. ITPROJ-123",
					},
					"file_path": map[string]interface{}{
						"type":        "string",
						"description": "Path to the file; ~ and relative paths are resolved",
					},
					"filename": map[string]interface{}{
						"type":        "string",
						"description": "Override filename stored in Jira (default: basename of file_path)",
					},
				},
				Required: []string{"issue_key", "file_path"},
			},
		},
	}
}

// Handle dispatches one MCP tool call to its operation.
func (h *JiraHandler) Handle(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	if req.Arguments == nil {
		req.Arguments = make(map[string]interface{})
	}

	switch req.Name {
	case ToolSearchIssues:
		return h.handleSearchIssues(ctx, req.Arguments)
	case ToolGetIssue:
		return h.handleGetIssue(ctx, req.Arguments)
	case ToolCreateIssue:
		return h.handleCreateIssue(ctx, req.Arguments)
	case ToolUpdateIssue:
		return h.handleUpdateIssue(ctx, req.Arguments)
	case ToolAddComment:
		return h.handleAddComment(ctx, req.Arguments)
	case ToolTransitionIssue:
		return h.handleTransitionIssue(ctx, req.Arguments)
	case ToolGetTransitions:
		return h.handleGetTransitions(ctx, req.Arguments)
	case ToolDeleteIssue:
		return h.handleDeleteIssue(ctx, req.Arguments)
	case ToolSearchUsers:
		return h.handleSearchUsers(ctx, req.Arguments)
	case ToolAttachFile:
		return h.handleAttachFile(ctx, req.Arguments)
	default:
		return nil, &domain.Error{
			Code:    domain.MethodNotFound,
			Message: fmt.Sprintf("unknown Jira tool: %s", req.Name),
		}
	}
}

// handleSearchIssues runs a JQL search. The query is opaque to this
// layer; max_results is clamped silently to the cap.
func (h *JiraHandler) handleSearchIssues(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	jql, err := getStringParam(args, "jql", true)
	if err != nil {
		return nil, err
	}

	maxResults, err := getIntParam(args, "max_results", false)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}
	if maxResults > MaxSearchResults {
		maxResults = MaxSearchResults
	}

	fields, err := getStringSliceParam(args, "fields")
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = defaultSearchFields()
	}

	remote, err := h.client.SearchIssues(jql, maxResults, fields)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(domain.BuildSearchResults(remote))
}

// handleGetIssue fetches one issue and shapes it through the field
// translator and the document formatter.
func (h *JiraHandler) handleGetIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}

	remote, err := h.client.GetIssue(issueKey)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(domain.BuildIssue(h.fields, remote))
}

// assigneePayload builds the user reference for an assignee value. A
// value containing @ is treated as an email address, anything else as an
// opaque account id. This is a documented heuristic, not a guarantee.
func assigneePayload(value string) map[string]string {
	if strings.Contains(value, "@") {
		return map[string]string{"emailAddress": value}
	}
	return map[string]string{"accountId": value}
}

// namedRefs turns a list of names into Jira's [{"name": ...}] form.
func namedRefs(names []string) []map[string]string {
	refs := make([]map[string]string, 0, len(names))
	for _, name := range names {
		refs = append(refs, map[string]string{"name": name})
	}
	return refs
}

// handleCreateIssue creates an issue. Missing descriptions default to a
// copy of the summary (some project configurations reject empty
// descriptions); missing priority defaults to Medium.
func (h *JiraHandler) handleCreateIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	project, err := getStringParam(args, "project", true)
	if err != nil {
		return nil, err
	}
	issueType, err := getStringParam(args, "issue_type", true)
	if err != nil {
		return nil, err
	}
	summary, err := getStringParam(args, "summary", true)
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return nil, &domain.Error{
			Code:    domain.InvalidParams,
			Message: "summary must not be empty",
		}
	}

	description, err := getStringParam(args, "description", false)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = summary
	}
	priority, err := getStringParam(args, "priority", false)
	if err != nil {
		return nil, err
	}
	if priority == "" {
		priority = DefaultPriority
	}

	fields := map[string]any{
		"project":     map[string]string{"key": project},
		"issuetype":   map[string]string{"name": issueType},
		"summary":     summary,
		"description": domain.TextToDocument(description),
		"priority":    map[string]string{"name": priority},
	}

	if assignee, err := getStringParam(args, "assignee", false); err != nil {
		return nil, err
	} else if assignee != "" {
		fields["assignee"] = assigneePayload(assignee)
	}
	if labels, err := getStringSliceParam(args, "labels"); err != nil {
		return nil, err
	} else if labels != nil {
		fields["labels"] = labels
	}
	if components, err := getStringSliceParam(args, "components"); err != nil {
		return nil, err
	} else if components != nil {
		fields["components"] = namedRefs(components)
	}
	if parentKey, err := getStringParam(args, "parent_key", false); err != nil {
		return nil, err
	} else if parentKey != "" {
		fields["parent"] = map[string]string{"key": parentKey}
	}
	if epicLink, err := getStringParam(args, "epic_link", false); err != nil {
		return nil, err
	} else if epicLink != "" {
		fields[h.epicLinkField(project)] = epicLink
	}

	custom, err := getObjectParam(args, "custom_fields")
	if err != nil {
		return nil, err
	}
	for id, value := range h.fields.ReverseMapFields(project, custom) {
		fields[id] = value
	}

	created, err := h.client.CreateIssue(fields)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"key": created.Key,
		"url": fmt.Sprintf("%s/browse/%s", h.client.BaseURL(), created.Key),
	})
}

// epicLinkField resolves which field carries epic links for a project:
// the mapped epic_link alias when the project defines one, otherwise the
// conventional company-managed field.
func (h *JiraHandler) epicLinkField(project string) string {
	if id, ok := h.fields.Reverse(project)["epic_link"]; ok {
		return id
	}
	return fallbackEpicLinkField
}

// handleUpdateIssue applies a sparse update. An empty field set is a
// caller error, not a no-op success. The update endpoint returns no
// body, so the issue is re-fetched for the fresh updated timestamp.
func (h *JiraHandler) handleUpdateIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	project := domain.ProjectFromIssueKey(issueKey)

	fields := map[string]any{}

	// Presence decides what changes: an explicitly empty value is still
	// an update, only an absent parameter is left alone.
	if summary, ok, err := getOptionalStringParam(args, "summary"); err != nil {
		return nil, err
	} else if ok {
		fields["summary"] = summary
	}
	if description, ok, err := getOptionalStringParam(args, "description"); err != nil {
		return nil, err
	} else if ok {
		fields["description"] = domain.TextToDocument(description)
	}
	if priority, ok, err := getOptionalStringParam(args, "priority"); err != nil {
		return nil, err
	} else if ok {
		fields["priority"] = map[string]string{"name": priority}
	}
	if assignee, ok, err := getOptionalStringParam(args, "assignee"); err != nil {
		return nil, err
	} else if ok {
		fields["assignee"] = assigneePayload(assignee)
	}
	if labels, err := getStringSliceParam(args, "labels"); err != nil {
		return nil, err
	} else if labels != nil {
		fields["labels"] = labels
	}
	if components, err := getStringSliceParam(args, "components"); err != nil {
		return nil, err
	} else if components != nil {
		fields["components"] = namedRefs(components)
	}

	custom, err := getObjectParam(args, "custom_fields")
	if err != nil {
		return nil, err
	}
	for id, value := range h.fields.ReverseMapFields(project, custom) {
		fields[id] = value
	}

	if len(fields) == 0 {
		return nil, &domain.Error{
			Code:    domain.InvalidParams,
			Message: "at least one field must be provided to update",
		}
	}

	if err := h.client.UpdateIssue(issueKey, fields); err != nil {
		return nil, h.mapper.MapError(err)
	}

	refreshed, err := h.client.GetIssue(issueKey)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"key":     issueKey,
		"updated": refreshed.Fields.Updated,
	})
}

// handleAddComment posts a plain-text comment, formatted as a document.
func (h *JiraHandler) handleAddComment(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	body, err := getStringParam(args, "body", true)
	if err != nil {
		return nil, err
	}
	visibility, err := getObjectParam(args, "visibility")
	if err != nil {
		return nil, err
	}

	created, err := h.client.AddComment(issueKey, domain.TextToDocument(body), visibility)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"comment_id": created.ID.String(),
		"created":    created.Created,
	})
}

// handleTransitionIssue resolves the target state against a fresh
// transition set, executes it, and re-fetches the issue: the returned
// status is always the remote's actual resulting state, never the
// caller's requested name.
func (h *JiraHandler) handleTransitionIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	transitionName, err := getStringParam(args, "transition_name", true)
	if err != nil {
		return nil, err
	}

	available, err := h.client.GetTransitions(issueKey)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	transition, opErr := domain.ResolveTransition(available, transitionName)
	if opErr != nil {
		opErr.IssueKey = issueKey
		return nil, h.mapper.MapError(opErr)
	}

	if err := h.client.DoTransition(issueKey, transition.ID); err != nil {
		return nil, h.mapper.MapError(err)
	}

	refreshed, err := h.client.GetIssue(issueKey)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"key":          issueKey,
		"new_status":   refreshed.Fields.Status.Name,
		"transitioned": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetTransitions lists the transitions currently offered.
func (h *JiraHandler) handleGetTransitions(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}

	transitions, err := h.client.GetTransitions(issueKey)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}
	if transitions == nil {
		transitions = []domain.Transition{}
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"transitions": transitions,
	})
}

// handleDeleteIssue refuses without the explicit confirmation flag.
// The guard runs before any network call.
func (h *JiraHandler) handleDeleteIssue(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	confirm, err := getBoolParam(args, "confirm_delete")
	if err != nil {
		return nil, err
	}

	if !confirm {
		return nil, h.mapper.MapError(&domain.OpError{
			Kind:     domain.KindConfirmationRequired,
			IssueKey: issueKey,
			Message: fmt.Sprintf("deleting %s requires confirm_delete=true; this cannot be undone - consider transitioning to Done instead",
				issueKey),
		})
	}

	if err := h.client.DeleteIssue(issueKey); err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"key":        issueKey,
		"deleted":    true,
		"deleted_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSearchUsers resolves human-entered names into account ids.
func (h *JiraHandler) handleSearchUsers(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	query, err := getStringParam(args, "query", true)
	if err != nil {
		return nil, err
	}
	maxResults, err := getIntParam(args, "max_results", false)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = DefaultUserResults
	}

	users, err := h.client.SearchUsers(query, maxResults)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}

	return h.mapper.MapToToolResponse(map[string]any{
		"users": users,
		"count": len(users),
	})
}

// resolveLocalPath expands a leading ~ and makes the path absolute.
func resolveLocalPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// handleAttachFile uploads a local file. The path is resolved and
// checked before any network call.
func (h *JiraHandler) handleAttachFile(ctx context.Context, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issue_key", true)
	if err != nil {
		return nil, err
	}
	filePath, err := getStringParam(args, "file_path", true)
	if err != nil {
		return nil, err
	}
	filename, err := getStringParam(args, "filename", false)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveLocalPath(filePath)
	if err != nil {
		return nil, &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("cannot resolve path %s: %v", filePath, err),
		}
	}

	if _, err := os.Stat(resolved); err != nil {
		return nil, h.mapper.MapError(&domain.OpError{
			Kind:     domain.KindFileNotFound,
			IssueKey: issueKey,
			Message:  fmt.Sprintf("file not found: %s", resolved),
		})
	}

	attachments, err := h.client.AttachFile(issueKey, resolved, filename)
	if err != nil {
		return nil, h.mapper.MapError(err)
	}
	if len(attachments) == 0 {
		return nil, &domain.Error{
			Code:    domain.APIError,
			Message: "Jira returned no attachment record",
		}
	}

	att := attachments[0]
	return h.mapper.MapToToolResponse(map[string]any{
		"key":      issueKey,
		"filename": att.Filename,
		"id":       att.ID.String(),
		"size":     att.Size,
	})
}
