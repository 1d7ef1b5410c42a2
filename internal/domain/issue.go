package domain

import (
	"encoding/json"
	"fmt"
)

// FlexibleID unmarshals both string and numeric ids, which Jira mixes
// freely across endpoints.
type FlexibleID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleID(n.String())
		return nil
	}

	return fmt.Errorf("id must be a string or number")
}

// String returns the string representation of the ID.
func (f FlexibleID) String() string {
	return string(f)
}

// Status is an issue workflow status.
type Status struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// NamedRef is any named Jira entity reference (issue type, priority,
// component, resolution).
type NamedRef struct {
	ID   FlexibleID `json:"id,omitempty"`
	Name string     `json:"name"`
}

// User is a Jira Cloud user record.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
}

// RemoteIssue is the wire shape of an issue as the REST API returns it.
type RemoteIssue struct {
	ID     FlexibleID  `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the decoded field set of a remote issue: the known
// system fields typed, plus every customfield_* entry verbatim in Custom.
type IssueFields struct {
	Summary     string
	Description any // document tree, flattened on read
	Status      Status
	IssueType   NamedRef
	Priority    *NamedRef
	Assignee    *User
	Reporter    *User
	Created     string
	Updated     string
	Labels      []string
	Components  []NamedRef
	Resolution  *NamedRef
	Custom      map[string]any
}

// issueFieldsWire mirrors the JSON layout of the known system fields.
type issueFieldsWire struct {
	Summary     string     `json:"summary"`
	Description any        `json:"description"`
	Status      Status     `json:"status"`
	IssueType   NamedRef   `json:"issuetype"`
	Priority    *NamedRef  `json:"priority"`
	Assignee    *User      `json:"assignee"`
	Reporter    *User      `json:"reporter"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
	Labels      []string   `json:"labels"`
	Components  []NamedRef `json:"components"`
	Resolution  *NamedRef  `json:"resolution"`
}

// UnmarshalJSON decodes the known system fields and collects every
// customfield_* key into Custom without interpreting its value.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	var wire issueFieldsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = IssueFields{
		Summary:     wire.Summary,
		Description: wire.Description,
		Status:      wire.Status,
		IssueType:   wire.IssueType,
		Priority:    wire.Priority,
		Assignee:    wire.Assignee,
		Reporter:    wire.Reporter,
		Created:     wire.Created,
		Updated:     wire.Updated,
		Labels:      wire.Labels,
		Components:  wire.Components,
		Resolution:  wire.Resolution,
	}

	for key, value := range raw {
		if !IsCustomFieldID(key) {
			continue
		}
		if f.Custom == nil {
			f.Custom = map[string]any{}
		}
		f.Custom[key] = value
	}

	return nil
}

// Issue is the caller-facing shape of a fully fetched issue: typed system
// attributes, custom fields under their friendly names, and an overflow
// bag for unmapped custom fields. The overflow key is absent, not empty,
// when nothing overflowed.
type Issue struct {
	Key          string         `json:"key"`
	Summary      string         `json:"summary"`
	Description  *string        `json:"description"`
	Status       Status         `json:"status"`
	IssueType    string         `json:"issue_type"`
	Priority     string         `json:"priority,omitempty"`
	Assignee     string         `json:"assignee,omitempty"`
	Reporter     string         `json:"reporter,omitempty"`
	Created      string         `json:"created"`
	Updated      string         `json:"updated"`
	Labels       []string       `json:"labels"`
	Components   []string       `json:"components"`
	Resolution   string         `json:"resolution,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// BuildIssue shapes a remote issue into the caller-facing form: the
// description document is flattened to text and custom fields are
// translated through the project's mapping.
func BuildIssue(table *FieldTable, remote *RemoteIssue) Issue {
	fields := remote.Fields

	issue := Issue{
		Key:         remote.Key,
		Summary:     fields.Summary,
		Description: DocumentToText(fields.Description),
		Status:      fields.Status,
		IssueType:   fields.IssueType.Name,
		Created:     fields.Created,
		Updated:     fields.Updated,
		Labels:      fields.Labels,
		Components:  make([]string, 0, len(fields.Components)),
	}
	if issue.Labels == nil {
		issue.Labels = []string{}
	}
	for _, c := range fields.Components {
		issue.Components = append(issue.Components, c.Name)
	}
	if fields.Priority != nil {
		issue.Priority = fields.Priority.Name
	}
	if fields.Assignee != nil {
		issue.Assignee = fields.Assignee.DisplayName
	}
	if fields.Reporter != nil {
		issue.Reporter = fields.Reporter.DisplayName
	}
	if fields.Resolution != nil {
		issue.Resolution = fields.Resolution.Name
	}

	known, overflow := table.MapCustomFields(ProjectFromIssueKey(remote.Key), fields.Custom)
	if len(known) > 0 {
		issue.Fields = known
	}
	issue.CustomFields = overflow

	return issue
}

// IssueSummary is the shallow per-issue record a search returns.
type IssueSummary struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

// RemoteSearchResults is the wire shape of a JQL search response. Total
// is a pointer because newer search endpoints omit it.
type RemoteSearchResults struct {
	Issues     []RemoteIssue `json:"issues"`
	Total      *int          `json:"total"`
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
}

// SearchResults is the caller-facing search result. Total is the
// remote-reported count when the remote supplies one and otherwise the
// number of returned issues; callers must not use it to infer that more
// results exist beyond those returned.
type SearchResults struct {
	Total  int            `json:"total"`
	Issues []IssueSummary `json:"issues"`
}

// BuildSearchResults shapes a remote search response into shallow
// summaries.
func BuildSearchResults(remote *RemoteSearchResults) SearchResults {
	issues := make([]IssueSummary, 0, len(remote.Issues))
	for _, ri := range remote.Issues {
		summary := IssueSummary{
			Key:     ri.Key,
			Summary: ri.Fields.Summary,
			Status:  ri.Fields.Status.Name,
			Created: ri.Fields.Created,
			Updated: ri.Fields.Updated,
		}
		if ri.Fields.Assignee != nil {
			summary.Assignee = ri.Fields.Assignee.DisplayName
		}
		issues = append(issues, summary)
	}

	total := len(issues)
	if remote.Total != nil {
		total = *remote.Total
	}

	return SearchResults{Total: total, Issues: issues}
}

// CreatedIssue is the wire shape of a create response.
type CreatedIssue struct {
	ID   FlexibleID `json:"id"`
	Key  string     `json:"key"`
	Self string     `json:"self"`
}

// CreatedComment is the wire shape of an add-comment response.
type CreatedComment struct {
	ID      FlexibleID `json:"id"`
	Created string     `json:"created"`
}

// Attachment is the wire shape of one uploaded attachment record.
type Attachment struct {
	ID       FlexibleID `json:"id"`
	Filename string     `json:"filename"`
	Size     int64      `json:"size"`
}
