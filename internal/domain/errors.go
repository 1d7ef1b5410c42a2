package domain

import (
	"fmt"
	"strings"
)

// ErrorKind classifies every failure an operation can surface.
// The set is closed: callers branch on Kind instead of parsing messages.
type ErrorKind string

const (
	// KindNotFound - the remote reported 404 for the referenced issue.
	KindNotFound ErrorKind = "not_found"
	// KindInvalidQuery - the remote rejected a JQL search with 400.
	KindInvalidQuery ErrorKind = "invalid_query"
	// KindValidationFailed - the remote rejected a write with field-level errors.
	KindValidationFailed ErrorKind = "validation_failed"
	// KindTransitionNotAvailable - no offered transition matched the target name.
	KindTransitionNotAvailable ErrorKind = "transition_not_available"
	// KindAmbiguousTransition - multiple offered transitions collapse to the target name.
	KindAmbiguousTransition ErrorKind = "ambiguous_transition"
	// KindNoTransitionsAvailable - the remote offered no transitions at all.
	KindNoTransitionsAvailable ErrorKind = "no_transitions_available"
	// KindConfirmationRequired - delete was invoked without the explicit confirmation flag.
	KindConfirmationRequired ErrorKind = "confirmation_required"
	// KindFileNotFound - the attachment path does not exist locally.
	KindFileNotFound ErrorKind = "file_not_found"
	// KindCredentialsMissing - no credentials available from the provider.
	KindCredentialsMissing ErrorKind = "credentials_missing"
	// KindTransport - any other non-2xx response or network failure.
	KindTransport ErrorKind = "transport_error"
)

// OpError is the error type for every operation failure. Locally detected
// precondition violations carry no StatusCode; remote failures carry the
// status code, the raw body, and the decoded Jira error payload.
type OpError struct {
	Kind     ErrorKind
	Message  string
	IssueKey string

	// Remote failure details.
	StatusCode    int
	Body          string
	ErrorMessages []string       // Jira "errorMessages"
	FieldErrors   map[string]any // Jira "errors" (field -> message)

	// Transition resolution details: the full candidate list, so the
	// caller can retry without another round trip.
	Transitions []string
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.IssueKey != "" {
		fmt.Fprintf(&b, " [%s]", e.IssueKey)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Transitions) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Transitions, ", "))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

// Payload returns the structured error details for the JSON-RPC data field.
func (e *OpError) Payload() map[string]any {
	data := map[string]any{"kind": string(e.Kind)}
	if e.IssueKey != "" {
		data["issue_key"] = e.IssueKey
	}
	if e.StatusCode != 0 {
		data["status_code"] = e.StatusCode
	}
	if len(e.ErrorMessages) > 0 {
		data["error_messages"] = e.ErrorMessages
	}
	if len(e.FieldErrors) > 0 {
		data["errors"] = e.FieldErrors
	}
	if len(e.Transitions) > 0 {
		data["transitions"] = e.Transitions
	}
	if e.Body != "" && len(e.ErrorMessages) == 0 && len(e.FieldErrors) == 0 {
		data["body"] = e.Body
	}
	return data
}
