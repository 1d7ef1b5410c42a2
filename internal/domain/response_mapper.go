package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultResponseMapper is the default ResponseMapper implementation.
type DefaultResponseMapper struct{}

// NewResponseMapper creates a DefaultResponseMapper.
func NewResponseMapper() ResponseMapper {
	return &DefaultResponseMapper{}
}

// MapToToolResponse renders the result as an indented JSON content block.
func (m *DefaultResponseMapper) MapToToolResponse(result interface{}) (*ToolResponse, error) {
	if result == nil {
		return &ToolResponse{
			Content: []ContentBlock{{Type: "text", Text: "{}"}},
		}, nil
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &ToolResponse{
		Content: []ContentBlock{{Type: "text", Text: string(jsonBytes)}},
	}, nil
}

// MapError converts operation failures into JSON-RPC errors. OpError
// kinds map deterministically to error codes and the structured payload
// travels in the data field. Anything else becomes an internal error.
func (m *DefaultResponseMapper) MapError(err error) *Error {
	if err == nil {
		return nil
	}

	if opErr, ok := err.(*OpError); ok {
		code := codeForKind(opErr.Kind)
		// A transport failure that carries a status code reached the
		// remote; only connection-level failures are network errors.
		if opErr.Kind == KindTransport && opErr.StatusCode != 0 {
			code = APIError
		}
		return &Error{
			Code:    code,
			Message: opErr.Message,
			Data:    opErr.Payload(),
		}
	}

	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}

	return &Error{
		Code:    InternalError,
		Message: err.Error(),
	}
}

// codeForKind maps each operation error kind to its JSON-RPC error code.
func codeForKind(kind ErrorKind) int {
	switch kind {
	case KindNotFound, KindTransitionNotAvailable, KindAmbiguousTransition, KindNoTransitionsAvailable:
		return APIError
	case KindInvalidQuery, KindValidationFailed, KindConfirmationRequired, KindFileNotFound:
		return InvalidParams
	case KindCredentialsMissing:
		return AuthenticationError
	case KindTransport:
		return NetworkError
	default:
		return InternalError
	}
}
