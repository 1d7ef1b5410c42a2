package application

import (
	"fmt"

	"github.com/mideliberto/jira-mcp/internal/domain"
)

// getStringParam extracts a string parameter from the arguments map.
// Returns an error if the parameter is required but missing or not a string.
func getStringParam(args map[string]interface{}, name string, required bool) (string, error) {
	value, exists := args[name]
	if !exists || value == nil {
		if required {
			return "", &domain.Error{
				Code:    domain.InvalidParams,
				Message: fmt.Sprintf("missing required parameter: %s", name),
			}
		}
		return "", nil
	}

	strValue, ok := value.(string)
	if !ok {
		return "", &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("parameter %s must be a string", name),
		}
	}

	return strValue, nil
}

// getOptionalStringParam extracts a string parameter and reports whether
// it was provided. An explicit null counts as absent, but a present
// value of the wrong type is still an error.
func getOptionalStringParam(args map[string]interface{}, name string) (string, bool, error) {
	value, exists := args[name]
	if !exists || value == nil {
		return "", false, nil
	}

	strValue, ok := value.(string)
	if !ok {
		return "", false, &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("parameter %s must be a string", name),
		}
	}

	return strValue, true, nil
}

// getIntParam extracts an integer parameter, accepting the float64 form
// JSON decoding produces.
func getIntParam(args map[string]interface{}, name string, required bool) (int, error) {
	value, exists := args[name]
	if !exists || value == nil {
		if required {
			return 0, &domain.Error{
				Code:    domain.InvalidParams,
				Message: fmt.Sprintf("missing required parameter: %s", name),
			}
		}
		return 0, nil
	}

	switch v := value.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("parameter %s must be an integer", name),
		}
	}
}

// getBoolParam extracts a boolean parameter. An absent parameter yields
// false, so confirmation flags must be set explicitly.
func getBoolParam(args map[string]interface{}, name string) (bool, error) {
	value, exists := args[name]
	if !exists || value == nil {
		return false, nil
	}

	boolValue, ok := value.(bool)
	if !ok {
		return false, &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("parameter %s must be a boolean", name),
		}
	}

	return boolValue, nil
}

// getStringSliceParam extracts a list-of-strings parameter. Returns nil
// when the parameter is absent, so callers can tell "not provided" from
// an explicit empty list.
func getStringSliceParam(args map[string]interface{}, name string) ([]string, error) {
	value, exists := args[name]
	if !exists || value == nil {
		return nil, nil
	}

	rawSlice, ok := value.([]interface{})
	if !ok {
		return nil, &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("parameter %s must be a list of strings", name),
		}
	}

	result := make([]string, 0, len(rawSlice))
	for _, item := range rawSlice {
		str, ok := item.(string)
		if !ok {
			return nil, &domain.Error{
				Code:    domain.InvalidParams,
				Message: fmt.Sprintf("parameter %s must contain only strings", name),
			}
		}
		result = append(result, str)
	}

	return result, nil
}

// getObjectParam extracts an object parameter as a map. Returns nil when
// the parameter is absent.
func getObjectParam(args map[string]interface{}, name string) (map[string]interface{}, error) {
	value, exists := args[name]
	if !exists || value == nil {
		return nil, nil
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, &domain.Error{
			Code:    domain.InvalidParams,
			Message: fmt.Sprintf("parameter %s must be an object", name),
		}
	}

	return obj, nil
}
