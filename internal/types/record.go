package types

import (
	"encoding/json"
	"strconv"
)

// String returns a string field, or "" when absent or of another type.
func (r ServiceRecord) String(field string) string {
	value, ok := r[field].(string)
	if !ok {
		return ""
	}
	return value
}

// Int returns an integer field. JSON decoding yields float64 and YAML
// decoding yields int, both are accepted. Entity links of the form
// {"type": ..., "id": N} resolve to their id.
func (r ServiceRecord) Int(field string) (int, bool) {
	return AsInt(r[field])
}

// Bool returns a boolean field, false when absent.
func (r ServiceRecord) Bool(field string) bool {
	value, ok := r[field].(bool)
	return ok && value
}

// AsInt converts a decoded numeric value or entity link to an int.
func AsInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	case string:
		parsed, err := strconv.Atoi(typed)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case map[string]any:
		return AsInt(typed["id"])
	case ServiceRecord:
		return AsInt(typed["id"])
	default:
		return 0, false
	}
}
