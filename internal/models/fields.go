package models

import "encoding/json"

// stringField safely extracts a string field, returning "" if absent.
func stringField(obj map[string]any, field string) string {
	if v, ok := obj[field].(string); ok {
		return v
	}
	return ""
}

// optString returns a pointer to a string field, or nil if it isn't a string.
func optString(obj map[string]any, field string) *string {
	if v, ok := obj[field].(string); ok {
		return &v
	}
	return nil
}

// optInt64 returns a pointer to a numeric field, or nil if it isn't a number.
func optInt64(obj map[string]any, field string) *int64 {
	if !isNumber(obj[field]) {
		return nil
	}
	n := toInt64(obj[field])
	return &n
}

// optBool returns a pointer to a bool field, or nil if it isn't a bool.
func optBool(obj map[string]any, field string) *bool {
	if v, ok := obj[field].(bool); ok {
		return &v
	}
	return nil
}

// objectField returns a nested JSON object, or nil.
func objectField(obj map[string]any, field string) map[string]any {
	if v, ok := obj[field].(map[string]any); ok {
		return v
	}
	return nil
}

// arrayField returns a nested JSON array, or nil.
func arrayField(obj map[string]any, field string) []any {
	if v, ok := obj[field].([]any); ok {
		return v
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, int, int64, json.Number:
		return true
	}
	return false
}

// toInt64 converts the numeric types produced by encoding/json to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}
