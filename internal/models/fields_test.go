package models

import (
	"encoding/json"
	"testing"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		expect int64
	}{
		{"float64", float64(42), 42},
		{"int", 7, 7},
		{"json.Number", json.Number("99"), 99},
		{"nil", nil, 0},
		{"string", "not a number", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := toInt64(tc.input)
			if got != tc.expect {
				t.Errorf("toInt64(%v) = %d, want %d", tc.input, got, tc.expect)
			}
		})
	}
}

func TestOptionalFields(t *testing.T) {
	obj := map[string]any{
		"name":     "hello",
		"count":    float64(42),
		"building": true,
		"empty":    nil,
	}
	if got := optString(obj, "name"); got == nil || *got != "hello" {
		t.Errorf("optString(name) = %v, want hello", got)
	}
	if got := optString(obj, "count"); got != nil {
		t.Errorf("optString(count) = %q, want nil", *got)
	}
	if got := optInt64(obj, "count"); got == nil || *got != 42 {
		t.Errorf("optInt64(count) = %v, want 42", got)
	}
	if got := optInt64(obj, "empty"); got != nil {
		t.Errorf("optInt64(empty) = %d, want nil", *got)
	}
	if got := optBool(obj, "building"); got == nil || !*got {
		t.Errorf("optBool(building) = %v, want true", got)
	}
	if got := stringField(obj, "missing"); got != "" {
		t.Errorf("stringField(missing) = %q, want empty", got)
	}
}
