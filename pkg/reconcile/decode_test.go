package reconcile

import (
	"encoding/json"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    uint64
		ok      bool
	}{
		{"json number", map[string]any{"id": float64(42)}, 42, true},
		{"string digits", map[string]any{"id": "42"}, 42, true},
		{"json.Number", map[string]any{"id": json.Number("42")}, 42, true},
		{"int", map[string]any{"id": 42}, 42, true},
		{"zero", map[string]any{"id": float64(0)}, 0, true},
		{"nested value wrapper", map[string]any{"id": map[string]any{"value": "42"}}, 42, true},
		{"nested id wrapper", map[string]any{"id": map[string]any{"id": float64(7)}}, 7, true},
		{"nil payload", nil, 0, false},
		{"missing key", map[string]any{"name": "x"}, 0, false},
		{"negative", map[string]any{"id": float64(-1)}, 0, false},
		{"fractional", map[string]any{"id": 4.2}, 0, false},
		{"non-numeric string", map[string]any{"id": "abc"}, 0, false},
		{"bool", map[string]any{"id": true}, 0, false},
		{"null", map[string]any{"id": nil}, 0, false},
		{"too deep", map[string]any{"id": map[string]any{"id": map[string]any{"id": map[string]any{"id": float64(1)}}}}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeID(tc.payload)
			if got != tc.want || ok != tc.ok {
				t.Errorf("NormalizeID(%v) = (%d, %v), want (%d, %v)", tc.payload, got, ok, tc.want, tc.ok)
			}
		})
	}
}
