package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
)

// NormalizeID extracts the canonical entity id from a raw change
// payload. Transports box the value differently depending on source
// (JSON number, string, or a nested wrapper object), and malformed
// payloads must route to the fallback reload path rather than crash, so
// this never panics and reports failure via ok.
func NormalizeID(payload map[string]any) (uint64, bool) {
	if payload == nil {
		return 0, false
	}
	v, exists := payload["id"]
	if !exists {
		return 0, false
	}
	return normalizeValue(v, 0)
}

func normalizeValue(v any, depth int) (uint64, bool) {
	if depth > 2 {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, false
		}
		return uint64(t), true
	case int:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case uint:
		return uint64(t), true
	case uint64:
		return t, true
	case json.Number:
		id, err := strconv.ParseUint(t.String(), 10, 64)
		return id, err == nil
	case string:
		id, err := strconv.ParseUint(t, 10, 64)
		return id, err == nil
	case map[string]any:
		// Nested wrapper, e.g. {"id": {"value": "42"}}.
		for _, key := range []string{"id", "value"} {
			if inner, exists := t[key]; exists {
				return normalizeValue(inner, depth+1)
			}
		}
	}
	return 0, false
}
