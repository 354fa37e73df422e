package devbridge

import (
	"encoding/json"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizeAny round-trips v through JSON to get the generic
// map/slice/scalar representation, then recursively strips HTML from
// every string it contains, the same recursive-sanitize shape the
// teacher's input validator applies to inbound request bodies,
// applied here to outbound event/state payloads instead.
func sanitizeAny(policy *bluemonday.Policy, v any) any {
	body, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return v
	}
	return sanitizeValue(policy, generic)
}

func sanitizeValue(policy *bluemonday.Policy, v any) any {
	switch val := v.(type) {
	case string:
		return policy.Sanitize(val)
	case map[string]any:
		return sanitizeMap(policy, val)
	case []any:
		return sanitizeSlice(policy, val)
	default:
		return val
	}
}

func sanitizeMap(policy *bluemonday.Policy, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = sanitizeValue(policy, v)
	}
	return out
}

func sanitizeSlice(policy *bluemonday.Policy, data []any) []any {
	out := make([]any, len(data))
	for i, v := range data {
		out[i] = sanitizeValue(policy, v)
	}
	return out
}

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
