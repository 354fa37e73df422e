package state

import "strings"

// getPath resolves a dot-separated path against a nested map tree.
func getPath(data map[string]any, path string) (any, bool) {
	if path == "" {
		return data, true
	}
	segments := strings.Split(path, ".")
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// partialFromPath builds a nested partial map from a dot path and a
// leaf value, e.g. ("user.level", 3) -> {"user": {"level": 3}}. An
// empty path treats value itself as the top-level partial (the
// "object form" of setState).
func partialFromPath(path string, value any) map[string]any {
	if path == "" {
		if m, ok := value.(map[string]any); ok {
			return m
		}
		return map[string]any{}
	}
	segments := strings.Split(path, ".")
	leaf := map[string]any{segments[len(segments)-1]: value}
	for i := len(segments) - 2; i >= 0; i-- {
		leaf = map[string]any{segments[i]: leaf}
	}
	return leaf
}

// mergeInto recursively deep-merges src into dst: nested maps merge
// key-by-key, every other value (including slices) replaces wholesale.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				mergeInto(dstMap, srcMap)
				continue
			}
			dst[k] = deepCopy(srcMap)
			continue
		}
		dst[k] = v
	}
}

// deepCopy clones a nested map/slice tree so callers can never mutate
// AppState's internal storage through a returned snapshot.
func deepCopy(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = deepCopyValue(val)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}
