// Package transform converts source-system export documents into canonical records.
//
// The source system's export wraps nearly every value in a list, even when the
// value is logically a scalar: a partner name arrives as {"Name": ["Acme"]} and
// a section as {"TradingPartner": [{...}]}. The helpers in this file normalize
// that shape: singleton lists unwrap to their element, absent fields become nil.
package transform

// section returns the named top-level section of a source document.
// Sections arrive either as a singleton list wrapping one object or,
// in newer exports, as a bare object.
func section(doc map[string]any, key string) (map[string]any, bool) {
	raw, ok := doc[key]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		obj, ok := v[0].(map[string]any)
		return obj, ok
	default:
		return nil, false
	}
}

// normalize recursively unwraps singleton lists and normalizes nested
// objects. Multi-element lists keep their list shape with normalized elements.
func normalize(v any) any {
	switch val := v.(type) {
	case []any:
		if len(val) == 1 {
			return normalize(val[0])
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		return normalizeMap(val)
	default:
		return v
	}
}

// normalizeMap normalizes every value of an object.
func normalizeMap(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = normalize(v)
	}
	return out
}

// str extracts a field as a scalar string, unwrapping singleton lists.
// Absent or non-string fields return the empty string.
func str(obj map[string]any, field string) string {
	v, ok := obj[field]
	if !ok {
		return ""
	}
	if s, ok := normalize(v).(string); ok {
		return s
	}
	return ""
}

// strList extracts a field as a list of strings. A singleton-wrapped scalar
// yields a one-element list; absent fields yield nil.
func strList(obj map[string]any, field string) []string {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := normalize(item).(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// objList extracts a field as a list of normalized objects.
func objList(obj map[string]any, field string) []map[string]any {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		if single, ok := v.(map[string]any); ok {
			return []map[string]any{normalizeMap(single)}
		}
		return nil
	}
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, normalizeMap(m))
		}
	}
	return out
}

// scalarOrNil extracts a field as a normalized scalar, or nil when absent.
// Used when the canonical payload must carry an explicit null for a
// missing optional field.
func scalarOrNil(obj map[string]any, field string) any {
	v, ok := obj[field]
	if !ok {
		return nil
	}
	return normalize(v)
}
