package parser

import (
	"strconv"
)

// Flatten converts a decoded JSON object into a flat string map. Nested
// objects become dotted keys and array elements are indexed ("a.0.b").
// Null values are skipped.
func Flatten(v map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", v)
	return out
}

func flattenInto(out map[string]string, prefix string, v any) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			flattenInto(out, join(k), child)
		}
	case []any:
		for i, child := range val {
			flattenInto(out, join(strconv.Itoa(i)), child)
		}
	case string:
		out[prefix] = val
	case float64:
		out[prefix] = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		out[prefix] = strconv.FormatBool(val)
	case nil:
	default:
		// json.Number and other scalar types
		if s, ok := val.(interface{ String() string }); ok {
			out[prefix] = s.String()
		}
	}
}
