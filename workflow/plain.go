package workflow

import (
	"fmt"
	"time"
)

// PlainMap returns a copy of m in which every nested value has been converted
// by Plain(). It returns nil if m is nil.
func PlainMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Plain(v)
	}

	return out
}

// Plain returns v with every mapping converted to a map[string]interface{} and
// every sequence converted to a []interface{}.
//
// YAML decodes mappings with non-string keys as map[interface{}]interface{}.
// Such keys are formatted with fmt.Sprint(). Timestamps become RFC 3339
// strings. Other values are returned unchanged.
func Plain(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return PlainMap(v)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, x := range v {
			out[fmt.Sprint(k)] = Plain(x)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = Plain(x)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return v
	}
}
