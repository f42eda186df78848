// Package extract reads values out of nested event records by dotted path.
package extract

import (
	"fmt"
	"strings"
)

// Extract walks a dot-delimited path through record, descending only through
// map[string]any nodes. Any missing segment or non-map intermediate value
// yields def. An empty path always yields def. Extract never fails.
func Extract(record map[string]any, path string, def any) any {
	if path == "" {
		return def
	}

	var current any = record
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return def
		}
		v, present := m[segment]
		if !present {
			return def
		}
		current = v
	}

	return current
}

// Text coerces an extracted value to its textual representation, used by the
// contains()/regex() predicate forms. A missing path and an explicit null
// field are both reported via ok=false so callers can short-circuit to false
// rather than matching against the string "<nil>".
func Text(record map[string]any, path string) (string, bool) {
	sentinel := new(struct{})
	v := Extract(record, path, sentinel)
	if v == sentinel || v == nil {
		return "", false
	}
	return ToText(v), true
}

// ToText renders an arbitrary extracted value as a string for substring and
// regex matching.
func ToText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
