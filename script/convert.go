package script

import (
	"strings"

	"github.com/d5/tengo/v2"
)

// ToObject marshals a weakly-typed native value into a tengo value.
// tengo.Object values (including proxies) pass through untouched.
func ToObject(v any) (tengo.Object, error) {
	return tengo.FromInterface(v)
}

// FromObject unmarshals a tengo value into nil/bool/number/string/slice/map.
// Unknown object types (proxies included) are returned as-is.
func FromObject(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return v.Value
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, FromObject(item))
		}
		return out
	case *tengo.ImmutableArray:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, FromObject(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = FromObject(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = FromObject(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return obj
	}
}

// ObjectAsString renders a tengo value as a bare string.
func ObjectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}
