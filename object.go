package wire

import (
	"fmt"
	"math"
	"strconv"
)

// writeObject encodes an arbitrary value through out, dispatching on its
// runtime capability. Typed marshalling wins whenever the value's type is
// registered, because it is the only path that survives a round trip back
// to the original Go type. Mappings and sequences come next, then
// unregistered marshallers (fields only, concrete type discarded), then
// the plain textual rendering.
func writeObject(out ValueOut, v any) {
	if v == nil {
		out.Nil()
		return
	}
	if m, ok := v.(Marshaler); ok {
		if _, registered := TypeNameOf(v); registered {
			out.TypedMarshallable(m)
			return
		}
	}
	switch t := v.(type) {
	case map[string]any:
		out.Map(t)
	case *OrderedMap[any]:
		m := make(map[string]any, t.Len())
		t.Range(func(k string, v any) bool {
			m[k] = v
			return true
		})
		out.Map(m)
	case []any:
		out.Sequence(t)
	case bool:
		out.Bool(t)
	case int:
		out.Int64(int64(t))
	case int8:
		out.Int64(int64(t))
	case int16:
		out.Int64(int64(t))
	case int32:
		out.Int64(int64(t))
	case int64:
		out.Int64(t)
	case uint8:
		out.Int64(int64(t))
	case uint16:
		out.Int64(int64(t))
	case uint32:
		out.Int64(int64(t))
	case uint:
		if uint64(t) <= math.MaxInt64 {
			out.Int64(int64(t))
		} else {
			out.Text(strconv.FormatUint(uint64(t), 10))
		}
	case uint64:
		if t <= math.MaxInt64 {
			out.Int64(int64(t))
		} else {
			out.Text(strconv.FormatUint(t, 10))
		}
	case float32:
		out.Float64(float64(t))
	case float64:
		out.Float64(t)
	case string:
		out.Text(t)
	case []byte:
		out.Bytes(t)
	default:
		if m, ok := v.(Marshaler); ok {
			out.Marshallable(m)
			return
		}
		if s, ok := v.(fmt.Stringer); ok {
			out.Text(s.String())
			return
		}
		out.Text(fmt.Sprint(v))
	}
}
