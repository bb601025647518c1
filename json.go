package wire

import "github.com/scottkidder/Chronicle-Wire/bytestore"

// JSONWire is the JSON-flavored dialect of the text engine: keys are
// always quoted, null stands for nil, typed values render as
// {"@Name": {...}} and byte blobs as {"@!binary": "<base64>"}. Floats
// always carry a point or an exponent, so integers and floats re-type
// faithfully on the way back.
//
// An event stream written through WriteEventName is a comma-separated
// sequence of `"name": value` pairs with no enclosing braces; a single
// value written through ValueOut is plain JSON.
type JSONWire struct {
	TextWire
}

var _ Wire = (*JSONWire)(nil)

// NewJSONWire binds a JSON wire to a byte store.
func NewJSONWire(b *bytestore.Buffer) *JSONWire {
	w := &JSONWire{}
	w.init(w, b, true)
	return w
}
