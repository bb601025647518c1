package wire

import (
	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// ReadAnyWire defers the choice of form until the first cursor use, then
// sniffs the byte store and delegates to a concrete wire. A high first
// byte selects binary (every binary tag has the high bit set), a brace,
// bracket or quote selects the JSON dialect, and anything else selects
// text. Writing through an empty store selects binary. The tabular and
// raw forms carry no self-describing lead byte and are never sniffed.
type ReadAnyWire struct {
	buf      *bytestore.Buffer
	delegate Wire
}

var _ Wire = (*ReadAnyWire)(nil)

// NewReadAnyWire binds a sniffing wire to a byte store.
func NewReadAnyWire(b *bytestore.Buffer) *ReadAnyWire {
	if b == nil {
		panic("wire: sniffing wire needs a byte store")
	}
	return &ReadAnyWire{buf: b}
}

// Bytes returns the underlying byte store.
func (w *ReadAnyWire) Bytes() *bytestore.Buffer { return w.buf }

// Underlying returns the delegate chosen on first use, or nil before
// any cursor has been touched.
func (w *ReadAnyWire) Underlying() Wire { return w.delegate }

func (w *ReadAnyWire) resolve() Wire {
	if w.delegate == nil {
		w.delegate = sniffWire(w.buf)
	}
	return w.delegate
}

func sniffWire(b *bytestore.Buffer) Wire {
	for _, c := range b.Bytes() {
		if isSpace(c) || c == ',' {
			continue
		}
		switch {
		case c >= 0x80:
			return NewBinaryWire(b)
		case c == '{' || c == '[' || c == '"':
			return NewJSONWire(b)
		default:
			return NewTextWire(b)
		}
	}
	return NewBinaryWire(b)
}

func (w *ReadAnyWire) ValueOut() ValueOut { return w.resolve().ValueOut() }

func (w *ReadAnyWire) ValueIn() ValueIn { return w.resolve().ValueIn() }

func (w *ReadAnyWire) Write(name string) ValueOut { return w.resolve().Write(name) }

func (w *ReadAnyWire) Read(dest *string) ValueIn { return w.resolve().Read(dest) }

func (w *ReadAnyWire) WriteEventName(name string) ValueOut { return w.resolve().WriteEventName(name) }

func (w *ReadAnyWire) ReadEventName(dest *string) ValueIn { return w.resolve().ReadEventName(dest) }

func (w *ReadAnyWire) HasMore() bool { return w.resolve().HasMore() }
