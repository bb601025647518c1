package wire

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// Marshaler is the write half of self-marshalling: the value renders its
// fields through the wire's field cursor.
type Marshaler interface {
	MarshalWire(w Wire) error
}

// Unmarshaler is the read half: the value fills its fields from the wire.
type Unmarshaler interface {
	UnmarshalWire(w Wire) error
}

// Marshallable aggregates both halves. A type implementing Marshallable and
// registered by name survives a full round trip as its original Go type.
type Marshallable interface {
	Marshaler
	Unmarshaler
}

// Wire is one format-specific cursor pair bound to a byte store. Values are
// written through ValueOut and read back through ValueIn; fields and events
// carry a name alongside the value where the format keeps names.
//
// Write/Read move fields inside a marshalled value; field names are elided
// by the fieldless binary variant. WriteEventName/ReadEventName move
// top-level events; event names are data and every variant keeps them.
type Wire interface {
	// Bytes returns the underlying byte store.
	Bytes() *bytestore.Buffer

	// ValueOut returns the positional write cursor.
	ValueOut() ValueOut

	// ValueIn returns the positional read cursor.
	ValueIn() ValueIn

	// Write starts a named field and returns the cursor for its value.
	Write(name string) ValueOut

	// Read consumes a field name, if the format carries one, into dest and
	// returns the cursor for its value. Formats without field names leave
	// dest empty; callers reading positionally pass nil.
	Read(dest *string) ValueIn

	// WriteEventName starts a named top-level event.
	WriteEventName(name string) ValueOut

	// ReadEventName consumes the next event's name into dest and returns
	// the cursor for its value.
	ReadEventName(dest *string) ValueIn

	// HasMore reports whether another value or event follows at the current
	// nesting level.
	HasMore() bool
}

// ValueOut writes one value per call at the wire's write cursor. Methods
// latch the first error and become no-ops after it, in the manner of a
// buffered binary writer; Err surfaces the latched error.
type ValueOut interface {
	Nil()
	Bool(v bool)
	Int64(v int64)
	Float64(v float64)
	Text(s string)
	Bytes(p []byte)
	Map(m map[string]any)
	Sequence(seq []any)

	// TypedMarshallable writes v with its registered type name so a reader
	// can reconstruct the original type. Unregistered types latch
	// ErrUnknownType.
	TypedMarshallable(v Marshaler)

	// Marshallable writes v's fields only; the concrete type is discarded.
	Marshallable(v Marshaler)

	// Object dispatches on v's runtime capability: registered Marshallable
	// values go typed, mappings go as generic maps, ordered collections as
	// sequences, unregistered Marshalers field-only, and anything else as
	// its plain textual rendering.
	Object(v any)

	// Compact toggles compact rendering for text-family formats. Binary
	// formats ignore it.
	Compact(on bool)

	Err() error
}

// ValueIn reads one value per call at the wire's read cursor into a pointer
// destination, latching the first error in the manner of a buffered binary
// reader.
type ValueIn interface {
	Bool(dest *bool)
	Int64(dest *int64)
	Float64(dest *float64)
	Text(dest *string)
	Bytes(dest *[]byte)
	Map(dest *map[string]any)
	Sequence(dest *[]any)

	// TypedMarshallable reads a typed value, reconstructing it through the
	// registry as its original Go type.
	TypedMarshallable() (any, error)

	// Marshallable fills dest's fields from an anonymous marshalled value.
	Marshallable(dest Unmarshaler)

	// Object reads whatever value sits at the cursor into its natural Go
	// shape: nil, bool, int64, float64, string, []byte, map[string]any,
	// []any, or a registered type.
	Object() (any, error)

	Err() error
}

// Typed-marshalling registry. Names map to factories so decoders can
// construct a fresh value; the reverse map keys on the concrete type the
// factory produces so encoders can recover the name.
var (
	typeFactories = xsync.NewMap[string, func() Marshallable]()
	typeNames     = xsync.NewMap[reflect.Type, string]()
)

// RegisterType binds a wire name to a factory for one Marshallable type.
// Typed encoding writes the name; typed decoding calls the factory and
// fills the result. Registering the same name again replaces the factory.
func RegisterType(name string, factory func() Marshallable) {
	if name == "" || factory == nil {
		panic("wire: RegisterType called with an empty name or nil factory")
	}
	typeFactories.Store(name, factory)
	typeNames.Store(reflect.TypeOf(factory()), name)
}

// TypeNameOf returns the registered wire name for v's concrete type.
func TypeNameOf(v any) (string, bool) {
	return typeNames.Load(reflect.TypeOf(v))
}

// NewRegistered constructs a fresh value for a registered wire name.
func NewRegistered(name string) (Marshallable, bool) {
	factory, ok := typeFactories.Load(name)
	if !ok {
		return nil, false
	}
	return factory(), true
}
