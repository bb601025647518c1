package wire

import (
	"encoding/hex"
	"fmt"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// WireType enumerates the wire forms and acts as a factory for them.
type WireType uint8

const (
	// Text is the YAML-flavoured form with bare tokens and !type tags.
	Text WireType = iota
	// Binary is the tagged little-endian form with field names.
	Binary
	// FieldlessBinary is the binary form with field names elided.
	FieldlessBinary
	// CompressedBinary is the binary form with large payloads
	// zstd-compressed.
	CompressedBinary
	// JSON is the strict-quoting dialect of the text form.
	JSON
	// Raw is the schema-dependent positional form with no tags.
	Raw
	// CSV is the tabular text form.
	CSV
	// ReadAny sniffs the form on first use and writes binary.
	ReadAny
)

// WireTypes returns every wire form.
func WireTypes() []WireType {
	return []WireType{Text, Binary, FieldlessBinary, CompressedBinary, JSON, Raw, CSV, ReadAny}
}

// Valid reports whether t names a wire form.
func (t WireType) Valid() bool { return t <= ReadAny }

func (t WireType) String() string {
	switch t {
	case Text:
		return "TEXT"
	case Binary:
		return "BINARY"
	case FieldlessBinary:
		return "FIELDLESS_BINARY"
	case CompressedBinary:
		return "COMPRESSED_BINARY"
	case JSON:
		return "JSON"
	case Raw:
		return "RAW"
	case CSV:
		return "CSV"
	case ReadAny:
		return "READ_ANY"
	}
	return fmt.Sprintf("WireType(%d)", uint8(t))
}

// Apply binds a new wire of this form to a byte store.
func (t WireType) Apply(b *bytestore.Buffer) Wire {
	switch t {
	case Text:
		return NewTextWire(b)
	case Binary:
		return NewBinaryWire(b)
	case FieldlessBinary:
		return NewFieldlessBinaryWire(b)
	case CompressedBinary:
		return NewCompressedBinaryWire(b)
	case JSON:
		return NewJSONWire(b)
	case Raw:
		return NewRawWire(b)
	case CSV:
		return NewCSVWire(b)
	case ReadAny:
		return NewReadAnyWire(b)
	}
	panic(fmt.Sprintf("wire: invalid wire type %d", uint8(t)))
}

// textual reports whether the form renders as readable text. ReadAny
// counts as binary because that is what it writes.
func (t WireType) textual() bool {
	switch t {
	case Text, JSON, CSV:
		return true
	}
	return false
}

// NewInt64Ref returns an unbound 64-bit reference cell in this form's
// rendering.
func (t WireType) NewInt64Ref() Int64Ref {
	if t.textual() {
		return &textInt64Ref{}
	}
	return &binaryInt64Ref{}
}

// NewInt64ArrayRef returns an unbound 64-bit array reference in this
// form's rendering.
func (t WireType) NewInt64ArrayRef() Int64ArrayRef {
	if t.textual() {
		return &textInt64ArrayRef{}
	}
	return &binaryInt64ArrayRef{}
}

// AsString encodes v in this form and returns it as a string. Forms
// whose bytes are not text come back hex-encoded.
func (t WireType) AsString(v any) (string, error) {
	s := AcquireScratch()
	defer ReleaseScratch(s)
	w := t.Apply(s.Primary)
	out := w.ValueOut()
	out.Object(v)
	if err := out.Err(); err != nil {
		return "", err
	}
	if t.textual() {
		return s.Primary.String(), nil
	}
	raw := s.Primary.Bytes()
	n := int64(hex.EncodedLen(len(raw)))
	off := s.Secondary.Reserve(n)
	view, err := s.Secondary.ViewAt(off, n)
	if err != nil {
		return "", err
	}
	hex.Encode(view, raw)
	return string(view), nil
}

// FromString decodes a value produced by AsString in this form.
func (t WireType) FromString(s string) (any, error) {
	data, err := t.stringBytes(s)
	if err != nil {
		return nil, err
	}
	return t.Apply(bytestore.Wrap(data)).ValueIn().Object()
}

// AsMap decodes a string of named events into a map that keeps the
// events' order.
func (t WireType) AsMap(s string) (*OrderedMap[any], error) {
	data, err := t.stringBytes(s)
	if err != nil {
		return nil, err
	}
	w := t.Apply(bytestore.Wrap(data))
	m := NewOrderedMap[any]()
	for w.HasMore() {
		var name string
		v, err := w.ReadEventName(&name).Object()
		if err != nil {
			return nil, err
		}
		m.Set(name, v)
	}
	return m, nil
}

func (t WireType) stringBytes(s string) ([]byte, error) {
	if t.textual() {
		return []byte(s), nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return data, nil
}

// WireTypeOf reports the form of an existing wire. A sniffing wire
// reports its delegate's form once one is chosen.
func WireTypeOf(w Wire) (WireType, error) {
	switch t := w.(type) {
	case *JSONWire:
		return JSON, nil
	case *TextWire:
		return Text, nil
	case *BinaryWire:
		switch {
		case t.compress:
			return CompressedBinary, nil
		case !t.fieldNames:
			return FieldlessBinary, nil
		}
		return Binary, nil
	case *RawWire:
		return Raw, nil
	case *CSVWire:
		return CSV, nil
	case *ReadAnyWire:
		if u := t.Underlying(); u != nil {
			return WireTypeOf(u)
		}
		return ReadAny, nil
	}
	return 0, &UnrecognizedFormatError{Format: w}
}
