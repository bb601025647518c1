package wire

import (
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// Binary token tags. Every tag has the high bit set, which is what the
// auto-detecting wire sniffs for. Lengths are unsigned varints and
// multi-byte values little-endian.
const (
	binNil      byte = 0xA0
	binFalse    byte = 0xA1
	binTrue     byte = 0xA2
	binInt64    byte = 0xA3 // 8 bytes
	binFloat64  byte = 0xA4 // 8 bytes
	binText     byte = 0xA5 // uvarint length + UTF-8 bytes
	binBytes    byte = 0xA6 // uvarint length + bytes
	binMap      byte = 0xA7 // uvarint count, then text-token key and value token per entry
	binSequence byte = 0xA8 // uvarint count + value tokens
	binTyped    byte = 0xA9 // uvarint name length + name, uint32 body length, body tokens
	binField    byte = 0xAA // uvarint name length + name, preceding the value it names
	binZText    byte = 0xAB // uvarint compressed length + zstd frame, string payload
	binZBytes   byte = 0xAC // uvarint compressed length + zstd frame
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// BinaryWire reads and writes the self-describing tagged binary form. One
// codec serves three variants: the plain form carries field names, the
// fieldless form elides them (positional fields, compacter stream), and
// the compressed form zstd-compresses string and byte payloads at or above
// the WIRE_COMPRESSED_SIZE threshold. Compressed tokens are understood by
// every binary reader regardless of variant; compression is a write-side
// choice only.
type BinaryWire struct {
	buf        *bytestore.Buffer
	fieldNames bool
	compress   bool

	out binaryOut
	in  binaryIn
}

var _ Wire = (*BinaryWire)(nil)

func newBinaryWire(b *bytestore.Buffer, fieldNames, compress bool) *BinaryWire {
	if b == nil {
		panic("wire: binary wire needs a byte store")
	}
	w := &BinaryWire{buf: b, fieldNames: fieldNames, compress: compress}
	w.out.w = w
	w.in.w = w
	return w
}

// NewBinaryWire binds a field-carrying binary wire to a byte store.
func NewBinaryWire(b *bytestore.Buffer) *BinaryWire { return newBinaryWire(b, true, false) }

// NewFieldlessBinaryWire binds the positional variant: field names are
// dropped on write and Read fills no name. Event names are data and still
// travel, as plain text tokens.
func NewFieldlessBinaryWire(b *bytestore.Buffer) *BinaryWire { return newBinaryWire(b, false, false) }

// NewCompressedBinaryWire binds the compressing variant.
func NewCompressedBinaryWire(b *bytestore.Buffer) *BinaryWire { return newBinaryWire(b, true, true) }

// Bytes returns the underlying byte store.
func (w *BinaryWire) Bytes() *bytestore.Buffer { return w.buf }

// ValueOut returns the write cursor.
func (w *BinaryWire) ValueOut() ValueOut { return &w.out }

// ValueIn returns the read cursor.
func (w *BinaryWire) ValueIn() ValueIn { return &w.in }

// Write starts a named field. The fieldless variant writes nothing.
func (w *BinaryWire) Write(name string) ValueOut {
	if w.out.err == nil && w.fieldNames {
		w.buf.WriteUint8(binField)
		w.buf.WriteUvarint(uint64(len(name)))
		w.buf.WriteString(name)
	}
	return &w.out
}

// WriteEventName starts a named top-level event. Every variant keeps the
// name on the wire.
func (w *BinaryWire) WriteEventName(name string) ValueOut {
	if w.out.err != nil {
		return &w.out
	}
	if w.fieldNames {
		return w.Write(name)
	}
	w.out.writeText(name)
	return &w.out
}

// Read consumes a field-name token into dest on the named variants; the
// fieldless variant leaves dest alone.
func (w *BinaryWire) Read(dest *string) ValueIn {
	if w.in.err != nil || !w.fieldNames {
		return &w.in
	}
	tag, err := w.buf.ReadByte()
	if err != nil {
		w.in.setErr(err)
		return &w.in
	}
	if tag != binField {
		w.in.setErr(fmt.Errorf("%w: have tag %#x, want field", ErrSyntax, tag))
		return &w.in
	}
	name, err := w.readLenBytes()
	if err != nil {
		w.in.setErr(err)
		return &w.in
	}
	if dest != nil {
		*dest = string(name)
	}
	return &w.in
}

// ReadEventName consumes the next event's name.
func (w *BinaryWire) ReadEventName(dest *string) ValueIn {
	if w.in.err != nil {
		return &w.in
	}
	if w.fieldNames {
		return w.Read(dest)
	}
	if dest != nil {
		w.in.Text(dest)
	} else {
		var discard string
		w.in.Text(&discard)
	}
	return &w.in
}

// HasMore reports whether unread bytes remain.
func (w *BinaryWire) HasMore() bool { return w.buf.Remaining() > 0 }

func (w *BinaryWire) readLenBytes() ([]byte, error) {
	n, err := w.buf.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return w.buf.ReadBytes(int64(n))
}

// subWire returns a wire with the same configuration over a length-bounded
// view, used to decode nested marshalled bodies.
func (w *BinaryWire) subWire(body []byte) *BinaryWire {
	return newBinaryWire(bytestore.Wrap(body), w.fieldNames, w.compress)
}

// --- Write side ---

type binaryOut struct {
	w   *BinaryWire
	err error
}

var _ ValueOut = (*binaryOut)(nil)

func (o *binaryOut) Err() error { return o.err }

func (o *binaryOut) setErr(err error) {
	if o.err == nil && err != nil {
		o.err = err
	}
}

// Compact is a text-family concern; binary ignores it.
func (o *binaryOut) Compact(bool) {}

func (o *binaryOut) Nil() {
	if o.err != nil {
		return
	}
	o.w.buf.WriteUint8(binNil)
}

func (o *binaryOut) Bool(v bool) {
	if o.err != nil {
		return
	}
	if v {
		o.w.buf.WriteUint8(binTrue)
	} else {
		o.w.buf.WriteUint8(binFalse)
	}
}

func (o *binaryOut) Int64(v int64) {
	if o.err != nil {
		return
	}
	o.w.buf.WriteUint8(binInt64)
	o.w.buf.WriteInt64(v)
}

func (o *binaryOut) Float64(v float64) {
	if o.err != nil {
		return
	}
	o.w.buf.WriteUint8(binFloat64)
	o.w.buf.WriteFloat64(v)
}

func (o *binaryOut) Text(s string) {
	if o.err != nil {
		return
	}
	o.writeText(s)
}

func (o *binaryOut) writeText(s string) {
	o.writePayload([]byte(s), binText, binZText)
}

func (o *binaryOut) Bytes(p []byte) {
	if o.err != nil {
		return
	}
	o.writePayload(p, binBytes, binZBytes)
}

func (o *binaryOut) writePayload(p []byte, plainTag, zTag byte) {
	buf := o.w.buf
	if o.w.compress && len(p) >= compressedSize {
		z := zstdEncoder.EncodeAll(p, nil)
		buf.WriteUint8(zTag)
		buf.WriteUvarint(uint64(len(z)))
		buf.WriteBytes(z)
		return
	}
	buf.WriteUint8(plainTag)
	buf.WriteUvarint(uint64(len(p)))
	buf.WriteBytes(p)
}

// Map writes m with sorted keys, so the stream is deterministic.
func (o *binaryOut) Map(m map[string]any) {
	if o.err != nil {
		return
	}
	o.w.buf.WriteUint8(binMap)
	o.w.buf.WriteUvarint(uint64(len(m)))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.writeText(k)
		o.Object(m[k])
	}
}

func (o *binaryOut) Sequence(seq []any) {
	if o.err != nil {
		return
	}
	o.w.buf.WriteUint8(binSequence)
	o.w.buf.WriteUvarint(uint64(len(seq)))
	for _, v := range seq {
		o.Object(v)
	}
}

func (o *binaryOut) TypedMarshallable(v Marshaler) {
	if o.err != nil {
		return
	}
	name, ok := TypeNameOf(v)
	if !ok {
		o.setErr(fmt.Errorf("%w: %T", ErrUnknownType, v))
		return
	}
	o.writeMarshalled(name, v)
}

func (o *binaryOut) Marshallable(v Marshaler) {
	if o.err != nil {
		return
	}
	o.writeMarshalled("", v)
}

// writeMarshalled frames a marshalled body: tag, name (empty for the
// anonymous form), then a fixed 32-bit length backpatched once the body is
// written. The length bounds the nested decode.
func (o *binaryOut) writeMarshalled(name string, v Marshaler) {
	buf := o.w.buf
	buf.WriteUint8(binTyped)
	buf.WriteUvarint(uint64(len(name)))
	buf.WriteString(name)
	lenOff := buf.Reserve(4)
	bodyStart := buf.WritePosition()
	err := v.MarshalWire(o.w)
	bodyLen := buf.WritePosition() - bodyStart
	if err == nil && bodyLen > math.MaxUint32 {
		err = fmt.Errorf("%w: marshalled body of %d bytes", ErrUnsupportedShape, bodyLen)
	}
	if werr := buf.WriteUint32At(lenOff, uint32(bodyLen)); err == nil {
		err = werr
	}
	o.setErr(err)
}

func (o *binaryOut) Object(v any) { writeObject(o, v) }

// --- Read side ---

type binaryIn struct {
	w   *BinaryWire
	err error
}

var _ ValueIn = (*binaryIn)(nil)

func (i *binaryIn) Err() error { return i.err }

func (i *binaryIn) setErr(err error) {
	if i.err == nil && err != nil {
		i.err = err
	}
}

func (i *binaryIn) readTag() (byte, bool) {
	if i.err != nil {
		return 0, false
	}
	tag, err := i.w.buf.ReadByte()
	if err != nil {
		i.setErr(err)
		return 0, false
	}
	return tag, true
}

func (i *binaryIn) Bool(dest *bool) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	switch tag {
	case binTrue:
		*dest = true
	case binFalse:
		*dest = false
	default:
		i.setErr(fmt.Errorf("%w: have tag %#x, want bool", ErrTypeMismatch, tag))
	}
}

func (i *binaryIn) Int64(dest *int64) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	if tag != binInt64 {
		i.setErr(fmt.Errorf("%w: have tag %#x, want int64", ErrTypeMismatch, tag))
		return
	}
	v, err := i.w.buf.ReadInt64()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = v
}

// Float64 also accepts an integer token, matching the text reader.
func (i *binaryIn) Float64(dest *float64) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	switch tag {
	case binFloat64:
		v, err := i.w.buf.ReadFloat64()
		if err != nil {
			i.setErr(err)
			return
		}
		*dest = v
	case binInt64:
		v, err := i.w.buf.ReadInt64()
		if err != nil {
			i.setErr(err)
			return
		}
		*dest = float64(v)
	default:
		i.setErr(fmt.Errorf("%w: have tag %#x, want float64", ErrTypeMismatch, tag))
	}
}

func (i *binaryIn) Text(dest *string) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	p, err := i.readPayload(tag, binText, binZText)
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = string(p)
}

func (i *binaryIn) Bytes(dest *[]byte) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	p, err := i.readPayload(tag, binBytes, binZBytes)
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = p
}

func (i *binaryIn) readPayload(tag, plainTag, zTag byte) ([]byte, error) {
	switch tag {
	case plainTag:
		return i.w.readLenBytes()
	case zTag:
		z, err := i.w.readLenBytes()
		if err != nil {
			return nil, err
		}
		return zstdDecoder.DecodeAll(z, nil)
	}
	return nil, fmt.Errorf("%w: have tag %#x, want %#x", ErrTypeMismatch, tag, plainTag)
}

func (i *binaryIn) Map(dest *map[string]any) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	if tag != binMap {
		i.setErr(fmt.Errorf("%w: have tag %#x, want map", ErrTypeMismatch, tag))
		return
	}
	m, err := i.readMapBody()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = m
}

func (i *binaryIn) readMapBody() (map[string]any, error) {
	count, err := i.w.buf.ReadUvarint()
	if err != nil {
		return nil, err
	}
	// Each entry takes at least one wire byte, so a larger count is corrupt.
	if count > uint64(i.w.buf.Remaining()) {
		return nil, fmt.Errorf("%w: map of %d entries in %d remaining bytes", ErrSyntax, count, i.w.buf.Remaining())
	}
	m := make(map[string]any, count)
	for n := uint64(0); n < count; n++ {
		ktag, err := i.w.buf.ReadByte()
		if err != nil {
			return nil, err
		}
		key, err := i.readPayload(ktag, binText, binZText)
		if err != nil {
			return nil, err
		}
		v, err := i.readValue()
		if err != nil {
			return nil, err
		}
		m[string(key)] = v
	}
	return m, nil
}

func (i *binaryIn) Sequence(dest *[]any) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	if tag != binSequence {
		i.setErr(fmt.Errorf("%w: have tag %#x, want sequence", ErrTypeMismatch, tag))
		return
	}
	seq, err := i.readSequenceBody()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = seq
}

func (i *binaryIn) readSequenceBody() ([]any, error) {
	count, err := i.w.buf.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if count > uint64(i.w.buf.Remaining()) {
		return nil, fmt.Errorf("%w: sequence of %d elements in %d remaining bytes", ErrSyntax, count, i.w.buf.Remaining())
	}
	seq := make([]any, 0, count)
	for n := uint64(0); n < count; n++ {
		v, err := i.readValue()
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
	return seq, nil
}

func (i *binaryIn) TypedMarshallable() (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	v, err := i.readTyped(true)
	if err != nil {
		i.setErr(err)
		return nil, err
	}
	return v, nil
}

func (i *binaryIn) Marshallable(dest Unmarshaler) {
	tag, ok := i.readTag()
	if !ok {
		return
	}
	if tag != binTyped {
		i.setErr(fmt.Errorf("%w: have tag %#x, want marshalled body", ErrTypeMismatch, tag))
		return
	}
	if _, err := i.w.readLenBytes(); err != nil {
		i.setErr(err)
		return
	}
	body, err := i.readBody()
	if err != nil {
		i.setErr(err)
		return
	}
	i.setErr(dest.UnmarshalWire(i.w.subWire(body)))
}

// readBody consumes the fixed 32-bit length and returns a view of that
// many body bytes.
func (i *binaryIn) readBody() ([]byte, error) {
	n, err := i.w.buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	off := i.w.buf.ReadPosition()
	body, err := i.w.buf.ViewAt(off, int64(n))
	if err != nil {
		return nil, err
	}
	if err := i.w.buf.Skip(int64(n)); err != nil {
		return nil, err
	}
	return body, nil
}

func (i *binaryIn) readTyped(nameRequired bool) (any, error) {
	tag, err := i.w.buf.ReadByte()
	if err != nil {
		return nil, err
	}
	if tag != binTyped {
		return nil, fmt.Errorf("%w: have tag %#x", ErrNotTyped, tag)
	}
	name, err := i.w.readLenBytes()
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		if nameRequired {
			return nil, fmt.Errorf("%w: anonymous marshalled body", ErrNotTyped)
		}
		return i.readAnonymousBody()
	}
	v, ok := NewRegistered(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	body, err := i.readBody()
	if err != nil {
		return nil, err
	}
	if err := v.UnmarshalWire(i.w.subWire(body)); err != nil {
		return nil, err
	}
	return v, nil
}

// readAnonymousBody decodes a nameless marshalled body generically: field
// and value pairs become a map on the named variants, bare values a
// sequence on the fieldless one.
func (i *binaryIn) readAnonymousBody() (any, error) {
	body, err := i.readBody()
	if err != nil {
		return nil, err
	}
	sub := i.w.subWire(body)
	if sub.fieldNames {
		m := map[string]any{}
		for sub.HasMore() {
			var name string
			in := sub.Read(&name)
			v, err := in.Object()
			if err != nil {
				return nil, err
			}
			m[name] = v
		}
		return m, nil
	}
	seq := []any{}
	for sub.HasMore() {
		v, err := sub.ValueIn().Object()
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
	return seq, nil
}

func (i *binaryIn) Object() (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	v, err := i.readValue()
	i.setErr(err)
	return v, err
}

func (i *binaryIn) readValue() (any, error) {
	tag, err := i.w.buf.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case binNil:
		return nil, nil
	case binFalse:
		return false, nil
	case binTrue:
		return true, nil
	case binInt64:
		return i.w.buf.ReadInt64()
	case binFloat64:
		return i.w.buf.ReadFloat64()
	case binText, binZText:
		p, err := i.readPayload(tag, binText, binZText)
		if err != nil {
			return nil, err
		}
		return string(p), nil
	case binBytes, binZBytes:
		return i.readPayload(tag, binBytes, binZBytes)
	case binMap:
		return i.readMapBody()
	case binSequence:
		return i.readSequenceBody()
	case binTyped:
		// Rewind over the tag; readTyped owns the whole token.
		if err := i.w.buf.SetReadPosition(i.w.buf.ReadPosition() - 1); err != nil {
			return nil, err
		}
		return i.readTyped(false)
	}
	return nil, fmt.Errorf("%w: %#x", ErrInvalidTag, tag)
}
