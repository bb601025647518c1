package wire

import (
	"fmt"
	"math"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// RawWire reads and writes the fixed-layout form: no tags, no field names.
// Numbers are 8 little-endian bytes, bools one byte, strings and byte
// blobs uvarint-length-prefixed. The reader must mirror the writer's
// calls; the only self-describing shape is a typed marshalled value, whose
// registered name doubles as its schema. Maps and sequences have no
// representation here and latch ErrUnsupportedShape.
type RawWire struct {
	buf *bytestore.Buffer
	out rawOut
	in  rawIn
}

var _ Wire = (*RawWire)(nil)

// NewRawWire binds a raw wire to a byte store.
func NewRawWire(b *bytestore.Buffer) *RawWire {
	if b == nil {
		panic("wire: raw wire needs a byte store")
	}
	w := &RawWire{buf: b}
	w.out.w = w
	w.in.w = w
	return w
}

// Bytes returns the underlying byte store.
func (w *RawWire) Bytes() *bytestore.Buffer { return w.buf }

// ValueOut returns the write cursor.
func (w *RawWire) ValueOut() ValueOut { return &w.out }

// ValueIn returns the read cursor.
func (w *RawWire) ValueIn() ValueIn { return &w.in }

// Write starts a field; raw carries no field names.
func (w *RawWire) Write(string) ValueOut { return &w.out }

// Read consumes nothing; raw fields are positional.
func (w *RawWire) Read(*string) ValueIn { return &w.in }

// WriteEventName writes the event name as a length-prefixed string. Event
// names are data and survive even in the rawest form.
func (w *RawWire) WriteEventName(name string) ValueOut {
	if w.out.err == nil {
		w.writeLenBytes([]byte(name))
	}
	return &w.out
}

// ReadEventName consumes the next event's name.
func (w *RawWire) ReadEventName(dest *string) ValueIn {
	if w.in.err != nil {
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

// HasMore reports whether unread bytes remain.
func (w *RawWire) HasMore() bool { return w.buf.Remaining() > 0 }

func (w *RawWire) writeLenBytes(p []byte) {
	w.buf.WriteUvarint(uint64(len(p)))
	w.buf.WriteBytes(p)
}

func (w *RawWire) readLenBytes() ([]byte, error) {
	n, err := w.buf.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return w.buf.ReadBytes(int64(n))
}

type rawOut struct {
	w   *RawWire
	err error
}

var _ ValueOut = (*rawOut)(nil)

func (o *rawOut) Err() error { return o.err }

func (o *rawOut) setErr(err error) {
	if o.err == nil && err != nil {
		o.err = err
	}
}

func (o *rawOut) Compact(bool) {}

// Nil writes nothing; a raw schema has no spot for absent values.
func (o *rawOut) Nil() {}

func (o *rawOut) Bool(v bool) {
	if o.err != nil {
		return
	}
	if v {
		o.w.buf.WriteUint8(1)
	} else {
		o.w.buf.WriteUint8(0)
	}
}

func (o *rawOut) Int64(v int64) {
	if o.err != nil {
		return
	}
	o.w.buf.WriteInt64(v)
}

func (o *rawOut) Float64(v float64) {
	if o.err != nil {
		return
	}
	o.w.buf.WriteFloat64(v)
}

func (o *rawOut) Text(s string) {
	if o.err != nil {
		return
	}
	o.w.writeLenBytes([]byte(s))
}

func (o *rawOut) Bytes(p []byte) {
	if o.err != nil {
		return
	}
	o.w.writeLenBytes(p)
}

func (o *rawOut) Map(map[string]any) {
	o.setErr(fmt.Errorf("%w: map in raw form", ErrUnsupportedShape))
}

func (o *rawOut) Sequence([]any) {
	o.setErr(fmt.Errorf("%w: sequence in raw form", ErrUnsupportedShape))
}

func (o *rawOut) TypedMarshallable(v Marshaler) {
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

func (o *rawOut) Marshallable(v Marshaler) {
	if o.err != nil {
		return
	}
	o.writeMarshalled("", v)
}

func (o *rawOut) writeMarshalled(name string, v Marshaler) {
	buf := o.w.buf
	o.w.writeLenBytes([]byte(name))
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

func (o *rawOut) Object(v any) { writeObject(o, v) }

type rawIn struct {
	w   *RawWire
	err error
}

var _ ValueIn = (*rawIn)(nil)

func (i *rawIn) Err() error { return i.err }

func (i *rawIn) setErr(err error) {
	if i.err == nil && err != nil {
		i.err = err
	}
}

func (i *rawIn) Bool(dest *bool) {
	if i.err != nil {
		return
	}
	b, err := i.w.buf.ReadByte()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = b != 0
}

func (i *rawIn) Int64(dest *int64) {
	if i.err != nil {
		return
	}
	v, err := i.w.buf.ReadInt64()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = v
}

func (i *rawIn) Float64(dest *float64) {
	if i.err != nil {
		return
	}
	v, err := i.w.buf.ReadFloat64()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = v
}

func (i *rawIn) Text(dest *string) {
	if i.err != nil {
		return
	}
	p, err := i.w.readLenBytes()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = string(p)
}

func (i *rawIn) Bytes(dest *[]byte) {
	if i.err != nil {
		return
	}
	p, err := i.w.readLenBytes()
	if err != nil {
		i.setErr(err)
		return
	}
	*dest = p
}

func (i *rawIn) Map(*map[string]any) {
	i.setErr(fmt.Errorf("%w: map in raw form", ErrUnsupportedShape))
}

func (i *rawIn) Sequence(*[]any) {
	i.setErr(fmt.Errorf("%w: sequence in raw form", ErrUnsupportedShape))
}

func (i *rawIn) TypedMarshallable() (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	v, err := i.readTyped()
	if err != nil {
		i.setErr(err)
		return nil, err
	}
	return v, nil
}

func (i *rawIn) Marshallable(dest Unmarshaler) {
	if i.err != nil {
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
	i.setErr(dest.UnmarshalWire(NewRawWire(bytestore.Wrap(body))))
}

func (i *rawIn) readBody() ([]byte, error) {
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

func (i *rawIn) readTyped() (any, error) {
	name, err := i.w.readLenBytes()
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return nil, fmt.Errorf("%w: anonymous raw body has no schema", ErrNotTyped)
	}
	v, ok := NewRegistered(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	body, err := i.readBody()
	if err != nil {
		return nil, err
	}
	if err := v.UnmarshalWire(NewRawWire(bytestore.Wrap(body))); err != nil {
		return nil, err
	}
	return v, nil
}

// Object decodes a typed marshalled value, the one self-describing shape
// the raw form has. Everything else must be read with the calls that
// mirror the writes.
func (i *rawIn) Object() (any, error) {
	return i.TypedMarshallable()
}
