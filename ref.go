package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// Int64Ref is a 64-bit cell pinned at a fixed offset in a byte store. The
// cell is reserved once, then rewritten in place through the reference
// without moving the stream cursors, so values already framed around it
// stay put. Binary cells use ordered loads and stores and a real
// compare-and-swap; text cells are a fixed-width template and their
// read-modify-write operations assume a single writer.
type Int64Ref interface {
	// Reserve appends a zeroed cell to the store, binds the reference
	// to it, and returns its offset.
	Reserve(b *bytestore.Buffer) int64
	// Bind attaches the reference to an existing cell at offset.
	Bind(b *bytestore.Buffer, offset int64) error
	Value() int64
	SetValue(v int64)
	// AddValue adds delta and returns the new value.
	AddValue(delta int64) int64
	CompareAndSwapValue(old, new int64) bool
	// Length is the cell's size in bytes.
	Length() int64
}

// Int64ArrayRef is a fixed-capacity array of 64-bit cells pinned in a
// byte store.
type Int64ArrayRef interface {
	Reserve(b *bytestore.Buffer, capacity int64) int64
	Bind(b *bytestore.Buffer, offset int64) error
	Capacity() int64
	ValueAt(idx int64) int64
	SetValueAt(idx int64, v int64)
	Length() int64
}

func refBound(b *bytestore.Buffer) {
	if b == nil {
		panic("wire: reference cell not bound")
	}
}

// --- Binary cells ---

type binaryInt64Ref struct {
	b   *bytestore.Buffer
	off int64
}

var _ Int64Ref = (*binaryInt64Ref)(nil)

func (r *binaryInt64Ref) Reserve(b *bytestore.Buffer) int64 {
	b.AlignWrite(8)
	off := b.Reserve(8)
	b.WriteUint64At(off, 0)
	r.b, r.off = b, off
	return off
}

func (r *binaryInt64Ref) Bind(b *bytestore.Buffer, offset int64) error {
	if offset < 0 || offset+8 > b.WritePosition() {
		return bytestore.ErrOutOfBounds
	}
	r.b, r.off = b, offset
	return nil
}

func (r *binaryInt64Ref) Value() int64 {
	refBound(r.b)
	return int64(r.b.ReadVolatileUint64(r.off))
}

func (r *binaryInt64Ref) SetValue(v int64) {
	refBound(r.b)
	r.b.WriteOrderedUint64(r.off, uint64(v))
}

func (r *binaryInt64Ref) AddValue(delta int64) int64 {
	refBound(r.b)
	for {
		old := r.b.ReadVolatileUint64(r.off)
		next := uint64(int64(old) + delta)
		if r.b.CompareAndSwapUint64(r.off, old, next) {
			return int64(next)
		}
	}
}

func (r *binaryInt64Ref) CompareAndSwapValue(old, new int64) bool {
	refBound(r.b)
	return r.b.CompareAndSwapUint64(r.off, uint64(old), uint64(new))
}

func (r *binaryInt64Ref) Length() int64 { return 8 }

// binaryInt64ArrayRef lays out an 8-byte capacity word followed by the
// packed cells.
type binaryInt64ArrayRef struct {
	b   *bytestore.Buffer
	off int64
	cap int64
}

var _ Int64ArrayRef = (*binaryInt64ArrayRef)(nil)

func (r *binaryInt64ArrayRef) Reserve(b *bytestore.Buffer, capacity int64) int64 {
	if capacity <= 0 {
		panic("wire: array reference needs a positive capacity")
	}
	b.AlignWrite(8)
	off := b.Reserve(8 + capacity*8)
	b.WriteUint64At(off, uint64(capacity))
	cells, _ := b.ViewAt(off+8, capacity*8)
	clear(cells)
	r.b, r.off, r.cap = b, off, capacity
	return off
}

func (r *binaryInt64ArrayRef) Bind(b *bytestore.Buffer, offset int64) error {
	if offset < 0 || offset+8 > b.WritePosition() {
		return bytestore.ErrOutOfBounds
	}
	capWord, err := b.ReadUint64At(offset)
	if err != nil {
		return err
	}
	capacity := int64(capWord)
	if capacity <= 0 || offset+8+capacity*8 > b.WritePosition() {
		return bytestore.ErrOutOfBounds
	}
	r.b, r.off, r.cap = b, offset, capacity
	return nil
}

func (r *binaryInt64ArrayRef) Capacity() int64 {
	refBound(r.b)
	return r.cap
}

func (r *binaryInt64ArrayRef) cellAt(idx int64) int64 {
	refBound(r.b)
	if idx < 0 || idx >= r.cap {
		panic(fmt.Sprintf("wire: array reference index %d out of range [0,%d)", idx, r.cap))
	}
	return r.off + 8 + idx*8
}

func (r *binaryInt64ArrayRef) ValueAt(idx int64) int64 {
	return int64(r.b.ReadVolatileUint64(r.cellAt(idx)))
}

func (r *binaryInt64ArrayRef) SetValueAt(idx int64, v int64) {
	r.b.WriteOrderedUint64(r.cellAt(idx), uint64(v))
}

func (r *binaryInt64ArrayRef) Length() int64 { return 8 + r.cap*8 }

// --- Text cells ---

// Text cells keep a constant byte length so in-place rewrites never
// shift surrounding content. The value is the 20-digit zero-padded
// decimal image of the uint64 bit pattern, which keeps negatives
// lossless at a fixed width.
const (
	textRefPrefix = "!int64 { value: "
	textRefSuffix = " }"
	textRefDigits = 20
	textRefLen    = int64(len(textRefPrefix) + textRefDigits + len(textRefSuffix))

	textArrayPrefix = "!int64array { capacity: "
	textArraySep    = ", values: ["
	textArrayTail   = " ] }"
)

func formatRefDigits(v int64) string {
	return fmt.Sprintf("%0*d", textRefDigits, uint64(v))
}

func parseRefDigits(p []byte) (int64, error) {
	u, err := strconv.ParseUint(string(p), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: reference cell holds %q", ErrSyntax, p)
	}
	return int64(u), nil
}

type textInt64Ref struct {
	b   *bytestore.Buffer
	off int64
}

var _ Int64Ref = (*textInt64Ref)(nil)

func (r *textInt64Ref) Reserve(b *bytestore.Buffer) int64 {
	off := b.WritePosition()
	b.WriteString(textRefPrefix)
	b.WriteString(formatRefDigits(0))
	b.WriteString(textRefSuffix)
	r.b, r.off = b, off
	return off
}

func (r *textInt64Ref) Bind(b *bytestore.Buffer, offset int64) error {
	if offset < 0 || offset+textRefLen > b.WritePosition() {
		return bytestore.ErrOutOfBounds
	}
	cell, err := b.ViewAt(offset, textRefLen)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(cell, []byte(textRefPrefix)) || !bytes.HasSuffix(cell, []byte(textRefSuffix)) {
		return fmt.Errorf("%w: no reference cell at offset %d", ErrSyntax, offset)
	}
	r.b, r.off = b, offset
	return nil
}

func (r *textInt64Ref) digits() []byte {
	refBound(r.b)
	p, err := r.b.ViewAt(r.off+int64(len(textRefPrefix)), textRefDigits)
	if err != nil {
		panic("wire: reference cell out of bounds")
	}
	return p
}

func (r *textInt64Ref) Value() int64 {
	v, err := parseRefDigits(r.digits())
	if err != nil {
		panic("wire: corrupt reference cell")
	}
	return v
}

func (r *textInt64Ref) SetValue(v int64) {
	copy(r.digits(), formatRefDigits(v))
}

func (r *textInt64Ref) AddValue(delta int64) int64 {
	next := r.Value() + delta
	r.SetValue(next)
	return next
}

func (r *textInt64Ref) CompareAndSwapValue(old, new int64) bool {
	if r.Value() != old {
		return false
	}
	r.SetValue(new)
	return true
}

func (r *textInt64Ref) Length() int64 { return textRefLen }

type textInt64ArrayRef struct {
	b   *bytestore.Buffer
	off int64
	cap int64
}

var _ Int64ArrayRef = (*textInt64ArrayRef)(nil)

// textArrayLen is the rendered size of a text array with n cells.
func textArrayLen(n int64) int64 {
	// prefix, capacity digits, separator, then " <digits>" per cell
	// with "," between cells, then the tail.
	return int64(len(textArrayPrefix)+textRefDigits+len(textArraySep)+len(textArrayTail)) +
		n*(textRefDigits+2) - 1
}

func (r *textInt64ArrayRef) Reserve(b *bytestore.Buffer, capacity int64) int64 {
	if capacity <= 0 {
		panic("wire: array reference needs a positive capacity")
	}
	off := b.WritePosition()
	var sb strings.Builder
	sb.WriteString(textArrayPrefix)
	sb.WriteString(fmt.Sprintf("%0*d", textRefDigits, capacity))
	sb.WriteString(textArraySep)
	for n := int64(0); n < capacity; n++ {
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(' ')
		sb.WriteString(formatRefDigits(0))
	}
	sb.WriteString(textArrayTail)
	b.WriteString(sb.String())
	r.b, r.off, r.cap = b, off, capacity
	return off
}

func (r *textInt64ArrayRef) Bind(b *bytestore.Buffer, offset int64) error {
	head := int64(len(textArrayPrefix) + textRefDigits)
	if offset < 0 || offset+head > b.WritePosition() {
		return bytestore.ErrOutOfBounds
	}
	view, err := b.ViewAt(offset, head)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(view, []byte(textArrayPrefix)) {
		return fmt.Errorf("%w: no array reference at offset %d", ErrSyntax, offset)
	}
	capacity, err := parseRefDigits(view[len(textArrayPrefix):])
	if err != nil {
		return err
	}
	if capacity <= 0 || offset+textArrayLen(capacity) > b.WritePosition() {
		return bytestore.ErrOutOfBounds
	}
	r.b, r.off, r.cap = b, offset, capacity
	return nil
}

func (r *textInt64ArrayRef) Capacity() int64 {
	refBound(r.b)
	return r.cap
}

func (r *textInt64ArrayRef) digitsAt(idx int64) []byte {
	refBound(r.b)
	if idx < 0 || idx >= r.cap {
		panic(fmt.Sprintf("wire: array reference index %d out of range [0,%d)", idx, r.cap))
	}
	cell := r.off + int64(len(textArrayPrefix)+textRefDigits+len(textArraySep)) + 1 + idx*(textRefDigits+2)
	p, err := r.b.ViewAt(cell, textRefDigits)
	if err != nil {
		panic("wire: reference cell out of bounds")
	}
	return p
}

func (r *textInt64ArrayRef) ValueAt(idx int64) int64 {
	v, err := parseRefDigits(r.digitsAt(idx))
	if err != nil {
		panic("wire: corrupt reference cell")
	}
	return v
}

func (r *textInt64ArrayRef) SetValueAt(idx int64, v int64) {
	copy(r.digitsAt(idx), formatRefDigits(v))
}

func (r *textInt64ArrayRef) Length() int64 { return textArrayLen(r.cap) }
