// Package bytestore provides the growable byte buffer the wire layer is
// built on: a contiguous region with independent read and write cursors,
// little-endian primitive access, random access at absolute offsets, and
// ordered (publish/acquire) 32- and 64-bit operations for lock-free
// coordination between one writer and concurrent readers.
package bytestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/constraints"
)

var (
	// ErrUnderflow indicates a sequential read past the write position.
	ErrUnderflow = errors.New("bytestore: read past write position")

	// ErrOutOfBounds indicates a position or offset outside the buffer's
	// valid range.
	ErrOutOfBounds = errors.New("bytestore: position out of bounds")
)

// MinCapacity is the smallest backing array a Buffer allocates. Keeping a
// floor here also keeps the backing array off the tiny allocator, so its
// base address is suitably aligned for the ordered operations.
const MinCapacity = 64

// Roundup rounds n up to the nearest multiple of align (a power of two).
func Roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }

// Buffer is a growable byte region with an independent write cursor and
// read cursor. Sequential writes append at the write cursor and grow the
// backing array as needed; sequential reads advance the read cursor and
// fail with ErrUnderflow past the write cursor. Multi-byte values are
// little-endian.
//
// A Buffer is not synchronized. The only operations safe to call
// concurrently with a writer are the volatile reads and ViewAt, and only
// while no write triggers growth: growth reallocates the backing array, so
// concurrent framing callers must pre-size with NewSize.
type Buffer struct {
	data     []byte // backing array; len(data) is the capacity
	writePos int64
	readPos  int64
}

// New returns an empty Buffer with a small default capacity.
func New() *Buffer { return NewSize(256) }

// NewSize returns an empty Buffer whose backing array holds at least n
// bytes, so writes up to n never reallocate.
func NewSize(n int) *Buffer {
	if n < MinCapacity {
		n = MinCapacity
	}
	return &Buffer{data: make([]byte, n)}
}

// Wrap returns a Buffer reading the given bytes: the write cursor sits at
// len(p) and the read cursor at zero. The slice is used directly, not
// copied; writes beyond its capacity reallocate.
func Wrap(p []byte) *Buffer {
	return &Buffer{data: p[:cap(p)], writePos: int64(len(p))}
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int64 { return b.writePos }

// Cap returns the capacity of the backing array.
func (b *Buffer) Cap() int64 { return int64(len(b.data)) }

// WritePosition returns the write cursor.
func (b *Buffer) WritePosition() int64 { return b.writePos }

// SetWritePosition moves the write cursor. Moving it backward rewinds the
// buffer (the bytes beyond it become unwritten); moving it forward is
// limited to the current capacity.
func (b *Buffer) SetWritePosition(pos int64) error {
	if pos < 0 || pos > int64(len(b.data)) {
		return fmt.Errorf("%w: write position %d, capacity %d", ErrOutOfBounds, pos, len(b.data))
	}
	b.writePos = pos
	if b.readPos > pos {
		b.readPos = pos
	}
	return nil
}

// ReadPosition returns the read cursor.
func (b *Buffer) ReadPosition() int64 { return b.readPos }

// SetReadPosition moves the read cursor within the written region.
func (b *Buffer) SetReadPosition(pos int64) error {
	if pos < 0 || pos > b.writePos {
		return fmt.Errorf("%w: read position %d, written %d", ErrOutOfBounds, pos, b.writePos)
	}
	b.readPos = pos
	return nil
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int64 { return b.writePos - b.readPos }

// Clear logically truncates the buffer to empty, keeping the backing array.
func (b *Buffer) Clear() {
	b.writePos = 0
	b.readPos = 0
}

// Bytes returns a view of the written region. The view shares memory with
// the buffer and is invalidated by growth.
func (b *Buffer) Bytes() []byte { return b.data[:b.writePos] }

// String returns the unread window as text.
func (b *Buffer) String() string { return string(b.data[b.readPos:b.writePos]) }

// ensure grows the backing array so n more bytes fit at the write cursor.
func (b *Buffer) ensure(n int64) {
	need := b.writePos + n
	if need <= int64(len(b.data)) {
		return
	}
	newCap := int64(len(b.data)) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < MinCapacity {
		newCap = MinCapacity
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.writePos])
	b.data = grown
}

// Reserve advances the write cursor over n bytes without writing them and
// returns the offset of the reserved region. The region's contents are
// whatever the backing array held; callers publish into it with the
// ordered writes.
func (b *Buffer) Reserve(n int64) int64 {
	b.ensure(n)
	off := b.writePos
	b.writePos += n
	return off
}

// AlignWrite pads the write cursor with zero bytes up to an align-byte
// boundary. align must be a power of two.
func (b *Buffer) AlignWrite(align int64) {
	if align <= 1 {
		return
	}
	target := Roundup(b.writePos, align)
	for b.writePos < target {
		b.WriteUint8(0)
	}
}

// --- Sequential writes ---

// WriteUint8 appends one byte.
func (b *Buffer) WriteUint8(v uint8) {
	b.ensure(1)
	b.data[b.writePos] = v
	b.writePos++
}

// WriteByte implements io.ByteWriter. It never fails.
func (b *Buffer) WriteByte(c byte) error {
	b.WriteUint8(c)
	return nil
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.ensure(int64(len(p)))
	copy(b.data[b.writePos:], p)
	b.writePos += int64(len(p))
	return len(p), nil
}

// WriteBytes appends a byte slice.
func (b *Buffer) WriteBytes(p []byte) { _, _ = b.Write(p) }

// WriteString appends the UTF-8 bytes of s.
func (b *Buffer) WriteString(s string) {
	b.ensure(int64(len(s)))
	copy(b.data[b.writePos:], s)
	b.writePos += int64(len(s))
}

// WriteUint16 appends v in little-endian order.
func (b *Buffer) WriteUint16(v uint16) {
	b.ensure(2)
	binary.LittleEndian.PutUint16(b.data[b.writePos:], v)
	b.writePos += 2
}

// WriteUint32 appends v in little-endian order.
func (b *Buffer) WriteUint32(v uint32) {
	b.ensure(4)
	binary.LittleEndian.PutUint32(b.data[b.writePos:], v)
	b.writePos += 4
}

// WriteUint64 appends v in little-endian order.
func (b *Buffer) WriteUint64(v uint64) {
	b.ensure(8)
	binary.LittleEndian.PutUint64(b.data[b.writePos:], v)
	b.writePos += 8
}

// WriteInt64 appends v in little-endian order.
func (b *Buffer) WriteInt64(v int64) { b.WriteUint64(uint64(v)) }

// WriteFloat64 appends the IEEE 754 bits of v in little-endian order.
func (b *Buffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

// WriteUvarint appends v in unsigned varint encoding.
func (b *Buffer) WriteUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.WriteBytes(tmp[:n])
}

// --- Sequential reads ---

// Read implements io.Reader over the unread window.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.readPos >= b.writePos {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.readPos:b.writePos])
	b.readPos += int64(n)
	return n, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if b.readPos >= b.writePos {
		return 0, ErrUnderflow
	}
	c := b.data[b.readPos]
	b.readPos++
	return c, nil
}

// PeekByte returns the next unread byte without advancing the read cursor.
func (b *Buffer) PeekByte() (byte, error) {
	if b.readPos >= b.writePos {
		return 0, ErrUnderflow
	}
	return b.data[b.readPos], nil
}

// ReadUint8 reads one byte.
func (b *Buffer) ReadUint8() (uint8, error) { return b.ReadByte() }

// ReadBytes reads n bytes into a fresh slice.
func (b *Buffer) ReadBytes(n int64) ([]byte, error) {
	if n < 0 || b.readPos+n > b.writePos {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrUnderflow, n, b.Remaining())
	}
	out := make([]byte, n)
	copy(out, b.data[b.readPos:])
	b.readPos += n
	return out, nil
}

// Skip advances the read cursor over n bytes.
func (b *Buffer) Skip(n int64) error {
	if n < 0 || b.readPos+n > b.writePos {
		return fmt.Errorf("%w: skip %d, have %d", ErrUnderflow, n, b.Remaining())
	}
	b.readPos += n
	return nil
}

// ReadUint16 reads a little-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	if b.readPos+2 > b.writePos {
		return 0, ErrUnderflow
	}
	v := binary.LittleEndian.Uint16(b.data[b.readPos:])
	b.readPos += 2
	return v, nil
}

// ReadUint32 reads a little-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	if b.readPos+4 > b.writePos {
		return 0, ErrUnderflow
	}
	v := binary.LittleEndian.Uint32(b.data[b.readPos:])
	b.readPos += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	if b.readPos+8 > b.writePos {
		return 0, ErrUnderflow
	}
	v := binary.LittleEndian.Uint64(b.data[b.readPos:])
	b.readPos += 8
	return v, nil
}

// ReadInt64 reads a little-endian int64.
func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

// ReadFloat64 reads a little-endian IEEE 754 float64.
func (b *Buffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadUvarint reads an unsigned varint.
func (b *Buffer) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(b)
}

// --- Random access ---

// ViewAt returns a view of n bytes at the absolute offset. Bounds are
// checked against the capacity, not the write cursor, so concurrent
// readers can use it without touching writer state.
func (b *Buffer) ViewAt(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > int64(len(b.data)) {
		return nil, fmt.Errorf("%w: view [%d,%d), capacity %d", ErrOutOfBounds, off, off+n, len(b.data))
	}
	return b.data[off : off+n : off+n], nil
}

// WriteUint32At overwrites 4 bytes at the absolute offset, little-endian,
// without moving the write cursor. The region must already be written.
func (b *Buffer) WriteUint32At(off int64, v uint32) error {
	if off < 0 || off+4 > b.writePos {
		return fmt.Errorf("%w: write at %d, written %d", ErrOutOfBounds, off, b.writePos)
	}
	binary.LittleEndian.PutUint32(b.data[off:], v)
	return nil
}

// ReadUint32At reads 4 bytes at the absolute offset, little-endian,
// without moving the read cursor.
func (b *Buffer) ReadUint32At(off int64) (uint32, error) {
	if off < 0 || off+4 > b.writePos {
		return 0, fmt.Errorf("%w: read at %d, written %d", ErrOutOfBounds, off, b.writePos)
	}
	return binary.LittleEndian.Uint32(b.data[off:]), nil
}

// WriteUint64At overwrites 8 bytes at the absolute offset, little-endian.
func (b *Buffer) WriteUint64At(off int64, v uint64) error {
	if off < 0 || off+8 > b.writePos {
		return fmt.Errorf("%w: write at %d, written %d", ErrOutOfBounds, off, b.writePos)
	}
	binary.LittleEndian.PutUint64(b.data[off:], v)
	return nil
}

// ReadUint64At reads 8 bytes at the absolute offset, little-endian.
func (b *Buffer) ReadUint64At(off int64) (uint64, error) {
	if off < 0 || off+8 > b.writePos {
		return 0, fmt.Errorf("%w: read at %d, written %d", ErrOutOfBounds, off, b.writePos)
	}
	return binary.LittleEndian.Uint64(b.data[off:]), nil
}

// --- Ordered access ---
//
// The ordered writes are release stores and the volatile reads are acquire
// loads: a reader that observes a value published by an ordered write also
// observes every plain write sequenced before it on the writing goroutine.
// Offsets must be aligned to the operand size; unaligned ordered access is
// a programming error and panics.

func (b *Buffer) checkAtomic(off, size int64) {
	if off < 0 || off+size > int64(len(b.data)) {
		panic(fmt.Sprintf("bytestore: ordered access at %d beyond capacity %d", off, len(b.data)))
	}
	if uintptr(unsafe.Pointer(&b.data[off]))%uintptr(size) != 0 {
		panic(fmt.Sprintf("bytestore: unaligned %d-byte ordered access at offset %d", size, off))
	}
}

// WriteOrderedUint32 publishes a 32-bit word at the absolute offset with
// release semantics.
func (b *Buffer) WriteOrderedUint32(off int64, v uint32) {
	b.checkAtomic(off, 4)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&b.data[off])), v)
}

// ReadVolatileUint32 reads a 32-bit word at the absolute offset with
// acquire semantics.
func (b *Buffer) ReadVolatileUint32(off int64) uint32 {
	b.checkAtomic(off, 4)
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&b.data[off])))
}

// WriteOrderedUint64 publishes a 64-bit word at the absolute offset with
// release semantics.
func (b *Buffer) WriteOrderedUint64(off int64, v uint64) {
	b.checkAtomic(off, 8)
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&b.data[off])), v)
}

// ReadVolatileUint64 reads a 64-bit word at the absolute offset with
// acquire semantics.
func (b *Buffer) ReadVolatileUint64(off int64) uint64 {
	b.checkAtomic(off, 8)
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&b.data[off])))
}

// CompareAndSwapUint64 atomically replaces the 64-bit word at the absolute
// offset if it equals old, reporting whether the swap happened.
func (b *Buffer) CompareAndSwapUint64(off int64, old, new uint64) bool {
	b.checkAtomic(off, 8)
	return atomic.CompareAndSwapUint64((*uint64)(unsafe.Pointer(&b.data[off])), old, new)
}
