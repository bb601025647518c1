package wire

import "fmt"

// Document header layout. A document is framed by one 32-bit word packing a
// metadata flag (bit 31), a not-ready flag (bit 30), and the body length in
// the low 30 bits. While the not-ready bit is set the length bits carry the
// UnknownLength sentinel and must not be interpreted.
const (
	// HeaderSize is the framing word size in bytes.
	HeaderSize = 4

	// MetaData marks a metadata document, as opposed to regular data.
	MetaData uint32 = 1 << 31

	// NotReady marks a document still being written.
	NotReady uint32 = 1 << 30

	// LengthMask selects the 30 length bits.
	LengthMask uint32 = 1<<30 - 1

	// UnknownLength is the length-field sentinel carried while not-ready.
	UnknownLength uint32 = LengthMask

	// MaxDocumentLength is the largest representable body length.
	MaxDocumentLength int64 = int64(LengthMask)
)

// HeaderWord is one framing word as read from a byte store. The zero word
// means no writer has started a document at that position.
type HeaderWord uint32

// Present reports whether a writer has published anything at all here.
func (h HeaderWord) Present() bool { return h != 0 }

// Ready reports whether the document is sealed and its length valid.
func (h HeaderWord) Ready() bool { return uint32(h)&NotReady == 0 }

// MetaData reports whether the document is metadata.
func (h HeaderWord) MetaData() bool { return uint32(h)&MetaData != 0 }

// Length returns the body length in bytes. Valid only when Ready.
func (h HeaderWord) Length() int64 { return int64(uint32(h) & LengthMask) }

func (h HeaderWord) String() string {
	kind := "data"
	if h.MetaData() {
		kind = "meta"
	}
	if !h.Ready() {
		return fmt.Sprintf("%s not-ready", kind)
	}
	return fmt.Sprintf("%s len=%d", kind, h.Length())
}
