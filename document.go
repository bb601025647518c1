package wire

import (
	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// DocumentContext frames one logical message inside a byte store. Start
// reserves and publishes a not-ready header at the current write position;
// the caller then writes the body through the store; Close seals the header
// with the final length. Each context carries exactly one in-flight
// document.
//
// The two header stores are the only ordered operations: a concurrent
// reader polling the header offset observes either nothing, the not-ready
// word, or the sealed word, never a torn value. The protocol is
// single-writer; interleaving Start/Close pairs on one store requires
// external serialization.
type DocumentContext struct {
	store     *bytestore.Buffer
	headerPos int64
	metaData  bool
	open      bool
}

// NewDocumentContext binds a context to a byte store.
func NewDocumentContext(b *bytestore.Buffer) *DocumentContext {
	if b == nil {
		panic("wire: NewDocumentContext called with a nil byte store")
	}
	return &DocumentContext{store: b}
}

// Start begins a document. It aligns the write cursor to the header size,
// records the header position, and publishes metaBit|NotReady|UnknownLength
// with a single ordered write. After Start the write cursor sits at the
// first body byte.
func (dc *DocumentContext) Start(metaData bool) error {
	if dc.open {
		return ErrDocumentOpen
	}
	dc.store.AlignWrite(HeaderSize)
	dc.headerPos = dc.store.Reserve(HeaderSize)
	word := NotReady | UnknownLength
	if metaData {
		word |= MetaData
	}
	dc.store.WriteOrderedUint32(dc.headerPos, word)
	dc.metaData = metaData
	dc.open = true
	return nil
}

// Close seals the document: it computes the body length from the current
// write position and publishes metaBit|length with a single ordered write,
// clearing the not-ready bit.
//
// A body longer than MaxDocumentLength fails with LengthOverflowError and
// leaves the header not-ready, so a careful reader sees an abandoned
// document instead of a wrapped length. A write cursor rewound below the
// header (the caller abandoned the body) is reported as a truncation
// diagnostic and the document seals empty.
func (dc *DocumentContext) Close() error {
	if !dc.open {
		return ErrDocumentNotOpen
	}
	dc.open = false
	length := dc.store.WritePosition() - dc.headerPos - HeaderSize
	if length > MaxDocumentLength {
		return &LengthOverflowError{Length: length, Limit: MaxDocumentLength}
	}
	if length < 0 {
		logger.Warn().
			Int64("headerPosition", dc.headerPos).
			Int64("writePosition", dc.store.WritePosition()).
			Msg("document truncated below its header, sealing empty")
		length = 0
	}
	word := uint32(length)
	if dc.metaData {
		word |= MetaData
	}
	dc.store.WriteOrderedUint32(dc.headerPos, word)
	return nil
}

// IsOpen reports whether a document is in flight.
func (dc *DocumentContext) IsOpen() bool { return dc.open }

// IsMetaData reports the flag chosen at Start.
func (dc *DocumentContext) IsMetaData() bool { return dc.metaData }

// HeaderPosition returns the absolute offset of the header word.
func (dc *DocumentContext) HeaderPosition() int64 { return dc.headerPos }

// ReadHeader performs one acquire load of the header word at the given
// position. Safe to call from any goroutine while the writer runs, provided
// the store is pre-sized so no growth reallocates it. A position with no
// room for a header word reads as blank, so a sequential scan that steps
// off the end of a full store sees no document rather than a bounds panic.
func ReadHeader(b *bytestore.Buffer, position int64) HeaderWord {
	if position < 0 || position+HeaderSize > b.Cap() {
		return 0
	}
	return HeaderWord(b.ReadVolatileUint32(position))
}

// ReadDocument reads the sealed document at the given position and returns
// a view of its body. It returns ErrNoDocument when nothing was started
// there and ErrDocumentNotReady while the writer is mid-document; the
// caller retries or backs off, it never blocks.
func ReadDocument(b *bytestore.Buffer, position int64) ([]byte, HeaderWord, error) {
	h := ReadHeader(b, position)
	if !h.Present() {
		return nil, h, ErrNoDocument
	}
	if !h.Ready() {
		return nil, h, ErrDocumentNotReady
	}
	body, err := b.ViewAt(position+HeaderSize, h.Length())
	if err != nil {
		return nil, h, err
	}
	return body, h, nil
}

// WriteDocument frames one document around fn: Start, fill, Close. Close
// runs even when fn fails, so the reserved header is always resolved and no
// permanently not-ready word is left behind by an error mid-body.
func WriteDocument(w Wire, metaData bool, fn func(Wire) error) error {
	dc := NewDocumentContext(w.Bytes())
	if err := dc.Start(metaData); err != nil {
		return err
	}
	err := fn(w)
	if cerr := dc.Close(); err == nil {
		err = cerr
	}
	return err
}
