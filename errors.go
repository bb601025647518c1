package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentOpen indicates Start was called on a context whose document is still open.
	ErrDocumentOpen = errors.New("wire: document already started on this context")

	// ErrDocumentNotOpen indicates Close was called with no document open.
	ErrDocumentNotOpen = errors.New("wire: no document open on this context")

	// ErrDocumentNotReady indicates a read found the not-ready bit still set;
	// the writer is mid-document and the reader should back off and retry.
	ErrDocumentNotReady = errors.New("wire: document not ready")

	// ErrNoDocument indicates the header word at the given position is zero,
	// meaning no writer has started a document there.
	ErrNoDocument = errors.New("wire: no document at this position")

	// ErrUnknownType indicates a typed value named a type that was never registered.
	ErrUnknownType = errors.New("wire: type name not registered")

	// ErrNotTyped indicates a typed read found no typed value at the cursor.
	ErrNotTyped = errors.New("wire: value is not typed")

	// ErrInvalidTag indicates a binary stream carried a token tag outside the known set.
	ErrInvalidTag = errors.New("wire: invalid token tag")

	// ErrSyntax indicates malformed textual input.
	ErrSyntax = errors.New("wire: malformed input")

	// ErrTypeMismatch indicates the token at the cursor does not match the requested shape.
	ErrTypeMismatch = errors.New("wire: token does not match requested type")

	// ErrUnsupportedShape indicates the value shape has no representation in this format.
	ErrUnsupportedShape = errors.New("wire: value shape not supported by this format")
)

// LengthOverflowError reports a document body too long for the 30-bit
// length field. The header is left not-ready so readers see an abandoned
// document rather than a wrapped length.
type LengthOverflowError struct {
	Length int64
	Limit  int64
}

func (e *LengthOverflowError) Error() string {
	return fmt.Sprintf("wire: document length %d exceeds %d", e.Length, e.Limit)
}

// UnrecognizedFormatError reports a reverse lookup on a format instance no
// registered variant produced.
type UnrecognizedFormatError struct {
	Format any
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("wire: unrecognized wire format %T", e.Format)
}

// FileError reports a persistence failure, naming the destination and, for
// the atomic-replace path, the temporary file involved.
type FileError struct {
	Op       string
	Path     string
	TempPath string
	Err      error
}

func (e *FileError) Error() string {
	if e.TempPath == "" {
		return fmt.Sprintf("wire: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("wire: %s %s (temp %s): %v", e.Op, e.Path, e.TempPath, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
