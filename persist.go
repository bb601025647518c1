package wire

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// ToFile encodes v in this form and writes it to path through a
// temporary file in the same directory, so a reader never observes a
// half-written file.
func (t WireType) ToFile(path string, v any) error {
	s := AcquireScratch()
	defer ReleaseScratch(s)
	out := t.Apply(s.Primary).ValueOut()
	out.Object(v)
	if err := out.Err(); err != nil {
		return err
	}
	return writeFileAtomic(path, s.Primary.Bytes())
}

// ToFileAsMap encodes m as named events in insertion order and writes
// the result to path atomically. compact selects the single-line
// rendering in the text forms.
func ToFileAsMap[V any](t WireType, path string, m *OrderedMap[V], compact bool) error {
	s := AcquireScratch()
	defer ReleaseScratch(s)
	w := t.Apply(s.Primary)
	w.ValueOut().Compact(compact)
	m.Range(func(k string, v V) bool {
		w.WriteEventName(k).Object(v)
		return w.ValueOut().Err() == nil
	})
	if err := w.ValueOut().Err(); err != nil {
		return err
	}
	return writeFileAtomic(path, s.Primary.Bytes())
}

// FromFile reads path and decodes its content in this form as a T.
func FromFile[T any](t WireType, path string) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, &FileError{Op: "read", Path: path, Err: err}
	}
	v, err := t.Apply(bytestore.Wrap(data)).ValueIn().Object()
	if err != nil {
		return zero, err
	}
	tv, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, v, zero)
	}
	return tv, nil
}

// FromFileAsMap reads path and decodes its named events into a map that
// keeps the file's order.
func FromFileAsMap[V any](t WireType, path string) (*OrderedMap[V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: path, Err: err}
	}
	w := t.Apply(bytestore.Wrap(data))
	m := NewOrderedMap[V]()
	for w.HasMore() {
		var name string
		v, err := w.ReadEventName(&name).Object()
		if err != nil {
			return nil, err
		}
		tv, ok := v.(V)
		if !ok {
			var zero V
			return nil, fmt.Errorf("%w: event %q holds %T, want %T", ErrTypeMismatch, name, v, zero)
		}
		m.Set(name, tv)
	}
	return m, nil
}

// writeFileAtomic writes data to a temporary file beside path and
// renames it into place. A failed rename removes the destination and
// retries once before giving up.
func writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return &FileError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmpPath)
		return &FileError{Op: "write", Path: path, TempPath: tmpPath, Err: werr}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		logger.Warn().Str("path", path).Str("tempPath", tmpPath).Err(err).
			Msg("rename failed, removing destination and retrying")
		os.Remove(path)
		if err = os.Rename(tmpPath, path); err != nil {
			os.Remove(tmpPath)
			return &FileError{Op: "rename", Path: path, TempPath: tmpPath, Err: err}
		}
	}
	return nil
}
