package wire

import (
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// CSVWire reads and writes the tabular text form as RFC 4180 records. The
// shapes with a tabular rendering are flat: a scalar is a single cell, a
// mapping is a `key,value` header with one row per entry, a sequence of
// flat mappings is a header row from the first mapping's keys with one row
// per mapping, and a named event is a `name,value` row. Cells are re-typed
// on read (int64, then float64, then bool, then string), so a string that
// looks numeric comes back as a number. Nested and typed shapes latch
// ErrUnsupportedShape.
type CSVWire struct {
	buf *bytestore.Buffer
	out csvOut
	in  csvIn
}

var _ Wire = (*CSVWire)(nil)

// NewCSVWire binds a CSV wire to a byte store.
func NewCSVWire(b *bytestore.Buffer) *CSVWire {
	if b == nil {
		panic("wire: csv wire needs a byte store")
	}
	w := &CSVWire{buf: b}
	w.out.w = w
	w.in.w = w
	return w
}

// Bytes returns the underlying byte store.
func (w *CSVWire) Bytes() *bytestore.Buffer { return w.buf }

// ValueOut returns the write cursor.
func (w *CSVWire) ValueOut() ValueOut { return &w.out }

// ValueIn returns the read cursor.
func (w *CSVWire) ValueIn() ValueIn { return &w.in }

// Write stages a name; the next scalar completes the `name,value` row.
func (w *CSVWire) Write(name string) ValueOut {
	if w.out.err == nil {
		w.out.pendingName = name
		w.out.hasPending = true
	}
	return &w.out
}

// WriteEventName stages the event name for a `name,value` row.
func (w *CSVWire) WriteEventName(name string) ValueOut { return w.Write(name) }

// Read consumes the name cell of the next row and stages its remaining
// cells as the value.
func (w *CSVWire) Read(dest *string) ValueIn {
	if w.in.err != nil {
		return &w.in
	}
	rec, err := w.in.nextRecord()
	if err != nil {
		w.in.setErr(err)
		return &w.in
	}
	if len(rec) == 0 {
		w.in.setErr(fmt.Errorf("%w: empty record", ErrSyntax))
		return &w.in
	}
	if dest != nil {
		*dest = rec[0]
	}
	w.in.pending = rec[1:]
	return &w.in
}

// ReadEventName consumes the next event's name.
func (w *CSVWire) ReadEventName(dest *string) ValueIn { return w.Read(dest) }

// HasMore reports whether staged cells or unread records remain.
func (w *CSVWire) HasMore() bool {
	if len(w.in.pending) > 0 {
		return true
	}
	if err := w.in.ensureParsed(); err != nil {
		return false
	}
	return w.in.next < len(w.in.records)
}

// --- Write side ---

type csvOut struct {
	w           *CSVWire
	err         error
	pendingName string
	hasPending  bool
}

var _ ValueOut = (*csvOut)(nil)

func (o *csvOut) Err() error { return o.err }

func (o *csvOut) setErr(err error) {
	if o.err == nil && err != nil {
		o.err = err
	}
}

func (o *csvOut) Compact(bool) {}

func (o *csvOut) writeRecords(recs [][]string) {
	cw := csv.NewWriter(o.w.buf)
	o.setErr(cw.WriteAll(recs))
}

// writeCell completes a staged `name,value` row or emits a single-cell
// record.
func (o *csvOut) writeCell(cell string) {
	if o.hasPending {
		name := o.pendingName
		o.hasPending = false
		o.writeRecords([][]string{{name, cell}})
		return
	}
	o.writeRecords([][]string{{cell}})
}

func (o *csvOut) Nil() {
	o.setErr(fmt.Errorf("%w: nil in tabular form", ErrUnsupportedShape))
}

func (o *csvOut) Bool(v bool) {
	if o.err != nil {
		return
	}
	o.writeCell(strconv.FormatBool(v))
}

func (o *csvOut) Int64(v int64) {
	if o.err != nil {
		return
	}
	o.writeCell(strconv.FormatInt(v, 10))
}

func (o *csvOut) Float64(v float64) {
	if o.err != nil {
		return
	}
	o.writeCell(formatFloatCell(v))
}

func (o *csvOut) Text(s string) {
	if o.err != nil {
		return
	}
	o.writeCell(s)
}

func (o *csvOut) Bytes([]byte) {
	o.setErr(fmt.Errorf("%w: bytes in tabular form", ErrUnsupportedShape))
}

// Map writes a `key,value` header and one row per entry, keys sorted.
// Values must be scalar.
func (o *csvOut) Map(m map[string]any) {
	if o.err != nil {
		return
	}
	if o.hasPending {
		o.setErr(fmt.Errorf("%w: mapping under an event name", ErrUnsupportedShape))
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	recs := [][]string{{"key", "value"}}
	for _, k := range keys {
		cell, err := formatCell(m[k])
		if err != nil {
			o.setErr(err)
			return
		}
		recs = append(recs, []string{k, cell})
	}
	o.writeRecords(recs)
}

// Sequence writes a table when every element is a flat mapping (header
// from the first mapping's sorted keys), or a single row of cells when
// every element is scalar.
func (o *csvOut) Sequence(seq []any) {
	if o.err != nil {
		return
	}
	if o.hasPending {
		o.setErr(fmt.Errorf("%w: sequence under an event name", ErrUnsupportedShape))
		return
	}
	if len(seq) == 0 {
		o.setErr(fmt.Errorf("%w: empty sequence in tabular form", ErrUnsupportedShape))
		return
	}
	if _, ok := seq[0].(map[string]any); ok {
		o.writeTable(seq)
		return
	}
	row := make([]string, len(seq))
	for n, v := range seq {
		cell, err := formatCell(v)
		if err != nil {
			o.setErr(err)
			return
		}
		row[n] = cell
	}
	o.writeRecords([][]string{row})
}

func (o *csvOut) writeTable(seq []any) {
	first, ok := seq[0].(map[string]any)
	if !ok {
		o.setErr(fmt.Errorf("%w: mixed sequence in tabular form", ErrUnsupportedShape))
		return
	}
	header := make([]string, 0, len(first))
	for k := range first {
		header = append(header, k)
	}
	sort.Strings(header)
	recs := [][]string{header}
	for _, elem := range seq {
		m, ok := elem.(map[string]any)
		if !ok {
			o.setErr(fmt.Errorf("%w: mixed sequence in tabular form", ErrUnsupportedShape))
			return
		}
		row := make([]string, len(header))
		for n, k := range header {
			v, ok := m[k]
			if !ok {
				continue
			}
			cell, err := formatCell(v)
			if err != nil {
				o.setErr(err)
				return
			}
			row[n] = cell
		}
		recs = append(recs, row)
	}
	o.writeRecords(recs)
}

func (o *csvOut) TypedMarshallable(Marshaler) {
	o.setErr(fmt.Errorf("%w: typed value in tabular form", ErrUnsupportedShape))
}

func (o *csvOut) Marshallable(Marshaler) {
	o.setErr(fmt.Errorf("%w: marshalled value in tabular form", ErrUnsupportedShape))
}

func (o *csvOut) Object(v any) { writeObject(o, v) }

func formatCell(v any) (string, error) {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return formatFloatCell(t), nil
	case string:
		return t, nil
	}
	return "", fmt.Errorf("%w: %T in a cell", ErrUnsupportedShape, v)
}

func formatFloatCell(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(v, 0) && !math.IsNaN(v) {
		s += ".0"
	}
	return s
}

// --- Read side ---

type csvIn struct {
	w       *CSVWire
	err     error
	records [][]string
	next    int
	pending []string
	parsed  bool
}

var _ ValueIn = (*csvIn)(nil)

func (i *csvIn) Err() error { return i.err }

func (i *csvIn) setErr(err error) {
	if i.err == nil && err != nil {
		i.err = err
	}
}

// ensureParsed reads every record off the byte store once.
func (i *csvIn) ensureParsed() error {
	if i.parsed {
		return nil
	}
	i.parsed = true
	r := csv.NewReader(i.w.buf)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	i.records = recs
	return nil
}

func (i *csvIn) nextRecord() ([]string, error) {
	if err := i.ensureParsed(); err != nil {
		return nil, err
	}
	if i.next >= len(i.records) {
		return nil, bytestore.ErrUnderflow
	}
	rec := i.records[i.next]
	i.next++
	return rec, nil
}

// nextCell returns the staged value cell from a consumed name, or the
// single cell of the next record.
func (i *csvIn) nextCell() (string, error) {
	if len(i.pending) > 0 {
		cell := i.pending[0]
		i.pending = i.pending[1:]
		return cell, nil
	}
	rec, err := i.nextRecord()
	if err != nil {
		return "", err
	}
	if len(rec) != 1 {
		return "", fmt.Errorf("%w: expected a single cell, have %d", ErrTypeMismatch, len(rec))
	}
	return rec[0], nil
}

func (i *csvIn) Bool(dest *bool) {
	cell, err := i.cell()
	if err != nil {
		return
	}
	v, perr := strconv.ParseBool(cell)
	if perr != nil {
		i.setErr(fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, cell))
		return
	}
	*dest = v
}

func (i *csvIn) Int64(dest *int64) {
	cell, err := i.cell()
	if err != nil {
		return
	}
	v, perr := strconv.ParseInt(cell, 10, 64)
	if perr != nil {
		i.setErr(fmt.Errorf("%w: %q is not an int64", ErrTypeMismatch, cell))
		return
	}
	*dest = v
}

func (i *csvIn) Float64(dest *float64) {
	cell, err := i.cell()
	if err != nil {
		return
	}
	v, perr := strconv.ParseFloat(cell, 64)
	if perr != nil {
		i.setErr(fmt.Errorf("%w: %q is not a float64", ErrTypeMismatch, cell))
		return
	}
	*dest = v
}

func (i *csvIn) Text(dest *string) {
	cell, err := i.cell()
	if err != nil {
		return
	}
	*dest = cell
}

func (i *csvIn) cell() (string, error) {
	if i.err != nil {
		return "", i.err
	}
	cell, err := i.nextCell()
	if err != nil {
		i.setErr(err)
		return "", err
	}
	return cell, nil
}

func (i *csvIn) Bytes(*[]byte) {
	i.setErr(fmt.Errorf("%w: bytes in tabular form", ErrUnsupportedShape))
}

func (i *csvIn) Map(dest *map[string]any) {
	v, err := i.Object()
	if err != nil {
		return
	}
	m, ok := v.(map[string]any)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want map", ErrTypeMismatch, v))
		return
	}
	*dest = m
}

func (i *csvIn) Sequence(dest *[]any) {
	v, err := i.Object()
	if err != nil {
		return
	}
	seq, ok := v.([]any)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want sequence", ErrTypeMismatch, v))
		return
	}
	*dest = seq
}

func (i *csvIn) TypedMarshallable() (any, error) {
	err := fmt.Errorf("%w: typed value in tabular form", ErrUnsupportedShape)
	i.setErr(err)
	return nil, err
}

func (i *csvIn) Marshallable(Unmarshaler) {
	i.setErr(fmt.Errorf("%w: marshalled value in tabular form", ErrUnsupportedShape))
}

// Object reads by shape: a staged event cell re-types to a scalar; a lone
// single-cell record is a scalar; a `key,value` header is a mapping; any
// other multi-row table is a sequence of mappings; a lone multi-cell
// record is a sequence of scalars.
func (i *csvIn) Object() (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	if len(i.pending) > 0 {
		cell := i.pending[0]
		i.pending = i.pending[1:]
		return retypeCell(cell), nil
	}
	if err := i.ensureParsed(); err != nil {
		i.setErr(err)
		return nil, err
	}
	rest := i.records[i.next:]
	i.next = len(i.records)
	switch {
	case len(rest) == 0:
		err := fmt.Errorf("%w: no records", ErrSyntax)
		i.setErr(err)
		return nil, err
	case len(rest) == 1 && len(rest[0]) == 1:
		return retypeCell(rest[0][0]), nil
	case len(rest) == 1:
		seq := make([]any, len(rest[0]))
		for n, cell := range rest[0] {
			seq[n] = retypeCell(cell)
		}
		return seq, nil
	case len(rest[0]) == 2 && rest[0][0] == "key" && rest[0][1] == "value":
		m := make(map[string]any, len(rest)-1)
		for _, rec := range rest[1:] {
			if len(rec) != 2 {
				err := fmt.Errorf("%w: ragged key,value row", ErrSyntax)
				i.setErr(err)
				return nil, err
			}
			m[rec[0]] = retypeCell(rec[1])
		}
		return m, nil
	default:
		header := rest[0]
		seq := make([]any, 0, len(rest)-1)
		for _, rec := range rest[1:] {
			m := make(map[string]any, len(header))
			for n, k := range header {
				if n < len(rec) && rec[n] != "" {
					m[k] = retypeCell(rec[n])
				}
			}
			seq = append(seq, any(m))
		}
		return seq, nil
	}
}

// retypeCell assigns a cell its natural type: int64, then float64, then
// bool, then string.
func retypeCell(cell string) any {
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(cell); err == nil {
		return v
	}
	return cell
}
