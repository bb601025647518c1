package wire

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

// TextWire reads and writes the structured text form: `name: value` events,
// flow-style `{ }` mappings, `[ ]` sequences, `!Name { }` typed values,
// `!!null ""` and `!!binary "<base64>"` for the shapes text cannot carry
// natively. Strings are bare where unambiguous, double-quoted otherwise.
//
// The same engine drives the JSON dialect; JSONWire flips the dialect flag.
type TextWire struct {
	buf     *bytestore.Buffer
	lex     lexer
	self    Wire
	json    bool
	compact bool

	// Write-side nesting: one entry per open container, true once an item
	// was written at that level. pending marks a just-written field name
	// whose value must follow without a separator.
	stack   []bool
	pending bool

	out textOut
	in  textIn
}

var _ Wire = (*TextWire)(nil)

// NewTextWire binds a text wire to a byte store.
func NewTextWire(b *bytestore.Buffer) *TextWire {
	w := &TextWire{}
	w.init(w, b, false)
	return w
}

func (w *TextWire) init(self Wire, b *bytestore.Buffer, json bool) {
	if b == nil {
		panic("wire: text wire needs a byte store")
	}
	w.buf = b
	w.lex.buf = b
	w.self = self
	w.json = json
	w.stack = []bool{b.Len() > 0}
	w.out.w = w
	w.in.w = w
}

// Bytes returns the underlying byte store.
func (w *TextWire) Bytes() *bytestore.Buffer { return w.buf }

// ValueOut returns the write cursor.
func (w *TextWire) ValueOut() ValueOut { return &w.out }

// ValueIn returns the read cursor.
func (w *TextWire) ValueIn() ValueIn { return &w.in }

// Write starts a named field.
func (w *TextWire) Write(name string) ValueOut {
	if w.out.err == nil {
		w.writeName(name)
	}
	return &w.out
}

// WriteEventName starts a named top-level event. In the text form events
// and fields render identically.
func (w *TextWire) WriteEventName(name string) ValueOut { return w.Write(name) }

// Read consumes `name:` into dest and returns the value cursor.
func (w *TextWire) Read(dest *string) ValueIn {
	if w.in.err != nil {
		return &w.in
	}
	tok, err := w.lex.next()
	if err != nil {
		w.in.err = err
		return &w.in
	}
	if tok.kind != tkString && tok.kind != tkBare {
		w.in.err = fmt.Errorf("%w: expected a name", ErrSyntax)
		return &w.in
	}
	if err := w.lex.expectPunct(':'); err != nil {
		w.in.err = err
		return &w.in
	}
	if dest != nil {
		*dest = tok.text
	}
	return &w.in
}

// ReadEventName consumes the next event's name.
func (w *TextWire) ReadEventName(dest *string) ValueIn { return w.Read(dest) }

// HasMore reports whether another value follows at the current nesting
// level: false at end of input and at a closing bracket.
func (w *TextWire) HasMore() bool {
	c := w.lex.peekByte()
	return c != 0 && c != '}' && c != ']'
}

// --- Write side ---

func (w *TextWire) depth() int { return len(w.stack) - 1 }

// beginItem emits whatever separates the new item from its predecessor at
// the current level. A pending field name counts as the item's start, so
// the value after it separates nothing.
func (w *TextWire) beginItem() {
	if w.pending {
		w.pending = false
		return
	}
	top := len(w.stack) - 1
	if w.stack[top] {
		w.buf.WriteString(w.itemSep())
		return
	}
	w.stack[top] = true
	if top > 0 && !w.compact {
		w.buf.WriteString(" ")
	}
}

func (w *TextWire) itemSep() string {
	if w.compact {
		return ","
	}
	if w.depth() == 0 {
		if w.json {
			return ", "
		}
		return "\n"
	}
	return ", "
}

func (w *TextWire) openContainer(ch byte) {
	w.buf.WriteUint8(ch)
	w.stack = append(w.stack, false)
}

func (w *TextWire) closeContainer(ch byte) {
	top := len(w.stack) - 1
	if w.stack[top] && !w.compact {
		w.buf.WriteString(" ")
	}
	w.stack = w.stack[:top]
	w.buf.WriteUint8(ch)
}

func (w *TextWire) writeName(name string) {
	w.beginItem()
	var sb strings.Builder
	if w.json || !bareSafe(name) {
		quoteText(&sb, name)
	} else {
		sb.WriteString(name)
	}
	sb.WriteByte(':')
	if !w.compact {
		sb.WriteByte(' ')
	}
	w.buf.WriteString(sb.String())
	w.pending = true
}

// textOut is the text-family write cursor. Methods latch the first error
// and no-op after it.
type textOut struct {
	w   *TextWire
	err error
}

var _ ValueOut = (*textOut)(nil)

func (o *textOut) Err() error { return o.err }

func (o *textOut) setErr(err error) {
	if o.err == nil && err != nil {
		o.err = err
	}
}

func (o *textOut) Compact(on bool) { o.w.compact = on }

func (o *textOut) Nil() {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	if o.w.json {
		o.w.buf.WriteString("null")
	} else {
		o.w.buf.WriteString(`!!null ""`)
	}
}

func (o *textOut) Bool(v bool) {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	o.w.buf.WriteString(strconv.FormatBool(v))
}

func (o *textOut) Int64(v int64) {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	o.w.buf.WriteString(strconv.FormatInt(v, 10))
}

// Float64 always renders a mark of floatness (a point or an exponent) so
// the reader re-types integers and floats faithfully.
func (o *textOut) Float64(v float64) {
	if o.err != nil {
		return
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(v, 0) && !math.IsNaN(v) {
		s += ".0"
	}
	o.w.beginItem()
	o.w.buf.WriteString(s)
}

func (o *textOut) Text(s string) {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	if !o.w.json && bareSafe(s) {
		o.w.buf.WriteString(s)
		return
	}
	var sb strings.Builder
	quoteText(&sb, s)
	o.w.buf.WriteString(sb.String())
}

func (o *textOut) Bytes(p []byte) {
	if o.err != nil {
		return
	}
	b64 := base64.StdEncoding.EncodeToString(p)
	o.w.beginItem()
	if o.w.json {
		o.w.openContainer('{')
		o.w.writeName("@!binary")
		o.Text(b64)
		o.w.closeContainer('}')
		return
	}
	var sb strings.Builder
	sb.WriteString("!!binary ")
	quoteText(&sb, b64)
	o.w.buf.WriteString(sb.String())
}

// Map writes m as a flow-style mapping. Keys are sorted so the rendering
// is deterministic.
func (o *textOut) Map(m map[string]any) {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	o.w.openContainer('{')
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.w.writeName(k)
		o.Object(m[k])
	}
	o.w.closeContainer('}')
}

func (o *textOut) Sequence(seq []any) {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	o.w.openContainer('[')
	for _, v := range seq {
		o.Object(v)
	}
	o.w.closeContainer(']')
}

func (o *textOut) TypedMarshallable(v Marshaler) {
	if o.err != nil {
		return
	}
	name, ok := TypeNameOf(v)
	if !ok {
		o.setErr(fmt.Errorf("%w: %T", ErrUnknownType, v))
		return
	}
	o.w.beginItem()
	if o.w.json {
		o.w.openContainer('{')
		o.w.writeName("@" + name)
		o.w.beginItem()
		o.w.openContainer('{')
		o.setErr(v.MarshalWire(o.w.self))
		o.w.closeContainer('}')
		o.w.closeContainer('}')
		return
	}
	o.w.buf.WriteString("!" + name)
	if !o.w.compact {
		o.w.buf.WriteString(" ")
	}
	o.w.openContainer('{')
	o.setErr(v.MarshalWire(o.w.self))
	o.w.closeContainer('}')
}

func (o *textOut) Marshallable(v Marshaler) {
	if o.err != nil {
		return
	}
	o.w.beginItem()
	o.w.openContainer('{')
	o.setErr(v.MarshalWire(o.w.self))
	o.w.closeContainer('}')
}

func (o *textOut) Object(v any) { writeObject(o, v) }

// --- Read side ---

// textIn is the text-family read cursor.
type textIn struct {
	w   *TextWire
	err error
}

var _ ValueIn = (*textIn)(nil)

func (i *textIn) Err() error { return i.err }

func (i *textIn) setErr(err error) {
	if i.err == nil && err != nil {
		i.err = err
	}
}

func (i *textIn) value() (any, bool) {
	if i.err != nil {
		return nil, false
	}
	v, err := i.w.parseValue()
	if err != nil {
		i.setErr(err)
		return nil, false
	}
	return v, true
}

func (i *textIn) Bool(dest *bool) {
	v, ok := i.value()
	if !ok {
		return
	}
	b, ok := v.(bool)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want bool", ErrTypeMismatch, v))
		return
	}
	*dest = b
}

func (i *textIn) Int64(dest *int64) {
	v, ok := i.value()
	if !ok {
		return
	}
	n, ok := v.(int64)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want int64", ErrTypeMismatch, v))
		return
	}
	*dest = n
}

// Float64 accepts an integer token as well; a field written as 5 reads
// back as 5.0.
func (i *textIn) Float64(dest *float64) {
	v, ok := i.value()
	if !ok {
		return
	}
	switch t := v.(type) {
	case float64:
		*dest = t
	case int64:
		*dest = float64(t)
	default:
		i.setErr(fmt.Errorf("%w: have %T, want float64", ErrTypeMismatch, v))
	}
}

func (i *textIn) Text(dest *string) {
	v, ok := i.value()
	if !ok {
		return
	}
	s, ok := v.(string)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want string", ErrTypeMismatch, v))
		return
	}
	*dest = s
}

func (i *textIn) Bytes(dest *[]byte) {
	v, ok := i.value()
	if !ok {
		return
	}
	p, ok := v.([]byte)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want []byte", ErrTypeMismatch, v))
		return
	}
	*dest = p
}

func (i *textIn) Map(dest *map[string]any) {
	v, ok := i.value()
	if !ok {
		return
	}
	m, ok := v.(map[string]any)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want map", ErrTypeMismatch, v))
		return
	}
	*dest = m
}

func (i *textIn) Sequence(dest *[]any) {
	v, ok := i.value()
	if !ok {
		return
	}
	seq, ok := v.([]any)
	if !ok {
		i.setErr(fmt.Errorf("%w: have %T, want sequence", ErrTypeMismatch, v))
		return
	}
	*dest = seq
}

func (i *textIn) TypedMarshallable() (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	v, err := i.w.parseValue()
	if err != nil {
		i.setErr(err)
		return nil, err
	}
	if _, ok := v.(Marshallable); !ok {
		err := fmt.Errorf("%w: have %T", ErrNotTyped, v)
		i.setErr(err)
		return nil, err
	}
	return v, nil
}

func (i *textIn) Marshallable(dest Unmarshaler) {
	if i.err != nil {
		return
	}
	if err := i.w.lex.expectPunct('{'); err != nil {
		i.setErr(err)
		return
	}
	if err := dest.UnmarshalWire(i.w.self); err != nil {
		i.setErr(err)
		return
	}
	i.setErr(i.w.lex.expectPunct('}'))
}

func (i *textIn) Object() (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	v, err := i.w.parseValue()
	i.setErr(err)
	return v, err
}

// --- Parser ---

func (w *TextWire) parseValue() (any, error) {
	tok, err := w.lex.next()
	if err != nil {
		return nil, err
	}
	switch tok.kind {
	case tkEOF:
		return nil, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	case tkPunct:
		switch tok.ch {
		case '{':
			return w.parseMapBody()
		case '[':
			return w.parseSeqBody()
		}
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, tok.ch)
	case tkString:
		return tok.text, nil
	case tkBare:
		return classifyBare(tok.text), nil
	case tkNullTag:
		// The writer follows the tag with an empty quoted string.
		if w.lex.peekByte() == '"' {
			if _, err := w.lex.readQuoted(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case tkBinaryTag:
		btok, err := w.lex.next()
		if err != nil {
			return nil, err
		}
		if btok.kind != tkString && btok.kind != tkBare {
			return nil, fmt.Errorf("%w: expected base64 after !!binary", ErrSyntax)
		}
		p, err := base64.StdEncoding.DecodeString(btok.text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return p, nil
	case tkTag:
		return w.parseTypedBody(tok.text)
	}
	return nil, fmt.Errorf("%w: unexpected token", ErrSyntax)
}

// classifyBare types a bare token: keyword, integer, float, or string.
func classifyBare(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func (w *TextWire) parseTypedBody(name string) (any, error) {
	v, ok := NewRegistered(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	if err := w.lex.expectPunct('{'); err != nil {
		return nil, err
	}
	if err := v.UnmarshalWire(w.self); err != nil {
		return nil, err
	}
	if err := w.lex.expectPunct('}'); err != nil {
		return nil, err
	}
	return v, nil
}

// parseMapBody parses the entries after a consumed '{'. In the JSON
// dialect a single key starting with '@' marks the typed and binary
// escapes rather than a plain mapping.
func (w *TextWire) parseMapBody() (any, error) {
	if w.lex.peekByte() == '}' {
		_, _ = w.lex.next()
		return map[string]any{}, nil
	}
	first, err := w.lex.next()
	if err != nil {
		return nil, err
	}
	if first.kind != tkString && first.kind != tkBare {
		return nil, fmt.Errorf("%w: expected map key", ErrSyntax)
	}
	if w.json && strings.HasPrefix(first.text, "@") {
		return w.parseJSONEscape(first.text)
	}
	m := map[string]any{}
	key := first.text
	for {
		if err := w.lex.expectPunct(':'); err != nil {
			return nil, err
		}
		v, err := w.parseValue()
		if err != nil {
			return nil, err
		}
		m[key] = v
		if w.lex.peekByte() == '}' {
			_, _ = w.lex.next()
			return m, nil
		}
		tok, err := w.lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind != tkString && tok.kind != tkBare {
			return nil, fmt.Errorf("%w: expected map key", ErrSyntax)
		}
		key = tok.text
	}
}

func (w *TextWire) parseJSONEscape(key string) (any, error) {
	if err := w.lex.expectPunct(':'); err != nil {
		return nil, err
	}
	if key == "@!binary" {
		tok, err := w.lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind != tkString {
			return nil, fmt.Errorf("%w: expected base64 string", ErrSyntax)
		}
		p, err := base64.StdEncoding.DecodeString(tok.text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		if err := w.lex.expectPunct('}'); err != nil {
			return nil, err
		}
		return p, nil
	}
	v, err := w.parseTypedBody(key[1:])
	if err != nil {
		return nil, err
	}
	if err := w.lex.expectPunct('}'); err != nil {
		return nil, err
	}
	return v, nil
}

func (w *TextWire) parseSeqBody() (any, error) {
	seq := []any{}
	for {
		switch w.lex.peekByte() {
		case ']':
			_, _ = w.lex.next()
			return seq, nil
		case 0:
			return nil, fmt.Errorf("%w: unterminated sequence", ErrSyntax)
		}
		v, err := w.parseValue()
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
}
