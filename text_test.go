package wire

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

type TextSuite struct {
	suite.Suite
	buf *bytestore.Buffer
	w   *TextWire
}

func (s *TextSuite) SetupTest() {
	s.buf = bytestore.New()
	s.w = NewTextWire(s.buf)
}

func (s *TextSuite) TestEventRendering() {
	s.w.WriteEventName("height").Float64(1.85)
	s.w.WriteEventName("name").Text("Joe Bloggs")

	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal("height: 1.85\nname: \"Joe Bloggs\"", s.buf.String())
}

func (s *TextSuite) TestEventRoundTrip() {
	s.w.WriteEventName("b").Bool(true)
	s.w.WriteEventName("i").Int64(-42)
	s.w.WriteEventName("f").Float64(2.5)
	s.w.WriteEventName("s").Text("hello world")
	s.w.WriteEventName("n").Nil()
	s.w.WriteEventName("p").Bytes([]byte{1, 2, 3})
	s.Require().NoError(s.w.ValueOut().Err())

	var name string
	var b bool
	s.w.ReadEventName(&name).Bool(&b)
	s.Assert().Equal("b", name)
	s.Assert().True(b)

	var i int64
	s.w.ReadEventName(&name).Int64(&i)
	s.Assert().Equal("i", name)
	s.Assert().EqualValues(-42, i)

	var f float64
	s.w.ReadEventName(&name).Float64(&f)
	s.Assert().Equal("f", name)
	s.Assert().Equal(2.5, f)

	var str string
	s.w.ReadEventName(&name).Text(&str)
	s.Assert().Equal("s", name)
	s.Assert().Equal("hello world", str)

	v, err := s.w.ReadEventName(&name).Object()
	s.Require().NoError(err)
	s.Assert().Equal("n", name)
	s.Assert().Nil(v)

	var p []byte
	s.w.ReadEventName(&name).Bytes(&p)
	s.Assert().Equal("p", name)
	s.Assert().Equal([]byte{1, 2, 3}, p)

	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().False(s.w.HasMore())
}

func (s *TextSuite) TestQuotedEventName() {
	s.w.WriteEventName("two words").Int64(5)
	s.Assert().Equal("\"two words\": 5", s.buf.String())

	var name string
	var v int64
	s.w.ReadEventName(&name).Int64(&v)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal("two words", name)
	s.Assert().EqualValues(5, v)
}

func (s *TextSuite) TestFloatReadsIntegerToken() {
	s.w.WriteEventName("size").Int64(5)

	var name string
	var f float64
	s.w.ReadEventName(&name).Float64(&f)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(5.0, f)
}

func (s *TextSuite) TestMapRoundTrip() {
	in := map[string]any{
		"name":  "Ada",
		"count": int64(3),
		"inner": map[string]any{"on": true},
	}
	s.w.ValueOut().Map(in)
	s.Require().NoError(s.w.ValueOut().Err())

	var out map[string]any
	s.w.ValueIn().Map(&out)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(in, out)
}

func (s *TextSuite) TestSequenceRoundTrip() {
	in := []any{int64(1), "two", 3.5, true, nil}
	s.w.ValueOut().Sequence(in)
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal(`[ 1, two, 3.5, true, !!null "" ]`, s.buf.String())

	var out []any
	s.w.ValueIn().Sequence(&out)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(in, out)
}

func (s *TextSuite) TestTypedRoundTrip() {
	in := &testTrade{Symbol: "ACME", Price: 99.5, Size: 300}
	s.w.ValueOut().TypedMarshallable(in)
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal("!Trade { symbol: ACME, price: 99.5, size: 300 }", s.buf.String())

	got, err := s.w.ValueIn().TypedMarshallable()
	s.Require().NoError(err)
	s.Assert().Equal(in, got)
}

func (s *TextSuite) TestNestedMarshallable() {
	in := &testHolder{P: testPoint{X: 1, Y: 2}}
	s.w.ValueOut().TypedMarshallable(in)
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal("!Holder { p: { x: 1, y: 2 } }", s.buf.String())

	got, err := s.w.ValueIn().TypedMarshallable()
	s.Require().NoError(err)
	s.Assert().Equal(in, got)
}

func (s *TextSuite) TestCompactRendering() {
	s.w.ValueOut().Compact(true)
	s.w.WriteEventName("a").Int64(1)
	s.w.WriteEventName("b").Map(map[string]any{"x": int64(2), "y": int64(3)})
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal("a:1,b:{x:2,y:3}", s.buf.String())

	// The reader treats commas as padding, so compact output reads back
	// the same as the spread form.
	var name string
	var a int64
	s.w.ReadEventName(&name).Int64(&a)
	s.Assert().EqualValues(1, a)

	var m map[string]any
	s.w.ReadEventName(&name).Map(&m)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(map[string]any{"x": int64(2), "y": int64(3)}, m)
}

func (s *TextSuite) TestLenientSeparators() {
	for _, input := range []string{
		"{ a: 1, b: 2 }",
		"{a:1 b:2}",
		"{ a: 1,,\n  b: 2 }",
	} {
		w := NewTextWire(bytestore.Wrap([]byte(input)))
		var m map[string]any
		w.ValueIn().Map(&m)
		s.Require().NoError(w.ValueIn().Err(), "input %q", input)
		s.Assert().Equal(map[string]any{"a": int64(1), "b": int64(2)}, m, "input %q", input)
	}
}

func (s *TextSuite) TestUnknownTypeName() {
	w := NewTextWire(bytestore.Wrap([]byte("!Ghost { x: 1 }")))
	_, err := w.ValueIn().Object()
	s.Assert().ErrorIs(err, ErrUnknownType)
}

func (s *TextSuite) TestUnknownDoubleTag() {
	w := NewTextWire(bytestore.Wrap([]byte(`!!weird ""`)))
	_, err := w.ValueIn().Object()
	s.Assert().ErrorIs(err, ErrSyntax)
}

func (s *TextSuite) TestReadErrorLatches() {
	w := NewTextWire(bytestore.Wrap([]byte("flag: true")))

	var name string
	var v int64
	in := w.ReadEventName(&name)
	in.Int64(&v)
	s.Require().ErrorIs(in.Err(), ErrTypeMismatch)

	// Later reads are no-ops and the first error sticks.
	firstErr := in.Err()
	var str string
	in.Text(&str)
	s.Assert().Empty(str)
	s.Assert().Equal(firstErr, in.Err())
}

func (s *TextSuite) TestWriteAfterErrorIsNoOp() {
	out := s.w.ValueOut()
	out.TypedMarshallable(&unregisteredPair{A: 1, B: 2})
	s.Require().ErrorIs(out.Err(), ErrUnknownType)

	before := s.buf.Len()
	out.Int64(7)
	s.Assert().Equal(before, s.buf.Len(), "writes after the latched error must not advance the store")
}

func TestText(t *testing.T) {
	suite.Run(t, new(TextSuite))
}
