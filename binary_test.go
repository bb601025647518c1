package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

type BinarySuite struct {
	suite.Suite
	buf *bytestore.Buffer
	w   *BinaryWire
}

func (s *BinarySuite) SetupTest() {
	s.buf = bytestore.New()
	s.w = NewBinaryWire(s.buf)
}

func (s *BinarySuite) TestTokenLayout() {
	cases := []struct {
		name  string
		write func(out ValueOut)
		want  []byte
	}{
		{"Nil", func(o ValueOut) { o.Nil() }, []byte{0xA0}},
		{"False", func(o ValueOut) { o.Bool(false) }, []byte{0xA1}},
		{"True", func(o ValueOut) { o.Bool(true) }, []byte{0xA2}},
		{"Int64", func(o ValueOut) { o.Int64(1) }, []byte{0xA3, 1, 0, 0, 0, 0, 0, 0, 0}},
		{"Text", func(o ValueOut) { o.Text("hi") }, []byte{0xA5, 2, 'h', 'i'}},
		{"Bytes", func(o ValueOut) { o.Bytes([]byte{9}) }, []byte{0xA6, 1, 9}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			b := bytestore.New()
			w := NewBinaryWire(b)
			tc.write(w.ValueOut())
			s.Require().NoError(w.ValueOut().Err())
			s.Assert().Equal(tc.want, b.Bytes())
		})
	}
}

func (s *BinarySuite) TestScalarRoundTrip() {
	out := s.w.ValueOut()
	out.Bool(true)
	out.Int64(-77)
	out.Float64(3.25)
	out.Text("text value")
	out.Bytes([]byte{0, 1, 2})
	out.Nil()
	s.Require().NoError(out.Err())

	in := s.w.ValueIn()
	var b bool
	in.Bool(&b)
	s.Assert().True(b)

	var i int64
	in.Int64(&i)
	s.Assert().EqualValues(-77, i)

	var f float64
	in.Float64(&f)
	s.Assert().Equal(3.25, f)

	var str string
	in.Text(&str)
	s.Assert().Equal("text value", str)

	var p []byte
	in.Bytes(&p)
	s.Assert().Equal([]byte{0, 1, 2}, p)

	v, err := in.Object()
	s.Require().NoError(err)
	s.Assert().Nil(v)

	s.Require().NoError(in.Err())
	s.Assert().False(s.w.HasMore())
}

func (s *BinarySuite) TestFieldNames() {
	s.w.Write("x").Int64(1)
	s.w.Write("y").Int64(2)

	var name string
	var v int64
	s.w.Read(&name).Int64(&v)
	s.Assert().Equal("x", name)
	s.Assert().EqualValues(1, v)

	s.w.Read(&name).Int64(&v)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal("y", name)
	s.Assert().EqualValues(2, v)
}

func (s *BinarySuite) TestMapAndSequenceRoundTrip() {
	inMap := map[string]any{"a": int64(1), "b": "two", "c": []any{true, nil}}
	s.w.ValueOut().Map(inMap)
	s.Require().NoError(s.w.ValueOut().Err())

	var outMap map[string]any
	s.w.ValueIn().Map(&outMap)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(inMap, outMap)
}

func (s *BinarySuite) TestTypedRoundTrip() {
	in := &testTrade{Symbol: "ACME", Price: 99.5, Size: 300}
	s.w.ValueOut().TypedMarshallable(in)
	s.Require().NoError(s.w.ValueOut().Err())

	got, err := s.w.ValueIn().TypedMarshallable()
	s.Require().NoError(err)
	s.Assert().Equal(in, got)
	s.Assert().False(s.w.HasMore(), "the length framing must consume the whole token")
}

func (s *BinarySuite) TestNestedMarshallable() {
	in := &testHolder{P: testPoint{X: 5, Y: -5}}
	s.w.ValueOut().TypedMarshallable(in)
	s.Require().NoError(s.w.ValueOut().Err())

	got, err := s.w.ValueIn().TypedMarshallable()
	s.Require().NoError(err)
	s.Assert().Equal(in, got)
}

func (s *BinarySuite) TestAnonymousMarshallable() {
	in := &testPoint{X: 3, Y: 4}
	s.w.ValueOut().Marshallable(in)
	s.Require().NoError(s.w.ValueOut().Err())

	var out testPoint
	s.w.ValueIn().Marshallable(&out)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(*in, out)
}

func (s *BinarySuite) TestAnonymousBodyDecodesGenerically() {
	s.w.ValueOut().Marshallable(&testPoint{X: 3, Y: 4})
	s.Require().NoError(s.w.ValueOut().Err())

	// Without a type name the generic reader recovers the fields as a map.
	v, err := s.w.ValueIn().Object()
	s.Require().NoError(err)
	s.Assert().Equal(map[string]any{"x": int64(3), "y": int64(4)}, v)
}

func (s *BinarySuite) TestTypedReadRequiresName() {
	s.w.ValueOut().Marshallable(&testPoint{X: 1, Y: 2})
	_, err := s.w.ValueIn().TypedMarshallable()
	s.Assert().ErrorIs(err, ErrNotTyped)
}

func (s *BinarySuite) TestUnknownTypeOnDecode() {
	s.buf.WriteUint8(binTyped)
	s.buf.WriteUvarint(5)
	s.buf.WriteString("Ghost")
	s.buf.WriteUint32(0)

	_, err := s.w.ValueIn().Object()
	s.Assert().ErrorIs(err, ErrUnknownType)
}

func (s *BinarySuite) TestUnregisteredTypedWriteFails() {
	out := s.w.ValueOut()
	out.TypedMarshallable(&unregisteredPair{A: 1, B: 2})
	s.Assert().ErrorIs(out.Err(), ErrUnknownType)
	s.Assert().Zero(s.buf.Len())
}

func (s *BinarySuite) TestInvalidTag() {
	w := NewBinaryWire(bytestore.Wrap([]byte{0x55}))
	_, err := w.ValueIn().Object()
	s.Assert().ErrorIs(err, ErrInvalidTag)
}

func (s *BinarySuite) TestCorruptCountsRejected() {
	// A uvarint count of 2^56-1 with no payload behind it must latch a
	// syntax error before any allocation sized by it.
	huge := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x7F}

	s.Run("HugeSequenceCount", func() {
		w := NewBinaryWire(bytestore.Wrap(append([]byte{binSequence}, huge...)))
		var seq []any
		w.ValueIn().Sequence(&seq)
		s.Assert().ErrorIs(w.ValueIn().Err(), ErrSyntax)
		s.Assert().Nil(seq)
	})

	s.Run("HugeMapCount", func() {
		w := NewBinaryWire(bytestore.Wrap(append([]byte{binMap}, huge...)))
		var m map[string]any
		w.ValueIn().Map(&m)
		s.Assert().ErrorIs(w.ValueIn().Err(), ErrSyntax)
		s.Assert().Nil(m)
	})

	s.Run("HugeCountInsideObject", func() {
		w := NewBinaryWire(bytestore.Wrap(append([]byte{binSequence}, huge...)))
		_, err := w.ValueIn().Object()
		s.Assert().ErrorIs(err, ErrSyntax)
	})

	s.Run("CountPastRemainingBytes", func() {
		w := NewBinaryWire(bytestore.Wrap([]byte{binSequence, 16, binTrue, binTrue}))
		var seq []any
		w.ValueIn().Sequence(&seq)
		s.Assert().ErrorIs(w.ValueIn().Err(), ErrSyntax)
	})
}

func (s *BinarySuite) TestTypeMismatch() {
	s.w.ValueOut().Text("not a number")
	var v int64
	in := s.w.ValueIn()
	in.Int64(&v)
	s.Assert().ErrorIs(in.Err(), ErrTypeMismatch)
	s.Assert().Zero(v)
}

func (s *BinarySuite) TestFloatAcceptsIntegerToken() {
	s.w.ValueOut().Int64(42)
	var f float64
	s.w.ValueIn().Float64(&f)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal(42.0, f)
}

func TestBinary(t *testing.T) {
	suite.Run(t, new(BinarySuite))
}

// --- Fieldless variant ---

func TestFieldlessBinary(t *testing.T) {
	t.Run("ElidesFieldNames", func(t *testing.T) {
		named := bytestore.New()
		NewBinaryWire(named).ValueOut().TypedMarshallable(&testPoint{X: 1, Y: 2})

		fieldless := bytestore.New()
		NewFieldlessBinaryWire(fieldless).ValueOut().TypedMarshallable(&testPoint{X: 1, Y: 2})

		if fieldless.Len() >= named.Len() {
			t.Fatalf("fieldless stream (%d bytes) not shorter than named (%d bytes)", fieldless.Len(), named.Len())
		}
	})

	t.Run("PositionalRoundTrip", func(t *testing.T) {
		buf := bytestore.New()
		w := NewFieldlessBinaryWire(buf)
		in := &testTrade{Symbol: "Z", Price: 0.5, Size: 1}
		w.ValueOut().TypedMarshallable(in)

		got, err := w.ValueIn().TypedMarshallable()
		if err != nil {
			t.Fatal(err)
		}
		if *got.(*testTrade) != *in {
			t.Fatalf("round trip: have %+v, want %+v", got, in)
		}
	})

	t.Run("EventNamesStillTravel", func(t *testing.T) {
		buf := bytestore.New()
		w := NewFieldlessBinaryWire(buf)
		w.WriteEventName("tick").Int64(7)

		var name string
		var v int64
		w.ReadEventName(&name).Int64(&v)
		if err := w.ValueIn().Err(); err != nil {
			t.Fatal(err)
		}
		if name != "tick" || v != 7 {
			t.Fatalf("have %q=%d, want tick=7", name, v)
		}
	})

	t.Run("AnonymousBodyDecodesAsSequence", func(t *testing.T) {
		buf := bytestore.New()
		w := NewFieldlessBinaryWire(buf)
		w.ValueOut().Marshallable(&testPoint{X: 3, Y: 4})

		v, err := w.ValueIn().Object()
		if err != nil {
			t.Fatal(err)
		}
		seq, ok := v.([]any)
		if !ok || len(seq) != 2 || seq[0] != int64(3) || seq[1] != int64(4) {
			t.Fatalf("have %#v, want [3 4]", v)
		}
	})
}

// --- Compressed variant ---

func TestCompressedBinary(t *testing.T) {
	big := strings.Repeat("0123456789abcdef", 64) // 1 KiB, well over the threshold

	t.Run("LargePayloadCompressed", func(t *testing.T) {
		buf := bytestore.New()
		w := NewCompressedBinaryWire(buf)
		w.ValueOut().Text(big)
		if err := w.ValueOut().Err(); err != nil {
			t.Fatal(err)
		}
		if buf.Bytes()[0] != binZText {
			t.Fatalf("first byte %#x, want compressed text tag %#x", buf.Bytes()[0], binZText)
		}
		if buf.Len() >= int64(len(big)) {
			t.Fatalf("compressed stream (%d bytes) not smaller than payload (%d bytes)", buf.Len(), len(big))
		}
	})

	t.Run("SmallPayloadStaysPlain", func(t *testing.T) {
		buf := bytestore.New()
		w := NewCompressedBinaryWire(buf)
		w.ValueOut().Text("small")
		if buf.Bytes()[0] != binText {
			t.Fatalf("first byte %#x, want plain text tag %#x", buf.Bytes()[0], binText)
		}
	})

	t.Run("ReadableByPlainReader", func(t *testing.T) {
		buf := bytestore.New()
		NewCompressedBinaryWire(buf).ValueOut().Bytes([]byte(big))

		var p []byte
		r := NewBinaryWire(buf)
		r.ValueIn().Bytes(&p)
		if err := r.ValueIn().Err(); err != nil {
			t.Fatal(err)
		}
		if string(p) != big {
			t.Fatal("compressed payload did not round trip through a plain reader")
		}
	})
}
