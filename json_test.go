package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

type JSONSuite struct {
	suite.Suite
	buf *bytestore.Buffer
	w   *JSONWire
}

func (s *JSONSuite) SetupTest() {
	s.buf = bytestore.New()
	s.w = NewJSONWire(s.buf)
}

func (s *JSONSuite) TestRendering() {
	s.w.ValueOut().Map(map[string]any{"a": int64(1), "b": "two"})
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal(`{ "a": 1, "b": "two" }`, s.buf.String())
}

func (s *JSONSuite) TestCompactRendering() {
	s.w.ValueOut().Compact(true)
	s.w.ValueOut().Map(map[string]any{"a": int64(1), "b": []any{true, nil}})
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal(`{"a":1,"b":[true,null]}`, s.buf.String())
}

func (s *JSONSuite) TestStringsAlwaysQuoted() {
	s.w.ValueOut().Text("free")
	s.Assert().Equal(`"free"`, s.buf.String())
}

func (s *JSONSuite) TestOutputIsValidJSON() {
	s.w.ValueOut().Map(map[string]any{
		"n":    nil,
		"ok":   true,
		"text": "with \"quotes\" and\nnewline",
		"nums": []any{int64(1), 2.5},
	})
	s.Require().NoError(s.w.ValueOut().Err())

	var decoded map[string]any
	s.Require().NoError(json.Unmarshal([]byte(s.buf.String()), &decoded))
	s.Assert().Equal("with \"quotes\" and\nnewline", decoded["text"])
}

func (s *JSONSuite) TestReadsPlainJSON() {
	input := `{"temp": 21.5, "on": true, "tags": ["a", "b"], "n": null}`
	w := NewJSONWire(bytestore.Wrap([]byte(input)))

	var m map[string]any
	w.ValueIn().Map(&m)
	s.Require().NoError(w.ValueIn().Err())
	s.Assert().Equal(map[string]any{
		"temp": 21.5,
		"on":   true,
		"tags": []any{"a", "b"},
		"n":    nil,
	}, m)
}

func (s *JSONSuite) TestTypedEscape() {
	in := &testPoint{X: 1, Y: 2}
	s.w.ValueOut().TypedMarshallable(in)
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal(`{ "@Point": { "x": 1, "y": 2 } }`, s.buf.String())

	got, err := s.w.ValueIn().TypedMarshallable()
	s.Require().NoError(err)
	s.Assert().Equal(in, got)
}

func (s *JSONSuite) TestBinaryEscape() {
	s.w.ValueOut().Bytes([]byte("hi"))
	s.Require().NoError(s.w.ValueOut().Err())
	s.Assert().Equal(`{ "@!binary": "aGk=" }`, s.buf.String())

	var p []byte
	s.w.ValueIn().Bytes(&p)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal([]byte("hi"), p)
}

func (s *JSONSuite) TestNullScalar() {
	s.w.ValueOut().Nil()
	s.Assert().Equal("null", s.buf.String())

	v, err := s.w.ValueIn().Object()
	s.Require().NoError(err)
	s.Assert().Nil(v)
}

func (s *JSONSuite) TestEventRoundTrip() {
	in := &testTrade{Symbol: "X", Price: 1.25, Size: 9}
	s.w.WriteEventName("trade").TypedMarshallable(in)
	s.w.WriteEventName("count").Int64(2)
	s.Require().NoError(s.w.ValueOut().Err())

	var name string
	got, err := s.w.ReadEventName(&name).TypedMarshallable()
	s.Require().NoError(err)
	s.Assert().Equal("trade", name)
	s.Assert().Equal(in, got)

	var count int64
	s.w.ReadEventName(&name).Int64(&count)
	s.Require().NoError(s.w.ValueIn().Err())
	s.Assert().Equal("count", name)
	s.Assert().EqualValues(2, count)
}

func TestJSON(t *testing.T) {
	suite.Run(t, new(JSONSuite))
}
