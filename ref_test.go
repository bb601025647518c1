package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/scottkidder/Chronicle-Wire/bytestore"
)

type RefSuite struct {
	suite.Suite
	buf *bytestore.Buffer
}

func (s *RefSuite) SetupTest() {
	s.buf = bytestore.NewSize(512)
}

func (s *RefSuite) TestBinaryCell() {
	ref := Binary.NewInt64Ref()
	off := ref.Reserve(s.buf)
	s.Assert().EqualValues(0, ref.Value(), "a reserved cell starts at zero")
	s.Assert().EqualValues(8, ref.Length())

	ref.SetValue(123)
	s.Assert().EqualValues(123, ref.Value())
	s.Assert().EqualValues(130, ref.AddValue(7))
	s.Assert().True(ref.CompareAndSwapValue(130, -5))
	s.Assert().False(ref.CompareAndSwapValue(99, 1))
	s.Assert().EqualValues(-5, ref.Value())

	// A second reference bound at the same offset shares the cell.
	other := Binary.NewInt64Ref()
	s.Require().NoError(other.Bind(s.buf, off))
	s.Assert().EqualValues(-5, other.Value())
	other.SetValue(42)
	s.Assert().EqualValues(42, ref.Value())
}

func (s *RefSuite) TestBinaryCellAlignment() {
	s.buf.WriteString("abc")
	ref := Binary.NewInt64Ref()
	off := ref.Reserve(s.buf)
	s.Assert().EqualValues(8, off, "the cell must land on an 8-byte boundary")
}

func (s *RefSuite) TestBindBounds() {
	ref := Binary.NewInt64Ref()
	s.Assert().ErrorIs(ref.Bind(s.buf, s.buf.WritePosition()), bytestore.ErrOutOfBounds)
	s.Assert().ErrorIs(ref.Bind(s.buf, -1), bytestore.ErrOutOfBounds)
}

func (s *RefSuite) TestUnboundPanics() {
	s.Assert().Panics(func() { Binary.NewInt64Ref().Value() })
	s.Assert().Panics(func() { Text.NewInt64Ref().SetValue(1) })
	s.Assert().Panics(func() { Binary.NewInt64ArrayRef().Capacity() })
}

func (s *RefSuite) TestTextCell() {
	ref := Text.NewInt64Ref()
	ref.Reserve(s.buf)
	s.Assert().EqualValues(0, ref.Value())

	rendered := s.buf.String()
	s.Assert().Len(rendered, int(ref.Length()))
	s.Assert().True(strings.HasPrefix(rendered, "!int64 { value: "))

	// In-place rewrites keep the byte length constant, so surrounding
	// content never shifts.
	before := s.buf.Len()
	ref.SetValue(-42)
	s.Assert().Equal(before, s.buf.Len())
	s.Assert().EqualValues(-42, ref.Value())

	s.Assert().EqualValues(-40, ref.AddValue(2))
	s.Assert().True(ref.CompareAndSwapValue(-40, 7))
	s.Assert().False(ref.CompareAndSwapValue(-1, 0))
	s.Assert().EqualValues(7, ref.Value())
}

func (s *RefSuite) TestTextCellSurroundedByContent() {
	s.buf.WriteString("x: ")
	ref := Text.NewInt64Ref()
	off := ref.Reserve(s.buf)
	s.buf.WriteString("\ny: 9")

	ref.SetValue(1234567)
	s.Assert().True(strings.HasPrefix(s.buf.String(), "x: !int64 { value: "))
	s.Assert().True(strings.HasSuffix(s.buf.String(), " }\ny: 9"))

	other := Text.NewInt64Ref()
	s.Require().NoError(other.Bind(s.buf, off))
	s.Assert().EqualValues(1234567, other.Value())
}

func (s *RefSuite) TestTextBindRejectsGarbage() {
	s.buf.WriteString(strings.Repeat("#", 64))
	ref := Text.NewInt64Ref()
	s.Assert().ErrorIs(ref.Bind(s.buf, 0), ErrSyntax)
}

func (s *RefSuite) TestBinaryArray() {
	arr := Binary.NewInt64ArrayRef()
	off := arr.Reserve(s.buf, 4)
	s.Assert().EqualValues(4, arr.Capacity())
	s.Assert().EqualValues(8+4*8, arr.Length())
	for i := int64(0); i < 4; i++ {
		s.Assert().Zero(arr.ValueAt(i))
	}

	arr.SetValueAt(0, 10)
	arr.SetValueAt(3, -3)
	s.Assert().EqualValues(10, arr.ValueAt(0))
	s.Assert().EqualValues(-3, arr.ValueAt(3))

	other := Binary.NewInt64ArrayRef()
	s.Require().NoError(other.Bind(s.buf, off))
	s.Assert().EqualValues(4, other.Capacity())
	s.Assert().EqualValues(-3, other.ValueAt(3))

	s.Assert().Panics(func() { arr.ValueAt(4) })
	s.Assert().Panics(func() { arr.SetValueAt(-1, 0) })
}

func (s *RefSuite) TestTextArray() {
	arr := Text.NewInt64ArrayRef()
	off := arr.Reserve(s.buf, 3)
	s.Assert().EqualValues(3, arr.Capacity())
	s.Assert().EqualValues(arr.Length(), s.buf.Len())
	s.Assert().True(strings.HasPrefix(s.buf.String(), "!int64array { capacity: "))

	before := s.buf.Len()
	arr.SetValueAt(1, -7)
	s.Assert().Equal(before, s.buf.Len())
	s.Assert().EqualValues(-7, arr.ValueAt(1))
	s.Assert().Zero(arr.ValueAt(0))
	s.Assert().Zero(arr.ValueAt(2))

	other := Text.NewInt64ArrayRef()
	s.Require().NoError(other.Bind(s.buf, off))
	s.Assert().EqualValues(3, other.Capacity())
	s.Assert().EqualValues(-7, other.ValueAt(1))
}

func (s *RefSuite) TestArrayCapacityMustBePositive() {
	s.Assert().Panics(func() { Binary.NewInt64ArrayRef().Reserve(s.buf, 0) })
	s.Assert().Panics(func() { Text.NewInt64ArrayRef().Reserve(s.buf, -1) })
}

func TestRefs(t *testing.T) {
	suite.Run(t, new(RefSuite))
}

// TestBinaryCellConcurrentAdds hammers one cell from several goroutines;
// the compare-and-swap loop must not lose increments.
func TestBinaryCellConcurrentAdds(t *testing.T) {
	buf := bytestore.NewSize(64)
	ref := Binary.NewInt64Ref()
	ref.Reserve(buf)

	const (
		workers = 8
		adds    = 1000
	)
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < adds; i++ {
				ref.AddValue(1)
			}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	require.EqualValues(t, workers*adds, ref.Value())
}

func TestRefDigitsRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808} {
		got, err := parseRefDigits([]byte(formatRefDigits(v)))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
