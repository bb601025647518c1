package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMap(t *testing.T) {
	m := NewOrderedMap[int]()
	assert.Zero(t, m.Len())

	m.Set("b", 2)
	m.Set("a", 1)
	m.Set("c", 3)
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	assert.Equal(t, 3, m.Len())

	// Overwriting keeps the key's original position.
	m.Set("a", 10)
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestOrderedMapRange(t *testing.T) {
	m := NewOrderedMap[string]()
	m.Set("x", "1")
	m.Set("y", "2")
	m.Set("z", "3")

	var seen []string
	m.Range(func(k, v string) bool {
		seen = append(seen, k+"="+v)
		return true
	})
	assert.Equal(t, []string{"x=1", "y=2", "z=3"}, seen)

	// Returning false stops the walk.
	var n int
	m.Range(func(string, string) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}
