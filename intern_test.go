package kiln

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternerIdempotent(t *testing.T) {
	in := NewInterner()
	a := in.Intern("hello")
	b := in.Intern("hello")
	assert.Equal(t, a, b)
}

func TestInternerGetReturnsOriginalBytes(t *testing.T) {
	in := NewInterner()
	h := in.Intern("warehouse")
	assert.Equal(t, "warehouse", string(in.Get(h)))
}

func TestInternerHandleStableAcrossGrowth(t *testing.T) {
	in := NewInterner()
	first := in.Intern("a")
	for i := 0; i < 10000; i++ {
		in.Intern(strconv.Itoa(i))
	}
	assert.Equal(t, "a", string(in.Get(first)))
}

func TestInternerEqualsStartsWithEndsWithContains(t *testing.T) {
	in := NewInterner()
	h := in.Intern("kiln_engine")

	assert.True(t, in.Equals(h, "kiln_engine"))
	assert.False(t, in.Equals(h, "kiln"))
	assert.True(t, in.StartsWith(h, "kiln"))
	assert.False(t, in.StartsWith(h, "engine"))
	assert.True(t, in.EndsWith(h, "engine"))
	assert.True(t, in.Contains(h, "_eng"))
	assert.False(t, in.Contains(h, "zzz"))
}

func TestInternerContainsEmptySubstringIsAlwaysTrue(t *testing.T) {
	in := NewInterner()
	h := in.Intern("anything")
	assert.True(t, in.Contains(h, ""))
}
