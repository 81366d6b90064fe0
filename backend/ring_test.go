package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_Ring_ReadWrite(t *testing.T) {
	r := NewRing(4, 2)

	r.Write([]byte{1, 1, 2, 2, 3, 3}, 3)
	assert.Equal(t, 3, r.Buffered())

	dst := make([]byte, 8)
	n := r.Read(dst, 2)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 1, 2, 2}, dst[:4])
	assert.Equal(t, 1, r.Buffered())
}

func Test_Ring_OverwritesOldest(t *testing.T) {
	r := NewRing(2, 1)

	r.Write([]byte{1, 2, 3}, 3)
	assert.Equal(t, 2, r.Buffered())
	assert.Equal(t, int64(1), r.Dropped())

	dst := make([]byte, 2)
	n := r.Read(dst, 2)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{2, 3}, dst)
}

func Test_Ring_WriteLargerThanCapacity(t *testing.T) {
	r := NewRing(3, 1)
	r.Write([]byte{1, 2, 3, 4, 5}, 5)
	assert.Equal(t, 3, r.Buffered())

	dst := make([]byte, 3)
	r.Read(dst, 3)
	assert.Equal(t, []byte{3, 4, 5}, dst)
	assert.Equal(t, int64(2), r.Dropped())
}

func Test_Ring_PreservesOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 32).Draw(t, "capacity")
		r := NewRing(capacity, 1)

		var expect []byte
		writes := rapid.IntRange(1, 10).Draw(t, "writes")
		for i := 0; i < writes; i++ {
			chunk := rapid.SliceOfN(rapid.Byte(), 1, 16).Draw(t, "chunk")
			r.Write(chunk, len(chunk))
			expect = append(expect, chunk...)
		}
		if len(expect) > capacity {
			expect = expect[len(expect)-capacity:]
		}

		dst := make([]byte, capacity)
		n := r.Read(dst, capacity)
		require.Equal(t, len(expect), n)
		assert.Equal(t, expect, dst[:n])
	})
}
