package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	for _, sz := range []int{1, sizeTiny, sizeTiny + 1, sizeSmall, sizeMedium, sizeLarge} {
		b := Get(sz)
		assert.Empty(t, b)
		assert.GreaterOrEqual(t, cap(b), sz)
		Put(b)
	}

	// Oversized buffers bypass the pools.
	b := Get(sizeLarge + 1)
	assert.GreaterOrEqual(t, cap(b), sizeLarge+1)
	Put(b)
}

func TestPooledBytes(t *testing.T) {
	var p Pooled

	b, err := p.Bytes(100)
	require.NoError(t, err)
	assert.Len(t, b, 100)

	_, err = p.Bytes(-1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestPooledZeroedRecycled(t *testing.T) {
	var p Pooled

	// Dirty a buffer, return it, then require a zeroed allocation of the
	// same class to actually be zeroed.
	dirty, err := p.Bytes(sizeSmall)
	require.NoError(t, err)
	for i := range dirty {
		dirty[i] = 0xff
	}
	Put(dirty)

	b, err := p.BytesZeroed(sizeSmall/2, 2)
	require.NoError(t, err)
	require.Len(t, b, sizeSmall)
	for _, v := range b {
		require.Zero(t, v)
	}
}

func TestPooledGrow(t *testing.T) {
	var p Pooled

	b, err := p.Bytes(10)
	require.NoError(t, err)
	copy(b, "0123456789")

	grown, err := p.Grow(b, sizeMedium)
	require.NoError(t, err)
	assert.Len(t, grown, 10)
	assert.GreaterOrEqual(t, cap(grown), sizeMedium)
	assert.Equal(t, "0123456789", string(grown))
}
