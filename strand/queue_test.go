package strand

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackQueueOrder(t *testing.T) {
	var q callbackQueue

	_, ok := q.pop()
	assert.False(t, ok)

	// Interleave pushes and pops across several growth cycles.
	next, want := 0, 0
	push := func(n int) {
		for i := 0; i < n; i++ {
			idx := next
			next++
			q.push(callback{pendingSubs: idx})
		}
	}
	pop := func(n int) {
		for i := 0; i < n; i++ {
			cb, ok := q.pop()
			require.True(t, ok)
			require.Equal(t, want, cb.pendingSubs, "pop %s", strconv.Itoa(want))
			want++
		}
	}

	push(5)
	pop(3)
	push(20)
	pop(10)
	push(3)
	pop(15)

	assert.Zero(t, q.len())
	_, ok = q.pop()
	assert.False(t, ok)
}

func TestCallbackQueuePeek(t *testing.T) {
	var q callbackQueue

	_, ok := q.peek()
	assert.False(t, ok)

	q.push(callback{pendingSubs: 2})

	head, ok := q.peek()
	require.True(t, ok)
	head.pendingSubs--

	// Peek returns the live element, so the decrement sticks.
	head, ok = q.peek()
	require.True(t, ok)
	assert.Equal(t, 1, head.pendingSubs)
	assert.Equal(t, 1, q.len())
}
