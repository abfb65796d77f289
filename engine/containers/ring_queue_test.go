package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.True(t, rq.IsEmpty())

	for i := 1; i <= 3; i++ {
		require.NoError(t, rq.Enqueue(i))
	}
	require.True(t, rq.IsFull())
	require.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	front, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, front)

	for want := 1; want <= 3; want++ {
		got, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = rq.Dequeue()
	require.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	require.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue[string](2)
	require.NoError(t, rq.Enqueue("a"))
	require.NoError(t, rq.Enqueue("b"))
	_, _ = rq.Dequeue()
	require.NoError(t, rq.Enqueue("c"))

	got, _ := rq.Dequeue()
	assert.Equal(t, "b", got)
	got, _ = rq.Dequeue()
	assert.Equal(t, "c", got)
	assert.Equal(t, 0, rq.Len())
}

func TestRingQueuePushEvictsOldest(t *testing.T) {
	rq := NewRingQueue[float64](2)

	_, evicted := rq.Push(1)
	assert.False(t, evicted)
	_, evicted = rq.Push(2)
	assert.False(t, evicted)

	dropped, evicted := rq.Push(3)
	assert.True(t, evicted)
	assert.Equal(t, 1.0, dropped)
	assert.Equal(t, 2, rq.Len())
	assert.Equal(t, 2, rq.Cap())

	front, _ := rq.Peek()
	assert.Equal(t, 2.0, front)
}

func TestRingQueueMinimumSize(t *testing.T) {
	rq := NewRingQueue[int](0)
	assert.Equal(t, 1, rq.Cap())
}
