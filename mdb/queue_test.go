package mdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(QueueItem{Bytes: []byte{1}})
	q.Enqueue(QueueItem{Bytes: []byte{2}})
	q.Enqueue(QueueItem{Bytes: []byte{3}})

	item, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, item.Bytes)

	item, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, []byte{2}, item.Bytes)

	assert.Equal(t, 1, q.Len())
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	q := NewQueue(2)
	q.Enqueue(QueueItem{Bytes: []byte{1}})
	dropped := q.Enqueue(QueueItem{Bytes: []byte{2}})
	assert.False(t, dropped)
	dropped = q.Enqueue(QueueItem{Bytes: []byte{3}})
	assert.True(t, dropped)

	item, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, []byte{2}, item.Bytes, "oldest entry (1) should have been dropped")

	item, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, []byte{3}, item.Bytes)

	assert.Equal(t, uint64(1), q.Dropped())
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := NewQueue(4)
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueueReset(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(QueueItem{Bytes: []byte{1}})
	q.Enqueue(QueueItem{Bytes: []byte{2}})
	q.Reset()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < DefaultQueueCapacity+1; i++ {
		q.Enqueue(QueueItem{Bytes: []byte{byte(i)}})
	}
	assert.Equal(t, DefaultQueueCapacity, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())
}
