package mdb

import "sync"

// DefaultQueueCapacity is the sensible cap the spec asks implementations to
// enforce in place of an unbounded queue.
const DefaultQueueCapacity = 32

// QueueItem is one pending response awaiting the next POLL. Apply, if set,
// is invoked exactly once, at dequeue time, to record whatever state change
// the response implies (e.g. VEND -> IDLE on APPROVE_VEND) — ownership
// of that transition belongs to the producer, not to the dequeue operation
// itself.
type QueueItem struct {
	Bytes []byte
	Apply func(*Machine)
}

// Queue is a FIFO of pre-encoded response packets, exclusively owned by the
// Poll Scheduler: producers enqueue, HandlePoll dequeues at most one entry
// per POLL.
type Queue struct {
	mu       sync.Mutex
	items    []QueueItem
	capacity int
	dropped  uint64
}

// NewQueue returns an empty Queue capped at capacity entries. A capacity <=
// 0 falls back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{capacity: capacity}
}

// Enqueue appends an item. If the queue is at capacity the oldest entry is
// dropped first — dropping the newest would discard a freshly-computed vend
// decision, which is worse than discarding stale queued output.
func (q *Queue) Enqueue(item QueueItem) (droppedOldest bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
		droppedOldest = true
	}
	q.items = append(q.items, item)
	return droppedOldest
}

// Dequeue removes and returns the oldest item, if any.
func (q *Queue) Dequeue() (QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return QueueItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many items have been dropped due to overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Reset empties the queue. Called on RESET: the data model invariant is
// that after RESET the send queue is empty.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
