package events

import "sync"

const defaultBufferCapacity = 4096

type message struct {
	Kind string
	Data []byte
}

// queue is a fixed capacity ring of messages waiting for the writer. When full, the oldest
// message is overwritten and reported back to the caller.
type queue struct {
	mu    sync.Mutex
	items []*message
	start int
	count int
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &queue{items: make([]*message, capacity)}
}

// Push appends msg and returns the message it evicted, if any.
func (q *queue) Push(msg *message) (evicted *message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	capacity := len(q.items)
	if q.count == capacity {
		evicted = q.items[q.start]
		q.items[q.start] = msg
		q.start = (q.start + 1) % capacity
		return evicted
	}

	q.items[(q.start+q.count)%capacity] = msg
	q.count++
	return nil
}

// Drain removes and returns every queued message, oldest first.
func (q *queue) Drain() []*message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	out := make([]*message, 0, q.count)
	for i := 0; i < q.count; i++ {
		idx := (q.start + i) % len(q.items)
		out = append(out, q.items[idx])
		q.items[idx] = nil
	}
	q.start, q.count = 0, 0
	return out
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
