package capture

import (
	"context"
	"sync"

	"echopilot/core"
)

// Queue is the shared cross-source FIFO between the capture producers
// and the single segmentation consumer. Pushes never block; chunks are
// drained strictly in arrival order regardless of source.
type Queue struct {
	mu     sync.Mutex
	items  []core.CaptureChunk
	signal chan struct{} // single-slot wakeup, coalesces pushes
}

func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Push appends a chunk to the queue and wakes the consumer.
func (q *Queue) Push(chunk core.CaptureChunk) {
	q.mu.Lock()
	q.items = append(q.items, chunk)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest chunk, blocking until one is
// available or ctx is done. The second return is false on cancellation.
func (q *Queue) Pop(ctx context.Context) (core.CaptureChunk, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			chunk := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return chunk, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return core.CaptureChunk{}, false
		}
	}
}

// Drain discards all queued chunks and reports how many were dropped.
// An in-flight item already popped by the consumer is unaffected.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
