package emulator

import (
	"context"
	"sync"
)

// FIFO of submitted command buffers shared between any number of producers
// and the single processing loop. The lock is only held while the ring is
// manipulated, never while a buffer is dispatched
type SubmissionQueue struct {
	mu        sync.Mutex
	submitted *sync.Cond // a buffer was pushed or the queue was closed
	idle      *sync.Cond // the queue drained or was closed
	ring      *Ring
	busy      bool // a dequeued buffer is being dispatched
	closed    bool
	abandoned bool // work was pending when the queue was closed
	nextID    uint64
}

// Returns a new empty queue
func NewSubmissionQueue() *SubmissionQueue {
	q := &SubmissionQueue{ring: NewRing()}
	q.submitted = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Appends `words` to the back of the queue and wakes the consumer. Never
// blocks. Returns the submission ID
func (q *SubmissionQueue) Submit(words []uint32) (uint64, error) {
	if len(words) == 0 {
		return 0, ErrEmptyCommandBuffer
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrClosed
	}
	q.nextID++
	q.ring.Push(CommandBuffer{ID: q.nextID, Words: words})
	q.submitted.Signal()
	return q.nextID, nil
}

// Removes the buffer at the front of the queue, blocking until one is
// available. Returns false if `ctx` is done or the queue is closed before
// a buffer arrives. The caller must call Done once the buffer is dispatched
func (q *SubmissionQueue) Dequeue(ctx context.Context) (CommandBuffer, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.submitted.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.IsEmpty() && !q.closed && ctx.Err() == nil {
		q.submitted.Wait()
	}
	if q.closed || ctx.Err() != nil {
		return CommandBuffer{}, false
	}

	q.busy = true
	return q.ring.Pop(), true
}

// Marks the buffer returned by the last Dequeue as fully dispatched. Wakes
// the WaitIdle callers if nothing else is queued
func (q *SubmissionQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.busy = false
	if q.ring.IsEmpty() {
		q.idle.Broadcast()
	}
}

// Blocks until every submitted buffer has been dispatched or the queue is
// closed. Returns false in the latter case if work was still pending
func (q *SubmissionQueue) WaitIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for (!q.ring.IsEmpty() || q.busy) && !q.closed {
		q.idle.Wait()
	}
	return !q.abandoned
}

// Rejects further submissions and releases every waiter. Buffers still in
// the queue are dropped
func (q *SubmissionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.abandoned = !q.ring.IsEmpty() || q.busy
	q.ring.Clear()
	q.submitted.Broadcast()
	q.idle.Broadcast()
}

// Returns the number of buffers waiting to be dequeued
func (q *SubmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.ring.Length())
}
