package emulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zeozeozeo/gopm4/test"
)

func TestSubmissionQueueFIFO(t *testing.T) {
	q := NewSubmissionQueue()

	_, err := q.Submit(nil)
	test.ExpectSuccess(t, errors.Is(err, ErrEmptyCommandBuffer))

	for i := uint32(1); i <= 3; i++ {
		id, err := q.Submit([]uint32{i})
		test.ExpectSuccess(t, err)
		test.ExpectEquality(t, id, uint64(i))
	}
	test.ExpectEquality(t, q.Len(), 3)

	for i := uint32(1); i <= 3; i++ {
		cmdbuf, ok := q.Dequeue(context.Background())
		test.ExpectSuccess(t, ok)
		test.ExpectEquality(t, cmdbuf.Words[0], i)
		q.Done()
	}
	test.ExpectSuccess(t, q.WaitIdle())
}

func TestSubmissionQueueDequeueBlocks(t *testing.T) {
	q := NewSubmissionQueue()
	got := make(chan CommandBuffer)

	go func() {
		cmdbuf, _ := q.Dequeue(context.Background())
		got <- cmdbuf
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before submit")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := q.Submit([]uint32{42})
	test.ExpectSuccess(t, err)

	select {
	case cmdbuf := <-got:
		test.ExpectEquality(t, cmdbuf.Words[0], uint32(42))
	case <-time.After(time.Second):
		t.Fatal("dequeue not woken by submit")
	}
}

func TestSubmissionQueueCancel(t *testing.T) {
	q := NewSubmissionQueue()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool)

	go func() {
		_, ok := q.Dequeue(ctx)
		result <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-result:
		test.ExpectFailure(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dequeue not interrupted by cancellation")
	}
}

func TestSubmissionQueueWaitIdle(t *testing.T) {
	q := NewSubmissionQueue()

	// nothing submitted
	test.ExpectSuccess(t, q.WaitIdle())

	_, _ = q.Submit([]uint32{1})
	cmdbuf, ok := q.Dequeue(context.Background())
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, cmdbuf.ID, uint64(1))

	// the queue is empty but the buffer is still in flight
	idle := make(chan bool)
	go func() {
		idle <- q.WaitIdle()
	}()

	select {
	case <-idle:
		t.Fatal("WaitIdle returned while a buffer was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	q.Done()
	select {
	case ok := <-idle:
		test.ExpectSuccess(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitIdle not released by Done")
	}
}

func TestSubmissionQueueClose(t *testing.T) {
	q := NewSubmissionQueue()
	_, _ = q.Submit([]uint32{1})

	idle := make(chan bool)
	go func() {
		idle <- q.WaitIdle()
	}()

	q.Close()
	select {
	case ok := <-idle:
		test.ExpectFailure(t, ok) // pending work was dropped
	case <-time.After(time.Second):
		t.Fatal("WaitIdle not released by Close")
	}

	_, err := q.Submit([]uint32{2})
	test.ExpectSuccess(t, errors.Is(err, ErrClosed))

	_, ok := q.Dequeue(context.Background())
	test.ExpectFailure(t, ok)
}
