package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
)

// errQueueClosed is returned to a producer pushing after the consumer went away.
var errQueueClosed = errors.New("hand-off queue closed")

// queue is the single-producer/single-consumer hand-off between the pull
// goroutine and the blocking reader. capacity 0 means unbounded.
type queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    [][]byte
	capacity int
	closed   bool
	err      error
}

func newQueue(capacity int) *queue {
	q := &queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a chunk, blocking while a bounded queue is full.
func (q *queue) push(ctx context.Context, chunk []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.capacity > 0 && len(q.items) >= q.capacity && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.cond.Wait()
	}
	if q.closed {
		return errQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.items = append(q.items, chunk)
	q.cond.Broadcast()
	return nil
}

// pop removes the oldest chunk, blocking until one is available. Once the
// queue is closed and drained it returns the close error, or io.EOF.
func (q *queue) pop() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		if q.err != nil {
			return nil, q.err
		}
		return nil, io.EOF
	}

	chunk := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.cond.Broadcast()
	return chunk, nil
}

// close marks the end of the stream. The first call wins.
func (q *queue) close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.err = err
	q.cond.Broadcast()
}

// abort closes the queue and drops anything still queued.
func (q *queue) abort(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	if !q.closed {
		q.closed = true
		q.err = err
	}
	q.cond.Broadcast()
}

// wake releases waiters so they can observe a cancelled context.
func (q *queue) wake() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
