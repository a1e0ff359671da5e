package framework

import "sync"

// SequencedQueue delivers items on C in sequence-number order, starting at 1, regardless of
// the order in which they were accepted. An item that arrives early is held until every
// item before it has been delivered.
type SequencedQueue[T any] struct {
	C       <-chan T
	ch      chan T
	next    int
	pending map[int]T
	closed  bool
	lock    sync.Mutex
}

func NewSequencedQueue[T any](channelSize int) *SequencedQueue[T] {
	ch := make(chan T, channelSize)
	return &SequencedQueue[T]{C: ch, ch: ch, next: 1, pending: make(map[int]T)}
}

// Accept adds the item with the given sequence number. Items with a number that was
// already delivered are dropped, as is anything accepted after Close.
func (q *SequencedQueue[T]) Accept(seq int, item T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed || seq < q.next {
		return
	}
	q.pending[seq] = item
	for {
		ready, ok := q.pending[q.next]
		if !ok {
			return
		}
		delete(q.pending, q.next)
		q.next++
		q.ch <- ready
	}
}

// Pending returns the items being held back, in sequence order.
func (q *SequencedQueue[T]) Pending() []T {
	q.lock.Lock()
	defer q.lock.Unlock()
	var ret []T
	for seq, remaining := q.next, len(q.pending); remaining > 0; seq++ {
		if item, ok := q.pending[seq]; ok {
			ret = append(ret, item)
			remaining--
		}
	}
	return ret
}

func (q *SequencedQueue[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
