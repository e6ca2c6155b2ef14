// Package queue provides the mutex-guarded queue used to hold movements
// until their step becomes current.
package queue

import (
	"sort"
	"sync"
)

// Queue is a generic thread-safe queue. When built with NewOrdered it keeps
// items sorted by less, preserving insertion order among equal items.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	less  func(a, b T) bool
}

// New creates an empty FIFO queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// NewOrdered creates an empty queue ordered by less.
func NewOrdered[T any](less func(a, b T) bool) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		less:  less,
	}
}

// Push adds items. Ordered queues insert each item after every item that
// does not sort after it.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.less == nil {
		q.items = append(q.items, items...)
		return
	}
	for _, it := range items {
		i := sort.Search(len(q.items), func(i int) bool { return q.less(it, q.items[i]) })
		q.items = append(q.items, it)
		copy(q.items[i+1:], q.items[i:])
		q.items[i] = it
	}
}

// PopRun removes and returns the head together with every following item
// that ranks equal to it. On a FIFO queue the run is the head alone.
func (q *Queue[T]) PopRun() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	n := 1
	if q.less != nil {
		head := q.items[0]
		for n < len(q.items) && !q.less(head, q.items[n]) {
			n++
		}
	}
	run := make([]T, n)
	copy(run, q.items[:n])
	q.items = q.items[n:]
	return run
}

// Items returns a snapshot of the queued items in order.
func (q *Queue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
