// Package minheap provides a generic binary min-heap.
//
// The heap supports push, peek and pop of the minimum only. There is no
// update-in-place or arbitrary removal: callers that need cancellation mark
// their elements as dead and discard them when they surface at the top.
package minheap

import (
	"container/heap"
)

// Heap is a binary min-heap of T, ordered by the less function supplied to
// New. Ties must be broken by the caller (e.g. by an insertion counter) if a
// stable order is required.
//
// The zero value is not usable. Heap is not safe for concurrent use.
type Heap[T any] struct {
	items items[T]
}

// items implements heap.Interface
type items[T any] struct {
	s    []T
	less func(a, b T) bool
}

// New returns an empty heap ordered by less.
func New[T any](less func(a, b T) bool) *Heap[T] {
	if less == nil {
		panic(`minheap: nil less function`)
	}
	return &Heap[T]{items: items[T]{less: less}}
}

// Len returns the number of elements in the heap.
func (x *Heap[T]) Len() int { return len(x.items.s) }

// Push adds v to the heap, in O(log n).
func (x *Heap[T]) Push(v T) { heap.Push(&x.items, v) }

// Peek returns the minimum element without removing it.
func (x *Heap[T]) Peek() (v T, ok bool) {
	if len(x.items.s) == 0 {
		return v, false
	}
	return x.items.s[0], true
}

// Pop removes and returns the minimum element, in O(log n).
func (x *Heap[T]) Pop() (v T, ok bool) {
	if len(x.items.s) == 0 {
		return v, false
	}
	return heap.Pop(&x.items).(T), true
}

func (h items[T]) Len() int           { return len(h.s) }
func (h items[T]) Less(i, j int) bool { return h.less(h.s[i], h.s[j]) }
func (h items[T]) Swap(i, j int)      { h.s[i], h.s[j] = h.s[j], h.s[i] }

func (h *items[T]) Push(x any) {
	h.s = append(h.s, x.(T))
}

func (h *items[T]) Pop() any {
	old := h.s
	n := len(old)
	x := old[n-1]
	var zero T
	old[n-1] = zero // allow GC
	h.s = old[:n-1]
	return x
}
