package retention

import "fmt"

// Buffer keeps the most recent items up to a fixed capacity, oldest first.
// It is not safe for concurrent use; the owner serialises access.
type Buffer[T any] struct {
	items    []T
	capacity int
}

// New panics unless capacity is positive; callers own the sizing policy.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("retention: capacity must be positive, got %d", capacity))
	}
	return &Buffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Append adds item as the newest entry and evicts the oldest excess in one step.
func (b *Buffer[T]) Append(item T) {
	b.items = append(b.items, item)

	if len(b.items) > b.capacity {
		excess := len(b.items) - b.capacity
		kept := make([]T, b.capacity, b.capacity+1)
		copy(kept, b.items[excess:])
		b.items = kept
	}
}

// Snapshot returns a chronological copy of the buffer.
func (b *Buffer[T]) Snapshot() []T {
	cpy := make([]T, len(b.items))
	copy(cpy, b.items)
	return cpy
}

func (b *Buffer[T]) Len() int {
	return len(b.items)
}

func (b *Buffer[T]) Cap() int {
	return b.capacity
}
