package utils

import (
	"sort"
	"sync"
)

type entry[T any] struct {
	seq  int
	item T
}

// RecordBuilder collects items from concurrent producers and materializes
// them once, ordered by the sequence number each item was added with.
type RecordBuilder[T any] struct {
	entries []entry[T]
	mu      sync.Mutex
}

func NewRecordBuilder[T any](capacity int) *RecordBuilder[T] {
	return &RecordBuilder[T]{
		entries: make([]entry[T], 0, capacity),
	}
}

func (b *RecordBuilder[T]) Add(seq int, item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry[T]{seq: seq, item: item})
}

func (b *RecordBuilder[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Build returns a fresh slice of the items in ascending sequence order.
func (b *RecordBuilder[T]) Build() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	sorted := append([]entry[T](nil), b.entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].seq < sorted[j].seq })

	items := make([]T, len(sorted))
	for i, e := range sorted {
		items[i] = e.item
	}
	return items
}
