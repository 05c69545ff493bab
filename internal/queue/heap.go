package queue

// entry is a heap element referencing a queue item. Entries are never
// removed from the middle of the heap: when an item is cleared or expires it
// is deleted from the id table and its entry becomes a tombstone that is
// discarded when it surfaces at the top.
type entry struct {
	item *Item
}

// itemHeap implements [container/heap.Interface] as a min-heap ordered by
// (priority, reservation time, seq). The top of the heap is the next item in
// scheduling order, tombstones aside.
type itemHeap []entry

func (h itemHeap) Len() int { return len(h) }

// Less reports whether element i is scheduled before element j.
func (h itemHeap) Less(i, j int) bool {
	return h[i].item.before(h[j].item)
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push appends x to the heap. Called by [container/heap.Push]; callers must
// not invoke this directly.
func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

// Pop removes and returns the last element. Called by [container/heap.Pop];
// callers must not invoke this directly.
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}
