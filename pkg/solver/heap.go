// Package solver: an indexed binary heap keyed by external priorities, used
// by the activity-based decision heuristics. Adapted from the classic
// MiniSat indexed heap.
package solver

// priorityHeap is a max-heap over uint32 keys (variable IDs) ordered by a
// caller-supplied comparison. Each key's position is tracked so priorities
// can be updated in place.
type priorityHeap struct {
	better  func(a, b uint32) bool
	heap    []uint32
	indices map[uint32]int
}

func newPriorityHeap(better func(a, b uint32) bool) *priorityHeap {
	return &priorityHeap{better: better, indices: make(map[uint32]int)}
}

func (h *priorityHeap) Len() int        { return len(h.heap) }
func (h *priorityHeap) Empty() bool     { return len(h.heap) == 0 }
func (h *priorityHeap) Peek() uint32    { return h.heap[0] }
func (h *priorityHeap) At(i int) uint32 { return h.heap[i] }

func (h *priorityHeap) Contains(key uint32) bool {
	_, ok := h.indices[key]
	return ok
}

func (h *priorityHeap) Insert(key uint32) {
	if h.Contains(key) {
		return
	}
	h.heap = append(h.heap, key)
	h.indices[key] = len(h.heap) - 1
	h.up(len(h.heap) - 1)
}

// Update restores heap order after the key's priority changed.
func (h *priorityHeap) Update(key uint32) {
	i, ok := h.indices[key]
	if !ok {
		return
	}
	h.up(i)
	h.down(h.indices[key])
	_ = i
}

// Remove deletes the key from the heap if present.
func (h *priorityHeap) Remove(key uint32) {
	i, ok := h.indices[key]
	if !ok {
		return
	}
	last := len(h.heap) - 1
	h.swap(i, last)
	h.heap = h.heap[:last]
	delete(h.indices, key)
	if i < last {
		h.up(i)
		h.down(h.indices[h.heap[i]])
	}
}

func (h *priorityHeap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.indices[h.heap[i]] = i
	h.indices[h.heap[j]] = j
}

func (h *priorityHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.better(h.heap[i], h.heap[parent]) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *priorityHeap) down(i int) {
	for {
		l, r := 2*i+1, 2*i+2
		best := i
		if l < len(h.heap) && h.better(h.heap[l], h.heap[best]) {
			best = l
		}
		if r < len(h.heap) && h.better(h.heap[r], h.heap[best]) {
			best = r
		}
		if best == i {
			return
		}
		h.swap(i, best)
		i = best
	}
}
