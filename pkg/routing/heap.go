package routing

import (
	"math"

	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

// HeapData is the per-node payload an addressable QueryHeap retrieves
// alongside a key: the back-pointer RoutingStep records and
// RetrievePackedPath follows to reconstruct a packed path once the two
// sides of a search meet.
type HeapData struct {
	Parent graph.NodeID
}

// queryHeapSlot is one inserted node's state: its current key, its data,
// and its position in the binary-heap array (or -1 once extracted).
type queryHeapSlot struct {
	key      int64
	data     HeapData
	heapPos  int
	inserted bool
}

// QueryHeap is an addressable min-priority queue keyed by node id, sized
// for the full node space of a graph, retained across queries: Insert and
// DeleteMin mutate a concrete binary heap (no container/heap boxing, in
// keeping with pkg/ch's witness heap), while a dense per-node
// slot array gives O(1) GetKey/GetData/WasInserted and the index needed
// for O(log n) DecreaseKey. DeleteAll only rewinds the slots touched since
// the last clear, tracked in touched.
type QueryHeap struct {
	slots   []queryHeapSlot
	heap    []graph.NodeID // heap[i] is the node id at binary-heap position i
	touched []graph.NodeID
}

// NewQueryHeap allocates a QueryHeap addressable over node ids in [0, n).
func NewQueryHeap(n graph.NodeID) *QueryHeap {
	return &QueryHeap{
		slots:   make([]queryHeapSlot, n),
		heap:    make([]graph.NodeID, 0, 256),
		touched: make([]graph.NodeID, 0, 1024),
	}
}

// WasInserted reports whether n has ever been inserted during the current
// query, regardless of whether it has since been extracted.
func (h *QueryHeap) WasInserted(n graph.NodeID) bool {
	return h.slots[n].inserted
}

// GetKey returns the key last assigned to n. n must have been inserted.
func (h *QueryHeap) GetKey(n graph.NodeID) int64 {
	return h.slots[n].key
}

// GetData returns the data last assigned to n. n must have been inserted.
func (h *QueryHeap) GetData(n graph.NodeID) HeapData {
	return h.slots[n].data
}

// Len returns the number of nodes still present in the priority queue
// (extracted nodes no longer count, even though WasInserted stays true).
func (h *QueryHeap) Len() int { return len(h.heap) }

// PeekKey returns the smallest key still in the queue, or MaxInt64 if empty.
func (h *QueryHeap) PeekKey() int64 {
	if len(h.heap) == 0 {
		return math.MaxInt64
	}
	return h.slots[h.heap[0]].key
}

// Insert adds n with the given key and data. Precondition: n not yet
// inserted during this query (use DecreaseKey to update an existing node).
func (h *QueryHeap) Insert(n graph.NodeID, key int64, data HeapData) {
	s := &h.slots[n]
	if !s.inserted {
		h.touched = append(h.touched, n)
	}
	s.key = key
	s.data = data
	s.inserted = true
	s.heapPos = len(h.heap)
	h.heap = append(h.heap, n)
	h.siftUp(s.heapPos)
}

// DecreaseKey lowers n's key and updates its parent. Precondition: n is
// currently inserted and key' < current key.
func (h *QueryHeap) DecreaseKey(n graph.NodeID, key int64, data HeapData) {
	s := &h.slots[n]
	s.key = key
	s.data = data
	h.siftUp(s.heapPos)
}

// DeleteMin extracts and returns the node with the smallest key. The
// node's slot remains retrievable via GetKey/GetData/WasInserted — only
// its presence in the live binary heap is removed.
func (h *QueryHeap) DeleteMin() graph.NodeID {
	top := h.heap[0]
	last := len(h.heap) - 1
	h.heap[0] = h.heap[last]
	h.slots[h.heap[0]].heapPos = 0
	h.heap = h.heap[:last]
	if last > 0 {
		h.siftDown(0)
	}
	h.slots[top].heapPos = -1
	return top
}

// DeleteAll empties the queue and clears every slot touched since the
// last DeleteAll, in time proportional to that touched set rather than N.
func (h *QueryHeap) DeleteAll() {
	for _, n := range h.touched {
		h.slots[n] = queryHeapSlot{heapPos: -1}
	}
	h.touched = h.touched[:0]
	h.heap = h.heap[:0]
}

func (h *QueryHeap) less(i, j int) bool {
	return h.slots[h.heap[i]].key < h.slots[h.heap[j]].key
}

func (h *QueryHeap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.slots[h.heap[i]].heapPos = i
	h.slots[h.heap[j]].heapPos = j
}

func (h *QueryHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *QueryHeap) siftDown(i int) {
	n := len(h.heap)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
}
