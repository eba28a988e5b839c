package routing

import "github.com/jordanmarkov/osrm-backend/pkg/graph"

// HeapPair is a forward/reverse pair of QueryHeaps for one bidirectional
// search. A plain point-to-point Route call uses only the primary pair;
// callers building on top of the core (via-node queries, alternative
// routes) can borrow additional pairs from EngineState's pool instead of
// allocating their own.
type HeapPair struct {
	Forward *QueryHeap
	Reverse *QueryHeap
}

// Reset empties both heaps in this pair, ready for the next query.
func (p *HeapPair) Reset() {
	p.Forward.DeleteAll()
	p.Reverse.DeleteAll()
}

// EngineState is a per-thread pool of pre-allocated heap pairs, sized for
// one graph, reused across queries to keep the query path allocation-free.
// Heaps are never shared across threads — callers run one EngineState per
// worker goroutine.
type EngineState struct {
	numNodes graph.NodeID
	Primary  HeapPair

	// auxiliary holds extra pairs handed out by BorrowAuxiliary, for
	// callers that need more than one simultaneous bidirectional search
	// (e.g. a via-node route split into two point-to-point legs run
	// against the same engine instance).
	auxiliary []HeapPair
	auxUsed   int
}

// NewEngineState allocates an EngineState whose heaps are sized for a
// graph with numNodes nodes.
func NewEngineState(numNodes graph.NodeID) *EngineState {
	return &EngineState{
		numNodes: numNodes,
		Primary: HeapPair{
			Forward: NewQueryHeap(numNodes),
			Reverse: NewQueryHeap(numNodes),
		},
	}
}

// BorrowAuxiliary hands out a reset HeapPair beyond the primary one,
// growing the pool on first use past capacity. Callers must return it via
// ReleaseAuxiliary (typically deferred) so later queries can reuse it.
func (s *EngineState) BorrowAuxiliary() *HeapPair {
	if s.auxUsed < len(s.auxiliary) {
		p := &s.auxiliary[s.auxUsed]
		s.auxUsed++
		p.Reset()
		return p
	}
	s.auxiliary = append(s.auxiliary, HeapPair{
		Forward: NewQueryHeap(s.numNodes),
		Reverse: NewQueryHeap(s.numNodes),
	})
	s.auxUsed++
	return &s.auxiliary[len(s.auxiliary)-1]
}

// ReleaseAuxiliary returns the most recently borrowed auxiliary pair to
// the pool. Pairs must be released in LIFO order.
func (s *EngineState) ReleaseAuxiliary() {
	if s.auxUsed > 0 {
		s.auxUsed--
	}
}
