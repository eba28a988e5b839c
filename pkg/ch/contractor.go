package ch

import (
	"container/heap"
	"fmt"
	"log"

	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

// maxShortcutsPerNode is the limit on shortcuts a single contraction can create.
// Nodes exceeding this form an uncontracted "core" at the top of the hierarchy.
const maxShortcutsPerNode = 1000

// adjEntry represents an edge in the mutable adjacency list.
type adjEntry struct {
	to       uint32
	weight   uint32
	middle   int32  // -1 for original edges, else the contracted node ID
	origEdge uint32 // valid iff middle == -1: index into the original graph's edge arrays
}

// Contract performs Contraction Hierarchies preprocessing on the given graph.
func Contract(g *graph.Graph) *graph.CHGraph {
	n := g.NumNodes
	if n == 0 {
		return &graph.CHGraph{}
	}

	// Build mutable forward and reverse adjacency lists from the CSR graph.
	outAdj := make([][]adjEntry, n)
	inAdj := make([][]adjEntry, n)

	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			w := g.Weight[e]
			outAdj[u] = append(outAdj[u], adjEntry{to: v, weight: w, middle: -1, origEdge: e})
			inAdj[v] = append(inAdj[v], adjEntry{to: u, weight: w, middle: -1, origEdge: e})
		}
	}

	contracted := make([]bool, n)
	rank := make([]uint32, n)
	contractedNeighbors := make([]int, n)
	level := make([]int, n)

	// Initialize priority queue with all nodes.
	pq := make(priorityQueue, n)
	for i := uint32(0); i < n; i++ {
		pq[i] = &pqEntry{
			node:     i,
			priority: computePriority(outAdj, inAdj, i, contracted, contractedNeighbors[i], level[i]),
			index:    int(i),
		}
	}
	heap.Init(&pq)

	// Pre-allocate reusable witness search state.
	ws := newWitnessState(n)

	log.Printf("Starting contraction of %d nodes...", n)

	var totalShortcuts int
	order := uint32(0)

	// Adaptive log interval: frequent near the end.
	logInterval := uint32(50000)

	for pq.Len() > 0 {
		// Pop minimum-priority node.
		entry := heap.Pop(&pq).(*pqEntry)
		node := entry.node

		if contracted[node] {
			continue
		}

		// Lazy update: recompute priority and re-insert if it changed.
		newPriority := computePriority(outAdj, inAdj, node, contracted, contractedNeighbors[node], level[node])
		if newPriority > entry.priority && pq.Len() > 0 && newPriority > pq[0].priority {
			entry.priority = newPriority
			heap.Push(&pq, entry)
			continue
		}

		// Find shortcuts needed using batch witness search.
		shortcuts := findShortcuts(ws, outAdj, inAdj, node, contracted)

		// If contracting this node would produce too many shortcuts,
		// stop contraction entirely. Remaining nodes form a "core"
		// at the top of the hierarchy with original edges preserved.
		if len(shortcuts) > maxShortcutsPerNode {
			log.Printf("Stopping contraction: node %d would create %d shortcuts (limit %d). %d nodes remain in core.",
				node, len(shortcuts), maxShortcutsPerNode, n-order)
			break
		}

		// Contract this node.
		contracted[node] = true
		rank[node] = order
		order++
		totalShortcuts += len(shortcuts)

		// Add shortcuts to adjacency lists.
		for _, sc := range shortcuts {
			outAdj[sc.from] = append(outAdj[sc.from], adjEntry{to: sc.to, weight: sc.weight, middle: int32(node)})
			inAdj[sc.to] = append(inAdj[sc.to], adjEntry{to: sc.from, weight: sc.weight, middle: int32(node)})
		}

		// Update neighbors' contracted neighbor count and level.
		for _, e := range outAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}
		for _, e := range inAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}

		// Adaptive logging: more frequent as we approach the end.
		remaining := n - order
		if remaining < 1000 {
			logInterval = 100
		} else if remaining < 10000 {
			logInterval = 1000
		} else if remaining < 100000 {
			logInterval = 10000
		} else {
			logInterval = 50000
		}

		if order%logInterval == 0 {
			log.Printf("Contracted %d/%d nodes, %d shortcuts so far", order, n, totalShortcuts)
		}
	}

	// Assign ranks to remaining uncontracted core nodes.
	coreSize := uint32(0)
	for i := uint32(0); i < n; i++ {
		if !contracted[i] {
			contracted[i] = true
			rank[i] = order
			order++
			coreSize++
		}
	}

	log.Printf("Contraction complete: %d shortcuts created (%.1fx original edges), %d core nodes",
		totalShortcuts, float64(totalShortcuts)/float64(g.NumEdges), coreSize)

	// Build the unified-layout Facade from the contracted adjacency lists.
	return buildFacade(g, outAdj, inAdj, rank)
}

// shortcut represents a shortcut edge to be added.
type shortcut struct {
	from, to uint32
	weight   uint32
}

// findShortcuts determines which shortcuts are needed when contracting a node.
// Uses batch witness search: one Dijkstra per incoming neighbor instead of one
// per (incoming, outgoing) pair. This reduces search count from O(|in|*|out|)
// to O(|in|).
func findShortcuts(ws *witnessState, outAdj, inAdj [][]adjEntry, node uint32, contracted []bool) []shortcut {
	// Collect active incoming and outgoing neighbors.
	var incoming []adjEntry
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			incoming = append(incoming, e)
		}
	}

	var outgoing []adjEntry
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			outgoing = append(outgoing, e)
		}
	}

	if len(incoming) == 0 || len(outgoing) == 0 {
		return nil
	}

	var shortcuts []shortcut

	for _, in := range incoming {
		// Find max outgoing weight for upper bound of this batch search.
		var maxOut uint32
		for _, out := range outgoing {
			if out.to != in.to && out.weight > maxOut {
				maxOut = out.weight
			}
		}
		if maxOut == 0 {
			continue // all outgoing go back to in.to
		}

		maxWeight := in.weight + maxOut

		// Run ONE Dijkstra from in.to, then check all outgoing targets.
		batchWitnessSearch(ws, outAdj, in.to, node, maxWeight, contracted)

		for _, out := range outgoing {
			if out.to == in.to {
				continue // skip self-loops
			}

			scWeight := in.weight + out.weight

			// Check if witness path exists: dist[out.to] <= scWeight means
			// there's an alternative path at least as good as the shortcut.
			if ws.dist[out.to] > scWeight {
				shortcuts = append(shortcuts, shortcut{
					from:   in.to,
					to:     out.to,
					weight: scWeight,
				})
			}
		}
	}

	return shortcuts
}

// computePriority returns the priority for a node (lower = contract first).
func computePriority(outAdj, inAdj [][]adjEntry, node uint32, contracted []bool, contractedNeighbors, level int) int {
	// Count active incoming/outgoing edges.
	activeIn := 0
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			activeIn++
		}
	}
	activeOut := 0
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			activeOut++
		}
	}

	// Count shortcuts that would be needed (simplified: worst case = in * out).
	// For accurate count we'd run witness search, but for ordering a simpler
	// heuristic is faster and good enough.
	edgeDifference := activeIn*activeOut - (activeIn + activeOut)

	return edgeDifference + 2*contractedNeighbors + level
}

// candidate is one direction's proposal for an up-edge between two nodes,
// before same-weight forward/backward candidates are merged into a single
// CHGraph edge record.
type candidate struct {
	to      uint32
	weight  uint32
	payload graph.Payload
	used    bool
}

// payloadOf converts an adjEntry into the Payload tagged union consumed by
// graph.EdgeRecord: a shortcut carries its middle node, an original edge
// carries the index of the edge it was copied from in the ingested graph.
func payloadOf(e adjEntry) graph.Payload {
	if e.middle >= 0 {
		return graph.ShortcutPayload(uint32(e.middle))
	}
	return graph.OriginalPayload(e.origEdge)
}

// buildFacade assembles the unified per-node CSR edge table a CHGraph
// Facade exposes, from the contracted adjacency lists and node ranks.
//
// Each node u has forward candidates (outAdj[u] entries with rank[u] <
// rank[v], usable by a forward search advancing u→v) and backward
// candidates (inAdj[u] entries with rank[u] < rank[v], representing an
// original-direction edge v→u that a backward search traverses reversed,
// as u→v). When a forward and a backward candidate share both endpoint and
// weight, they describe the same physical bidirectional road segment and
// are merged into one record with both flags set; candidates left over
// (mismatched weight, or one-directional) become separate single-flag
// records, preserving parallel edges.
func buildFacade(orig *graph.Graph, outAdj, inAdj [][]adjEntry, rank []uint32) *graph.CHGraph {
	n := orig.NumNodes

	var records []graph.EdgeRecord

	for u := uint32(0); u < n; u++ {
		fwdByTarget := make(map[uint32][]*candidate)
		bwdByTarget := make(map[uint32][]*candidate)

		for _, e := range outAdj[u] {
			if rank[u] < rank[e.to] {
				c := &candidate{to: e.to, weight: e.weight, payload: payloadOf(e)}
				fwdByTarget[e.to] = append(fwdByTarget[e.to], c)
			}
		}
		for _, e := range inAdj[u] {
			if rank[u] < rank[e.to] {
				c := &candidate{to: e.to, weight: e.weight, payload: payloadOf(e)}
				bwdByTarget[e.to] = append(bwdByTarget[e.to], c)
			}
		}

		for v, fwds := range fwdByTarget {
			bwds := bwdByTarget[v]
			for _, f := range fwds {
				// First-available same-weight backward candidate wins the merge.
				for _, b := range bwds {
					if !b.used && b.weight == f.weight {
						b.used = true
						f.used = true
						records = append(records, graph.EdgeRecord{
							From: u, To: v, Weight: int32(f.weight),
							Forward: true, Backward: true, Payload: f.payload,
						})
						break
					}
				}
				if !f.used {
					records = append(records, graph.EdgeRecord{
						From: u, To: v, Weight: int32(f.weight),
						Forward: true, Backward: false, Payload: f.payload,
					})
				}
			}
			for _, b := range bwds {
				if !b.used {
					records = append(records, graph.EdgeRecord{
						From: u, To: v, Weight: int32(b.weight),
						Forward: false, Backward: true, Payload: b.payload,
					})
				}
			}
		}
		// Targets with only backward candidates (no forward candidate at all).
		for v, bwds := range bwdByTarget {
			if _, hasFwd := fwdByTarget[v]; hasFwd {
				continue
			}
			for _, b := range bwds {
				records = append(records, graph.EdgeRecord{
					From: u, To: v, Weight: int32(b.weight),
					Forward: false, Backward: true, Payload: b.payload,
				})
			}
		}
	}

	log.Printf("Facade: %d up-edge records from %d nodes", len(records), n)

	// Annotation tables are indexed by original-edge id, i.e. by the same
	// index space as orig.EdgeNameIndex / orig.FirstOut-based CSR. Turn
	// instructions require multi-way intersection classification that the
	// ingested graph does not retain, so every original edge gets the
	// placeholder "no turn" instruction.
	nameIndex := make([]uint32, orig.NumEdges)
	copy(nameIndex, orig.EdgeNameIndex)
	turnInstr := make([]uint8, orig.NumEdges)

	chg, err := graph.NewCHGraph(n, records, nameIndex, turnInstr)
	if err != nil {
		// NewCHGraph rejects only structurally invalid input (out-of-range
		// node ids, non-positive weight); contraction above never produces
		// either, so this indicates a bug in buildFacade itself.
		panic(fmt.Sprintf("ch: built an invalid facade: %v", err))
	}
	chg.Rank = rank
	chg.NodeLat = orig.NodeLat
	chg.NodeLon = orig.NodeLon
	chg.GeoFirstOut = orig.GeoFirstOut
	chg.GeoShapeLat = orig.GeoShapeLat
	chg.GeoShapeLon = orig.GeoShapeLon
	chg.OrigFirstOut = orig.FirstOut
	chg.OrigHead = orig.Head
	chg.OrigWeight = orig.Weight
	return chg
}

// Priority queue implementation for contraction ordering.

type pqEntry struct {
	node     uint32
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}
