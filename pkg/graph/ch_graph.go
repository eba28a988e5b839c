package graph

import "fmt"

// CHGraph is the in-memory Facade implementation: a contracted, directed,
// weighted graph augmented with shortcut edges, stored as a single CSR
// edge array per node (not split into separate forward/backward overlays)
// so that BeginEdges/EndEdges give the full traversable range regardless
// of which direction a search is advancing — RoutingStep filters by the
// per-edge Forward/Backward flags instead.
type CHGraph struct {
	numNodes NodeID
	firstOut []uint32 // len numNodes+1

	target   []NodeID
	weight   []int32
	forward  []bool
	backward []bool
	shortcut []bool

	// payloadEdge[e] is valid iff !shortcut[e]; payloadMiddle[e] iff shortcut[e].
	payloadEdge   []EdgeID
	payloadMiddle []NodeID

	// Annotation table for original edges, indexed by the original-edge id
	// carried in payloadEdge (i.e. by EdgeRef(), not by graph EdgeID).
	nameIndex []uint32
	turnInstr []uint8

	// Rank is retained for diagnostics and tests; not part of the Facade
	// contract and not needed at query time.
	Rank []NodeID

	// Node coordinates and edge shape geometry, carried through from the
	// original ingested graph for rendering/geometry reconstruction.
	NodeLat []float64
	NodeLon []float64

	GeoFirstOut []uint32
	GeoShapeLat []float64
	GeoShapeLon []float64

	// The full pre-contraction graph, carried through unchanged: a CH
	// facade only stores upward edges, which isn't enough for nearest-road
	// snapping or edge-geometry lookup, both of which need every original
	// edge regardless of rank direction.
	OrigFirstOut []uint32
	OrigHead     []uint32
	OrigWeight   []uint32
}

// OrigGraph reconstructs the pre-contraction Graph carried alongside the
// facade, for nearest-road snapping and geometry lookup.
func (g *CHGraph) OrigGraph() *Graph {
	return &Graph{
		NumNodes:      g.numNodes,
		NumEdges:      uint32(len(g.OrigHead)),
		FirstOut:      g.OrigFirstOut,
		Head:          g.OrigHead,
		Weight:        g.OrigWeight,
		NodeLat:       g.NodeLat,
		NodeLon:       g.NodeLon,
		GeoFirstOut:   g.GeoFirstOut,
		GeoShapeLat:   g.GeoShapeLat,
		GeoShapeLon:   g.GeoShapeLon,
	}
}

// EdgeRecord is one row of the flat edge table consumed by NewCHGraph.
type EdgeRecord struct {
	From, To NodeID
	Weight   int32
	Forward  bool
	Backward bool
	Payload  Payload
}

// NewCHGraph assembles a CHGraph from a flat, unordered list of edge
// records plus per-original-edge annotation. Edges are grouped by From
// and laid out in CSR order; the relative order of edges sharing a From
// is preserved (stable sort), which keeps unpacking deterministic.
func NewCHGraph(numNodes NodeID, edges []EdgeRecord, nameIndex []uint32, turnInstr []uint8) (*CHGraph, error) {
	for i, e := range edges {
		if e.Weight <= 0 {
			return nil, fmt.Errorf("graph: edge %d has non-positive weight %d", i, e.Weight)
		}
		if e.From >= numNodes || e.To >= numNodes {
			return nil, fmt.Errorf("graph: edge %d references out-of-range node (from=%d to=%d numNodes=%d)", i, e.From, e.To, numNodes)
		}
	}

	counts := make([]uint32, numNodes+1)
	for _, e := range edges {
		counts[e.From+1]++
	}
	firstOut := make([]uint32, numNodes+1)
	for i := NodeID(1); i <= numNodes; i++ {
		firstOut[i] = firstOut[i-1] + counts[i]
	}

	numEdges := uint32(len(edges))
	target := make([]NodeID, numEdges)
	weight := make([]int32, numEdges)
	forward := make([]bool, numEdges)
	backward := make([]bool, numEdges)
	shortcut := make([]bool, numEdges)
	payloadEdge := make([]EdgeID, numEdges)
	payloadMiddle := make([]NodeID, numEdges)

	cursor := make([]uint32, numNodes)
	copy(cursor, firstOut[:numNodes])
	for _, e := range edges {
		idx := cursor[e.From]
		cursor[e.From]++
		target[idx] = e.To
		weight[idx] = e.Weight
		forward[idx] = e.Forward
		backward[idx] = e.Backward
		shortcut[idx] = e.Payload.IsShortcut()
		if e.Payload.IsShortcut() {
			payloadMiddle[idx] = e.Payload.Middle()
		} else {
			payloadEdge[idx] = e.Payload.EdgeRef()
		}
	}

	return &CHGraph{
		numNodes:      numNodes,
		firstOut:      firstOut,
		target:        target,
		weight:        weight,
		forward:       forward,
		backward:      backward,
		shortcut:      shortcut,
		payloadEdge:   payloadEdge,
		payloadMiddle: payloadMiddle,
		nameIndex:     nameIndex,
		turnInstr:     turnInstr,
	}, nil
}

func (g *CHGraph) NumNodes() NodeID { return g.numNodes }

// NumEdges returns the total number of up-edge records in the facade
// (forward-only, backward-only, and merged bidirectional records each
// count once).
func (g *CHGraph) NumEdges() int { return len(g.target) }

// NumForwardEdges and NumBackwardEdges count up-edge records traversable
// in each direction, for diagnostics (a bidirectional record counts
// toward both).
func (g *CHGraph) NumForwardEdges() int {
	n := 0
	for _, f := range g.forward {
		if f {
			n++
		}
	}
	return n
}

func (g *CHGraph) NumBackwardEdges() int {
	n := 0
	for _, b := range g.backward {
		if b {
			n++
		}
	}
	return n
}

func (g *CHGraph) BeginEdges(n NodeID) EdgeID { return g.firstOut[n] }
func (g *CHGraph) EndEdges(n NodeID) EdgeID   { return g.firstOut[n+1] }

func (g *CHGraph) Target(e EdgeID) NodeID { return g.target[e] }

func (g *CHGraph) EdgeData(e EdgeID) EdgeData {
	var p Payload
	if g.shortcut[e] {
		p = ShortcutPayload(g.payloadMiddle[e])
	} else {
		p = OriginalPayload(g.payloadEdge[e])
	}
	return EdgeData{
		Target:   g.target[e],
		Weight:   g.weight[e],
		Forward:  g.forward[e],
		Backward: g.backward[e],
		Payload:  p,
	}
}

func (g *CHGraph) NameIndex(ref EdgeID) uint32 {
	if int(ref) >= len(g.nameIndex) {
		return 0
	}
	return g.nameIndex[ref]
}

func (g *CHGraph) TurnInstruction(ref EdgeID) uint8 {
	if int(ref) >= len(g.turnInstr) {
		return 0
	}
	return g.turnInstr[ref]
}

var _ Facade = (*CHGraph)(nil)
