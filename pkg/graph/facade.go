package graph

// EdgeData is the per-edge record returned by a Facade, per spec §3/§4.1.
type EdgeData struct {
	Target   NodeID
	Weight   int32 // invariant: Weight > 0
	Forward  bool  // traversable when searching forward
	Backward bool  // traversable when searching backward
	Payload  Payload
}

// PathData is one original edge on a fully unpacked path, emitted by
// routing.UnpackPath once every shortcut has been resolved to the
// original edges it summarizes.
type PathData struct {
	Payload         Payload
	NameIndex       uint32
	TurnInstruction uint8
	Weight          int32
}

// Facade is the read-only view over a contracted, directed, weighted graph
// that the query engine searches. Edges out of node n occupy the
// contiguous half-open range [BeginEdges(n), EndEdges(n)); there are no
// duplicate (source, target, direction) triples with equal weight, though
// parallel edges with differing weights may exist.
//
// A Facade is constructed once and is immutable for the lifetime of the
// engine; it is shared read-only across all query threads with no
// synchronization (§5).
type Facade interface {
	// NumNodes returns N, the number of nodes in [0, N).
	NumNodes() NodeID

	// BeginEdges and EndEdges bound the outgoing edge slots for node n.
	BeginEdges(n NodeID) EdgeID
	EndEdges(n NodeID) EdgeID

	// Target returns the destination node of edge e.
	Target(e EdgeID) NodeID

	// EdgeData returns the full record for edge e.
	EdgeData(e EdgeID) EdgeData

	// NameIndex and TurnInstruction look up annotation data for an
	// original (non-shortcut) edge identifier, as carried in a
	// non-shortcut Payload's EdgeRef().
	NameIndex(ref EdgeID) uint32
	TurnInstruction(ref EdgeID) uint8
}
