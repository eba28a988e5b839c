package routing

import "github.com/jordanmarkov/osrm-backend/pkg/graph"

// maxUnpackDepth bounds the parent-chain walks in RetrievePackedPath and
// RetrievePackedPathSingle as a defense against a corrupted parent chain
// looping forever. The explicit-stack loops in UnpackPath and UnpackNodes
// are not bounded by it.
const maxUnpackDepth = 4096

// RetrievePackedPath walks parent pointers in both heaps from meetingNode
// to yield the high-level node sequence [source, ..., meetingNode, ...,
// target], per §4.5.1. Adjacent pairs in the result are edges present in
// the graph (possibly shortcuts).
func RetrievePackedPath(fwd, bwd *QueryHeap, meetingNode graph.NodeID) ([]graph.NodeID, error) {
	var fromSource []graph.NodeID
	node := meetingNode
	for {
		fromSource = append(fromSource, node)
		parent := fwd.GetData(node).Parent
		if parent == node {
			break
		}
		node = parent
		if len(fromSource) > maxUnpackDepth {
			return nil, &ErrInvariantViolation{Reason: "packed-path forward parent chain did not terminate"}
		}
	}
	// fromSource is [meetingNode, ..., source]; reverse to [source, ..., meetingNode].
	for i, j := 0, len(fromSource)-1; i < j; i, j = i+1, j-1 {
		fromSource[i], fromSource[j] = fromSource[j], fromSource[i]
	}

	packed := fromSource
	node = meetingNode
	for {
		parent := bwd.GetData(node).Parent
		if parent == node {
			break
		}
		packed = append(packed, parent)
		node = parent
		if len(packed) > maxUnpackDepth {
			return nil, &ErrInvariantViolation{Reason: "packed-path reverse parent chain did not terminate"}
		}
	}

	return packed, nil
}

// RetrievePackedPathSingle walks parent pointers in a single heap from
// node back to its root, for callers that only ran one side of a search
// (e.g. one-to-many distance tables, or recovering a path within a single
// settled tree without a matching opposite-direction search).
func RetrievePackedPathSingle(h *QueryHeap, node graph.NodeID) ([]graph.NodeID, error) {
	var path []graph.NodeID
	for {
		path = append(path, node)
		parent := h.GetData(node).Parent
		if parent == node {
			break
		}
		node = parent
		if len(path) > maxUnpackDepth {
			return nil, &ErrInvariantViolation{Reason: "single-heap parent chain did not terminate"}
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// findMinEdge implements the edge-selection rule of §4.5.2: among edges
// out of a with target b and the given direction flag set, pick the one
// with the smallest weight. found is false if none match.
func findMinEdge(facade graph.Facade, a, b graph.NodeID, wantForward bool) (e graph.EdgeID, data graph.EdgeData, found bool) {
	begin, end := facade.BeginEdges(a), facade.EndEdges(a)
	var bestWeight int32
	for cur := begin; cur < end; cur++ {
		d := facade.EdgeData(cur)
		if d.Target != b {
			continue
		}
		if wantForward && !d.Forward {
			continue
		}
		if !wantForward && !d.Backward {
			continue
		}
		if !found || d.Weight < bestWeight {
			e, data, found = cur, d, true
			bestWeight = d.Weight
		}
	}
	return e, data, found
}

// resolveEdge finds the single edge record standing for the (a, b) pair
// per the two-step edge-selection rule: first forward edges out of a,
// then (if none) backward edges out of b.
func resolveEdge(facade graph.Facade, a, b graph.NodeID) (graph.EdgeData, error) {
	if _, data, ok := findMinEdge(facade, a, b, true); ok {
		return data, nil
	}
	if _, data, ok := findMinEdge(facade, b, a, false); ok {
		return data, nil
	}
	return graph.EdgeData{}, &ErrInvariantViolation{Reason: "no edge found resolving packed-path pair"}
}

// UnpackPath transforms a packed node sequence into an ordered list of
// PathData records for original edges only, recursively expanding every
// shortcut via an explicit stack (§4.5.2) rather than recursion, so a deep
// shortcut chain on a continental-scale graph cannot blow the call stack.
func UnpackPath(facade graph.Facade, packed []graph.NodeID) ([]graph.PathData, error) {
	if len(packed) < 2 {
		return nil, nil
	}

	type pair struct{ a, b graph.NodeID }

	stack := make([]pair, 0, len(packed)-1)
	// Push in reverse order so popping (LIFO) yields left-to-right traversal.
	for i := len(packed) - 2; i >= 0; i-- {
		stack = append(stack, pair{packed[i], packed[i+1]})
	}

	var out []graph.PathData
	for len(stack) > 0 {
		n := len(stack) - 1
		p := stack[n]
		stack = stack[:n]

		data, err := resolveEdge(facade, p.a, p.b)
		if err != nil {
			return nil, err
		}

		if data.Payload.IsShortcut() {
			mid := data.Payload.Middle()
			// Reverse order so (a, mid) pops before (mid, b).
			stack = append(stack, pair{mid, p.b}, pair{p.a, mid})
			continue
		}

		ref := data.Payload.EdgeRef()
		out = append(out, graph.PathData{
			Payload:         data.Payload,
			NameIndex:       facade.NameIndex(ref),
			TurnInstruction: facade.TurnInstruction(ref),
			Weight:          data.Weight,
		})
	}

	return out, nil
}

// UnpackNodes is the node-level variant of UnpackPath: it produces only
// the sequence of original graph nodes traversed by packed, with no edge
// metadata, terminating in the final node of packed.
func UnpackNodes(facade graph.Facade, packed []graph.NodeID) ([]graph.NodeID, error) {
	if len(packed) < 2 {
		return packed, nil
	}

	type pair struct{ a, b graph.NodeID }

	stack := make([]pair, 0, len(packed)-1)
	for i := len(packed) - 2; i >= 0; i-- {
		stack = append(stack, pair{packed[i], packed[i+1]})
	}

	var out []graph.NodeID
	for len(stack) > 0 {
		n := len(stack) - 1
		p := stack[n]
		stack = stack[:n]

		data, err := resolveEdge(facade, p.a, p.b)
		if err != nil {
			return nil, err
		}

		if data.Payload.IsShortcut() {
			mid := data.Payload.Middle()
			stack = append(stack, pair{mid, p.b}, pair{p.a, mid})
			continue
		}

		out = append(out, p.a)
	}

	out = append(out, packed[len(packed)-1])
	return out, nil
}
