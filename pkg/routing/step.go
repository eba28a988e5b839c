package routing

import "github.com/jordanmarkov/osrm-backend/pkg/graph"

// Direction selects which side of a bidirectional search a RoutingStep
// advances.
type Direction bool

const (
	Forward Direction = true
	Reverse Direction = false
)

// stepResult reports what a single RoutingStep call observed, so Route's
// driving loop can decide whether to keep alternating.
type stepResult struct {
	drained bool // true if the advanced heap emptied or was pruned (delete_all)
}

// RoutingStep performs one iteration of bidirectional CH Dijkstra,
// advancing the side named by dir. current is that side's heap, opposite
// is the other side's. meetingNode and upperBound are threaded through by
// pointer since a step may update either. offset is the edge-expansion
// offset for the side being advanced. disableStall turns off the
// stall-on-demand pruning rule while leaving everything else identical,
// for testing property 4 (stalling must never change the optimal
// distance, only how many nodes get settled).
func RoutingStep(
	facade graph.Facade,
	current, opposite *QueryHeap,
	dir Direction,
	meetingNode *graph.NodeID,
	upperBound *int64,
	offset int64,
	disableStall bool,
) stepResult {
	if current.Len() == 0 {
		return stepResult{drained: true}
	}

	node := current.DeleteMin()
	distance := current.GetKey(node)

	// Meet-in-the-middle update.
	if opposite.WasInserted(node) {
		candidate := opposite.GetKey(node) + distance
		if candidate >= 0 && candidate < *upperBound {
			*meetingNode = node
			*upperBound = candidate
		}
	}

	// Termination check: this side cannot improve on the best bound found
	// so far, so stop expanding it (but the opposite side may still make
	// progress, possibly lowering upperBound further).
	if distance-offset > *upperBound {
		current.DeleteAll()
		return stepResult{drained: true}
	}

	// Stall-on-demand: if a reverse-direction neighbor already in this
	// heap reaches node more cheaply than the path we extracted it with,
	// node was reached suboptimally and must not relax outward.
	if !disableStall {
		begin, end := facade.BeginEdges(node), facade.EndEdges(node)
		for e := begin; e < end; e++ {
			data := facade.EdgeData(e)
			reverseTraversable := data.Backward
			if dir == Reverse {
				reverseTraversable = data.Forward
			}
			if !reverseTraversable {
				continue
			}
			u := data.Target
			if current.WasInserted(u) && current.GetKey(u)+int64(data.Weight) < distance {
				return stepResult{}
			}
		}
	}

	// Relaxation.
	begin, end := facade.BeginEdges(node), facade.EndEdges(node)
	for e := begin; e < end; e++ {
		data := facade.EdgeData(e)
		traversable := data.Forward
		if dir == Reverse {
			traversable = data.Backward
		}
		if !traversable {
			continue
		}

		v := data.Target
		vDist := distance + int64(data.Weight)

		if !current.WasInserted(v) {
			current.Insert(v, vDist, HeapData{Parent: node})
		} else if vDist < current.GetKey(v) {
			current.DecreaseKey(v, vDist, HeapData{Parent: node})
		}
	}

	return stepResult{}
}
