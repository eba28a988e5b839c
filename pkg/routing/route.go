package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

// ErrNoRoute is returned when both heaps drain without the two searches
// ever meeting, i.e. upperBound stays at +infinity.
var ErrNoRoute = errors.New("routing: no route found")

// ErrNodeOutOfRange is returned when source or target is >= the facade's
// node count.
var ErrNodeOutOfRange = errors.New("routing: node id out of range")

// ErrTooFewWaypoints is returned by RouteVia when fewer than two waypoints
// are given, leaving no leg to route.
var ErrTooFewWaypoints = errors.New("routing: RouteVia requires at least two waypoints")

// ErrInvariantViolation signals corrupted preprocessed data or a bug in
// the core itself: edge-selection in unpacking finding no candidate, or a
// packed-path parent chain that does not terminate. It is always fatal to
// the query that triggered it. RoutingStep does not check edge weights
// (graph.NewCHGraph rejects non-positive ones when building a facade), and
// QueryHeap.DecreaseKey does not check that the node was inserted.
type ErrInvariantViolation struct {
	Reason string
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("routing: invariant violation: %s", e.Reason)
}

// Result is the outcome of a successful Route call.
type Result struct {
	TotalWeight int64
	Path        []graph.PathData
}

// Route answers one point-to-point shortest-path query over facade using
// the heap pair in pair, which must already be sized for facade's node
// count (via NewEngineState) and reset (DeleteAll) if it was used by a
// prior query — EngineState.Primary and EngineState.BorrowAuxiliary both
// hand out heaps satisfying this.
//
// sourceOffset/targetOffset are the edge-expansion-offset corrections for
// queries that start or end mid-edge; pass 0 for node-to-node queries.
func Route(facade graph.Facade, pair *HeapPair, source, target graph.NodeID, sourceOffset, targetOffset int64, disableStall bool) (*Result, error) {
	n := facade.NumNodes()
	if source >= n || target >= n {
		return nil, ErrNodeOutOfRange
	}

	fwd, bwd := pair.Forward, pair.Reverse

	if source == target {
		return &Result{TotalWeight: sourceOffset + targetOffset, Path: nil}, nil
	}

	// Seeding at the offset (rather than 0) bakes the partial-edge cost
	// into every distance the search settles, so upperBound ends up as the
	// true total from the mid-edge query point, not just the sum of real
	// edges between source and target — the unpacked Path stays pure graph
	// weight, which is exactly what property 2 (spec.md §8) requires.
	fwd.Insert(source, sourceOffset, HeapData{Parent: source})
	bwd.Insert(target, targetOffset, HeapData{Parent: target})

	meetingNode, upperBound := runBidirectionalSearch(facade, pair, sourceOffset, targetOffset, disableStall)
	if meetingNode == graph.SpecialNodeID || upperBound == math.MaxInt64 {
		return nil, ErrNoRoute
	}

	packed, err := RetrievePackedPath(fwd, bwd, meetingNode)
	if err != nil {
		return nil, err
	}

	path, err := UnpackPath(facade, packed)
	if err != nil {
		return nil, err
	}

	return &Result{TotalWeight: upperBound, Path: path}, nil
}

// RouteVia answers a multi-waypoint query by chaining consecutive
// point-to-point legs, each run against its own pair borrowed from state's
// auxiliary pool rather than state.Primary — the supplemented feature
// (SPEC_FULL §2) the original's extra static heap pairs existed for, here
// modeled as a per-thread pool instead of process-wide singletons. Borrowing
// a fresh pair per leg, rather than resetting and reusing one pair in a
// loop, keeps each leg's heap state independently inspectable until it is
// released, which a caller splicing in alternative-route or many-to-many
// comparisons across legs needs and a single reused pair cannot offer.
func RouteVia(facade graph.Facade, state *EngineState, waypoints []graph.NodeID, disableStall bool) (*Result, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	total := &Result{TotalWeight: 0, Path: nil}
	for i := 0; i < len(waypoints)-1; i++ {
		pair := state.BorrowAuxiliary()
		leg, err := Route(facade, pair, waypoints[i], waypoints[i+1], 0, 0, disableStall)
		state.ReleaseAuxiliary()
		if err != nil {
			return nil, err
		}
		total.TotalWeight += leg.TotalWeight
		total.Path = append(total.Path, leg.Path...)
	}
	return total, nil
}

// runBidirectionalSearch drives RoutingStep, alternating sides until both
// heaps are drained or pruned, per §4.4's caller contract. It assumes the
// caller has already seeded pair.Forward and pair.Reverse with one or
// more roots (Route seeds a single node each; callers handling mid-edge
// queries may seed both endpoints of the snapped edge with their partial
// weights instead).
func runBidirectionalSearch(facade graph.Facade, pair *HeapPair, sourceOffset, targetOffset int64, disableStall bool) (graph.NodeID, int64) {
	fwd, bwd := pair.Forward, pair.Reverse

	meetingNode := graph.SpecialNodeID
	upperBound := int64(math.MaxInt64)

	fwdDone := false
	bwdDone := false
	for !fwdDone || !bwdDone {
		if !fwdDone {
			if fwd.Len() == 0 {
				fwdDone = true
			} else {
				res := RoutingStep(facade, fwd, bwd, Forward, &meetingNode, &upperBound, sourceOffset, disableStall)
				if res.drained {
					fwdDone = true
				}
			}
		}
		if !bwdDone {
			if bwd.Len() == 0 {
				bwdDone = true
			} else {
				res := RoutingStep(facade, bwd, fwd, Reverse, &meetingNode, &upperBound, targetOffset, disableStall)
				if res.drained {
					bwdDone = true
				}
			}
		}
	}

	return meetingNode, upperBound
}
