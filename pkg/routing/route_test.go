package routing

import (
	"testing"

	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

func newTestFacade(t *testing.T, numNodes graph.NodeID, edges []graph.EdgeRecord) *graph.CHGraph {
	t.Helper()
	chg, err := graph.NewCHGraph(numNodes, edges, make([]uint32, len(edges)), make([]uint8, len(edges)))
	if err != nil {
		t.Fatalf("NewCHGraph: %v", err)
	}
	return chg
}

func TestRouteTrivialSameNode(t *testing.T) {
	facade := newTestFacade(t, 3, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 1, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
	})
	state := NewEngineState(facade.NumNodes())

	result, err := Route(facade, &state.Primary, 1, 1, 0, 0, false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.TotalWeight != 0 {
		t.Errorf("TotalWeight = %d, want 0", result.TotalWeight)
	}
	if len(result.Path) != 0 {
		t.Errorf("Path = %v, want empty", result.Path)
	}
}

func TestRouteSingleEdge(t *testing.T) {
	facade := newTestFacade(t, 2, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 42, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
	})
	state := NewEngineState(facade.NumNodes())

	result, err := Route(facade, &state.Primary, 0, 1, 0, 0, false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.TotalWeight != 42 {
		t.Errorf("TotalWeight = %d, want 42", result.TotalWeight)
	}
	if len(result.Path) != 1 || result.Path[0].Weight != 42 {
		t.Fatalf("Path = %+v, want one edge of weight 42", result.Path)
	}
}

func TestRouteTwoHopNoShortcut(t *testing.T) {
	// 0 -> 1 -> 2, no shortcut edge summarizing the pair.
	facade := newTestFacade(t, 3, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 10, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
		{From: 1, To: 2, Weight: 20, Forward: true, Backward: false, Payload: graph.OriginalPayload(1)},
	})
	state := NewEngineState(facade.NumNodes())

	result, err := Route(facade, &state.Primary, 0, 2, 0, 0, false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.TotalWeight != 30 {
		t.Errorf("TotalWeight = %d, want 30", result.TotalWeight)
	}
	if len(result.Path) != 2 {
		t.Fatalf("Path length = %d, want 2", len(result.Path))
	}
	if result.Path[0].Weight != 10 || result.Path[1].Weight != 20 {
		t.Errorf("Path weights = %d, %d, want 10, 20", result.Path[0].Weight, result.Path[1].Weight)
	}
}

func TestRouteShortcutUnpacksToOriginalEdges(t *testing.T) {
	// 0 -> 1 -> 2 is summarized by a shortcut 0 -> 2 with middle node 1.
	// The shortcut is cheaper to reach via the search (direct record),
	// but must unpack back to the two original edges.
	facade := newTestFacade(t, 3, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 10, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
		{From: 1, To: 2, Weight: 20, Forward: true, Backward: false, Payload: graph.OriginalPayload(1)},
		{From: 0, To: 2, Weight: 30, Forward: true, Backward: false, Payload: graph.ShortcutPayload(1)},
	})
	state := NewEngineState(facade.NumNodes())

	result, err := Route(facade, &state.Primary, 0, 2, 0, 0, false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.TotalWeight != 30 {
		t.Errorf("TotalWeight = %d, want 30", result.TotalWeight)
	}
	if len(result.Path) != 2 {
		t.Fatalf("Path length = %d, want 2 (shortcut must unpack to both original edges)", len(result.Path))
	}
	if result.Path[0].Payload.EdgeRef() != 0 || result.Path[1].Payload.EdgeRef() != 1 {
		t.Errorf("unpacked edge refs = %d, %d, want 0, 1", result.Path[0].Payload.EdgeRef(), result.Path[1].Payload.EdgeRef())
	}
}

func TestRouteTieBreakPrefersSmallestWeightForwardEdge(t *testing.T) {
	// Two parallel 0 -> 1 records with different weights; edge-selection
	// during unpacking must pick the smaller one.
	facade := newTestFacade(t, 2, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 50, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
		{From: 0, To: 1, Weight: 10, Forward: true, Backward: false, Payload: graph.OriginalPayload(1)},
	})

	data, err := resolveEdge(facade, 0, 1)
	if err != nil {
		t.Fatalf("resolveEdge: %v", err)
	}
	if data.Weight != 10 || data.Payload.EdgeRef() != 1 {
		t.Errorf("resolveEdge picked weight=%d ref=%d, want weight=10 ref=1", data.Weight, data.Payload.EdgeRef())
	}
}

func TestRouteWithNonzeroOffsetsSatisfiesPathValidityFormula(t *testing.T) {
	// 0 -> 1 -> 2, mid-edge query offsets at both ends. Property 2
	// (spec.md §8): sum(PathData.weight) == total_weight - source_offset -
	// target_offset.
	facade := newTestFacade(t, 3, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 10, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
		{From: 1, To: 2, Weight: 20, Forward: true, Backward: false, Payload: graph.OriginalPayload(1)},
	})
	state := NewEngineState(facade.NumNodes())

	const sourceOffset, targetOffset = int64(4), int64(7)
	result, err := Route(facade, &state.Primary, 0, 2, sourceOffset, targetOffset, false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	var pathWeight int64
	for _, p := range result.Path {
		pathWeight += int64(p.Weight)
	}
	if pathWeight != result.TotalWeight-sourceOffset-targetOffset {
		t.Errorf("sum(PathData.weight) = %d, want total_weight(%d) - source_offset(%d) - target_offset(%d) = %d",
			pathWeight, result.TotalWeight, sourceOffset, targetOffset, result.TotalWeight-sourceOffset-targetOffset)
	}
	if result.TotalWeight != 30+sourceOffset+targetOffset {
		t.Errorf("TotalWeight = %d, want %d", result.TotalWeight, 30+sourceOffset+targetOffset)
	}
}

func TestRouteSameNodeWithOffsetsReturnsOffsetSum(t *testing.T) {
	facade := newTestFacade(t, 2, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 1, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
	})
	state := NewEngineState(facade.NumNodes())

	result, err := Route(facade, &state.Primary, 1, 1, 3, 5, false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if result.TotalWeight != 8 {
		t.Errorf("TotalWeight = %d, want 8 (source_offset + target_offset)", result.TotalWeight)
	}
	if len(result.Path) != 0 {
		t.Errorf("Path = %v, want empty", result.Path)
	}
}

func TestRouteViaChainsLegsAndSumsWeights(t *testing.T) {
	// 0 -> 1 -> 2 -> 3, routed via waypoints [0, 1, 2, 3] as three legs.
	facade := newTestFacade(t, 4, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 10, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
		{From: 1, To: 2, Weight: 20, Forward: true, Backward: false, Payload: graph.OriginalPayload(1)},
		{From: 2, To: 3, Weight: 30, Forward: true, Backward: false, Payload: graph.OriginalPayload(2)},
	})
	state := NewEngineState(facade.NumNodes())

	result, err := RouteVia(facade, state, []graph.NodeID{0, 1, 2, 3}, false)
	if err != nil {
		t.Fatalf("RouteVia: %v", err)
	}
	if result.TotalWeight != 60 {
		t.Errorf("TotalWeight = %d, want 60", result.TotalWeight)
	}
	if len(result.Path) != 3 {
		t.Fatalf("Path length = %d, want 3", len(result.Path))
	}
	if state.auxUsed != 0 {
		t.Errorf("auxUsed = %d, want 0 (every borrow must be released)", state.auxUsed)
	}
}

func TestRouteViaRequiresAtLeastTwoWaypoints(t *testing.T) {
	facade := newTestFacade(t, 2, nil)
	state := NewEngineState(facade.NumNodes())

	_, err := RouteVia(facade, state, []graph.NodeID{0}, false)
	if err != ErrTooFewWaypoints {
		t.Errorf("err = %v, want ErrTooFewWaypoints", err)
	}
}

func TestRouteDisconnectedReturnsNoRoute(t *testing.T) {
	facade := newTestFacade(t, 3, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 1, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
	})
	state := NewEngineState(facade.NumNodes())

	_, err := Route(facade, &state.Primary, 0, 2, 0, 0, false)
	if err != ErrNoRoute {
		t.Errorf("err = %v, want ErrNoRoute", err)
	}
}

func TestRouteNodeOutOfRange(t *testing.T) {
	facade := newTestFacade(t, 2, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 1, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
	})
	state := NewEngineState(facade.NumNodes())

	_, err := Route(facade, &state.Primary, 0, 5, 0, 0, false)
	if err != ErrNodeOutOfRange {
		t.Errorf("err = %v, want ErrNodeOutOfRange", err)
	}
}

func TestRouteHeapReuseIsDeterministic(t *testing.T) {
	// Repeated queries through the same pooled EngineState must produce the
	// same result each time, proving DeleteAll's partial reset never leaks
	// state between queries.
	facade := newTestFacade(t, 3, []graph.EdgeRecord{
		{From: 0, To: 1, Weight: 10, Forward: true, Backward: false, Payload: graph.OriginalPayload(0)},
		{From: 1, To: 2, Weight: 20, Forward: true, Backward: false, Payload: graph.OriginalPayload(1)},
	})
	state := NewEngineState(facade.NumNodes())

	for i := 0; i < 5; i++ {
		state.Primary.Reset()
		result, err := Route(facade, &state.Primary, 0, 2, 0, 0, false)
		if err != nil {
			t.Fatalf("iteration %d: Route: %v", i, err)
		}
		if result.TotalWeight != 30 {
			t.Errorf("iteration %d: TotalWeight = %d, want 30", i, result.TotalWeight)
		}
	}
}
