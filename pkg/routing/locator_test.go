package routing

import (
	"testing"

	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

// buildLocatorTestGraph builds two roads, 0 -> 1 and 1 -> 2, over a small
// triangle of nodes for snap testing:
// node 0 at (1.0, 103.0), node 1 at (1.0, 103.01), node 2 at (1.01, 103.0).
func buildLocatorTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	return &graph.Graph{
		NumNodes: 3,
		NumEdges: 2,
		FirstOut: []uint32{0, 1, 2, 2},
		Head:     []uint32{1, 2},
		Weight:   []uint32{1000, 1000},
		NodeLat:  []float64{1.0, 1.0, 1.01},
		NodeLon:  []float64{103.0, 103.01, 103.0},
	}
}

func TestLocatorSnapsToNearestEdge(t *testing.T) {
	g := buildLocatorTestGraph(t)
	loc := NewLocator(g)

	// A point almost on top of node 0, closest to the 0->1 edge.
	result, err := loc.Snap(1.0, 103.001)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if result.NodeU != 0 || result.NodeV != 1 {
		t.Errorf("snapped to edge %d->%d, want 0->1", result.NodeU, result.NodeV)
	}
	if result.Ratio < 0 || result.Ratio > 1 {
		t.Errorf("Ratio = %f, out of [0,1]", result.Ratio)
	}
}

func TestLocatorTooFarReturnsErrPointTooFar(t *testing.T) {
	g := buildLocatorTestGraph(t)
	loc := NewLocator(g)

	_, err := loc.Snap(10.0, 110.0)
	if err != ErrPointTooFar {
		t.Errorf("err = %v, want ErrPointTooFar", err)
	}
}

func TestLocatorAgreesWithSnapperOnNearestEdge(t *testing.T) {
	g := buildLocatorTestGraph(t)
	loc := NewLocator(g)
	grid := NewSnapper(g)

	points := [][2]float64{
		{1.0, 103.001},
		{1.005, 103.005},
		{1.0, 103.009},
	}

	for _, p := range points {
		locResult, locErr := loc.Snap(p[0], p[1])
		gridResult, gridErr := grid.Snap(p[0], p[1])
		if (locErr == nil) != (gridErr == nil) {
			t.Fatalf("point %v: locator err=%v, grid err=%v", p, locErr, gridErr)
		}
		if locErr != nil {
			continue
		}
		if locResult.NodeU != gridResult.NodeU || locResult.NodeV != gridResult.NodeV {
			t.Errorf("point %v: locator picked %d->%d, grid picked %d->%d",
				p, locResult.NodeU, locResult.NodeV, gridResult.NodeU, gridResult.NodeV)
		}
	}
}
