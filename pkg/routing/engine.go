package routing

import (
	"context"
	"math"

	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// Segment represents a road segment in the route result.
type Segment struct {
	DistanceMeters float64
	Geometry       []LatLng
}

// RouteResult is the output of a route query.
type RouteResult struct {
	TotalDistanceMeters float64
	Segments            []Segment
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng) (*RouteResult, error)
}

// edgeLocator snaps a query point to the nearest road segment. Snapper
// (flat grid) and Locator (R-tree) both implement it; Engine tries the
// R-tree first and falls back to the grid on a miss, since the two index
// the same edges by different means and may disagree near a cell boundary.
type edgeLocator interface {
	Snap(lat, lng float64) (SnapResult, error)
}

// Engine implements Router over a CH Facade, adding the mid-edge query
// handling (nearest-neighbor snapping, partial-edge seeding, geometry
// reconstruction) that sits above the core per §1's scope boundary.
type Engine struct {
	chg       *graph.CHGraph
	origGraph *graph.Graph // for geometry and snap
	locator   edgeLocator
	fallback  edgeLocator
	state     *EngineState
}

// NewEngine creates a routing engine from a CH graph and the original graph.
func NewEngine(chg *graph.CHGraph, origGraph *graph.Graph) *Engine {
	return &Engine{
		chg:       chg,
		origGraph: origGraph,
		locator:   NewLocator(origGraph),
		fallback:  NewSnapper(origGraph),
		state:     NewEngineState(chg.NumNodes()),
	}
}

// snap resolves a query point via the R-tree locator, retrying against the
// grid-based Snapper only if the locator itself reports a miss.
func (e *Engine) snap(lat, lng float64) (SnapResult, error) {
	result, err := e.locator.Snap(lat, lng)
	if err == nil {
		return result, nil
	}
	return e.fallback.Snap(lat, lng)
}

// Route computes the shortest path between two points.
func (e *Engine) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	startSnap, err := e.snap(start.Lat, start.Lng)
	if err != nil {
		return nil, err
	}
	endSnap, err := e.snap(end.Lat, end.Lng)
	if err != nil {
		return nil, err
	}

	pair := &e.state.Primary
	pair.Reset()

	seedForward(pair.Forward, e.origGraph, startSnap)
	seedBackward(pair.Reverse, e.origGraph, endSnap)

	meetingNode, upperBound := runBidirectionalSearch(e.chg, pair, 0, 0, false)
	if meetingNode == graph.SpecialNodeID || upperBound == math.MaxInt64 {
		return nil, ErrNoRoute
	}

	packed, err := RetrievePackedPath(pair.Forward, pair.Reverse, meetingNode)
	if err != nil {
		return nil, err
	}

	origNodes, err := UnpackNodes(e.chg, packed)
	if err != nil {
		return nil, err
	}

	totalDistMeters := float64(upperBound) / 1000.0
	geometry := e.buildGeometry(origNodes)

	// The node path starts and ends at graph nodes; the route itself starts
	// and ends at the snapped points on the query edges.
	g := e.origGraph
	snapPoint := func(s SnapResult) LatLng {
		return LatLng{
			Lat: g.NodeLat[s.NodeU] + s.Ratio*(g.NodeLat[s.NodeV]-g.NodeLat[s.NodeU]),
			Lng: g.NodeLon[s.NodeU] + s.Ratio*(g.NodeLon[s.NodeV]-g.NodeLon[s.NodeU]),
		}
	}
	if startPt := snapPoint(startSnap); len(geometry) == 0 || geometry[0] != startPt {
		geometry = append([]LatLng{startPt}, geometry...)
	}
	if endPt := snapPoint(endSnap); geometry[len(geometry)-1] != endPt {
		geometry = append(geometry, endPt)
	}

	return &RouteResult{
		TotalDistanceMeters: totalDistMeters,
		Segments: []Segment{
			{DistanceMeters: totalDistMeters, Geometry: geometry},
		},
	}, nil
}

// buildGeometry converts a sequence of original graph node IDs into lat/lng
// coordinates, including intermediate shape points from edge geometry.
func (e *Engine) buildGeometry(nodes []graph.NodeID) []LatLng {
	if len(nodes) == 0 {
		return nil
	}

	g := e.origGraph
	var geom []LatLng

	geom = append(geom, LatLng{Lat: g.NodeLat[nodes[0]], Lng: g.NodeLon[nodes[0]]})

	for i := 0; i < len(nodes)-1; i++ {
		u := nodes[i]
		v := nodes[i+1]

		if edgeIdx, ok := findOrigEdge(g, u, v); ok && g.GeoFirstOut != nil {
			geoStart := g.GeoFirstOut[edgeIdx]
			geoEnd := g.GeoFirstOut[edgeIdx+1]
			for k := geoStart; k < geoEnd; k++ {
				geom = append(geom, LatLng{Lat: g.GeoShapeLat[k], Lng: g.GeoShapeLon[k]})
			}
		}

		geom = append(geom, LatLng{Lat: g.NodeLat[v], Lng: g.NodeLon[v]})
	}

	return geom
}

// findOrigEdge finds an edge u→v in the ingested (pre-contraction) graph,
// for geometry lookup — the contracted Facade's edges may be shortcuts
// and don't carry shape points.
func findOrigEdge(g *graph.Graph, u, v graph.NodeID) (graph.EdgeID, bool) {
	start, end := g.EdgesFrom(u)
	for e := start; e < end; e++ {
		if g.Head[e] == v {
			return e, true
		}
	}
	return 0, false
}

// seedForward seeds the forward heap with both endpoints of the snapped
// edge, each at its partial distance from the query point — the
// phantom-node seeding a mid-edge query needs, grounded on the same
// two-endpoint seeding the ingested-graph Snapper always implied, now
// feeding a QueryHeap instead of a plain PQ.
func seedForward(h *QueryHeap, g *graph.Graph, snap SnapResult) {
	u := snap.NodeU
	v := snap.NodeV
	weight := g.Weight[snap.EdgeIdx]

	dv := int64(math.Round(float64(weight) * (1 - snap.Ratio)))
	h.Insert(v, dv, HeapData{Parent: v})

	du := int64(math.Round(float64(weight) * snap.Ratio))
	h.Insert(u, du, HeapData{Parent: u})
}

// seedBackward seeds the reverse heap with both endpoints of the snapped
// edge, each at its partial distance to the query point.
func seedBackward(h *QueryHeap, g *graph.Graph, snap SnapResult) {
	u := snap.NodeU
	v := snap.NodeV
	weight := g.Weight[snap.EdgeIdx]

	du := int64(math.Round(float64(weight) * snap.Ratio))
	h.Insert(u, du, HeapData{Parent: u})

	dv := int64(math.Round(float64(weight) * (1 - snap.Ratio)))
	h.Insert(v, dv, HeapData{Parent: v})
}
