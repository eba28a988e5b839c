package routing

import (
	"math"

	"github.com/tidwall/rtree"

	"github.com/jordanmarkov/osrm-backend/pkg/geo"
	"github.com/jordanmarkov/osrm-backend/pkg/graph"
)

// degreesPerMeter approximates 1 meter in degrees of latitude/longitude,
// used only to order the R-tree's nearest-neighbor expansion; the actual
// snap distance is always recomputed exactly via geo.PointToSegmentDist.
const degreesPerMeter = 1.0 / 111320.0

// rtreeItem is the R-tree's leaf payload: an original-graph edge plus the
// node it was indexed from, mirroring Snapper's cellEdge.
type rtreeItem struct {
	edgeIdx uint32
	source  uint32
}

// Locator provides nearest-road snapping over an R-tree of edge bounding
// boxes, an alternative to Snapper's flat grid for graphs where a fixed
// cell size stops being a good fit for the point density.
type Locator struct {
	tree rtree.RTreeG[rtreeItem]
	g    *graph.Graph
}

// NewLocator indexes every edge of g by its bounding box.
func NewLocator(g *graph.Graph) *Locator {
	loc := &Locator{g: g}
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			min := [2]float64{
				math.Min(g.NodeLat[u], g.NodeLat[v]),
				math.Min(g.NodeLon[u], g.NodeLon[v]),
			}
			max := [2]float64{
				math.Max(g.NodeLat[u], g.NodeLat[v]),
				math.Max(g.NodeLon[u], g.NodeLon[v]),
			}
			loc.tree.Insert(min, max, rtreeItem{edgeIdx: e, source: u})
		}
	}
	return loc
}

// boxDistSq is the squared degree-distance from (px, py) to the box
// [min, max], 0 when the point falls inside it.
func boxDistSq(px, py float64, min, max [2]float64) float64 {
	dx := 0.0
	if px < min[0] {
		dx = min[0] - px
	} else if px > max[0] {
		dx = px - max[0]
	}
	dy := 0.0
	if py < min[1] {
		dy = min[1] - py
	} else if py > max[1] {
		dy = py - max[1]
	}
	return dx*dx + dy*dy
}

// Snap finds the nearest road segment to the given lat/lng by walking the
// R-tree's Nearby expansion in ascending box-distance order, stopping as
// soon as a box's lower bound alone can no longer beat the best exact
// distance found so far.
func (loc *Locator) Snap(lat, lng float64) (SnapResult, error) {
	bestDist := math.Inf(1)
	found := false
	var bestResult SnapResult

	loc.tree.Nearby(
		func(min, max [2]float64, _ rtreeItem, _ bool) float64 {
			return boxDistSq(lat, lng, min, max)
		},
		func(min, max [2]float64, data rtreeItem, _ float64) bool {
			if found {
				boundMeters := math.Sqrt(boxDistSq(lat, lng, min, max)) / degreesPerMeter
				if boundMeters > bestDist {
					return false
				}
			}

			u := data.source
			v := loc.g.Head[data.edgeIdx]
			exactDist, ratio := geo.PointToSegmentDist(
				lat, lng,
				loc.g.NodeLat[u], loc.g.NodeLon[u],
				loc.g.NodeLat[v], loc.g.NodeLon[v],
			)
			if exactDist < bestDist {
				bestDist = exactDist
				found = true
				bestResult = SnapResult{
					EdgeIdx: data.edgeIdx,
					NodeU:   u,
					NodeV:   v,
					Ratio:   ratio,
					Dist:    exactDist,
				}
			}
			return true
		},
	)

	if !found || bestDist > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return bestResult, nil
}
