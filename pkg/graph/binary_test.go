package graph_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/jordanmarkov/osrm-backend/pkg/ch"
	"github.com/jordanmarkov/osrm-backend/pkg/graph"
	osmparser "github.com/jordanmarkov/osrm-backend/pkg/osm"
)

func buildTestCH(t *testing.T) *graph.CHGraph {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 10, ToNodeID: 20, Weight: 100, Name: "Main St"},
			{FromNodeID: 20, ToNodeID: 10, Weight: 100, Name: "Main St"},
			{FromNodeID: 20, ToNodeID: 30, Weight: 200},
			{FromNodeID: 30, ToNodeID: 20, Weight: 200},
			{FromNodeID: 10, ToNodeID: 40, Weight: 300},
			{FromNodeID: 40, ToNodeID: 10, Weight: 300},
		},
		NodeLat: map[osm.NodeID]float64{10: 1.0, 20: 1.1, 30: 1.2, 40: 1.3},
		NodeLon: map[osm.NodeID]float64{10: 103.0, 20: 103.1, 30: 103.2, 40: 103.3},
	}
	g := graph.Build(result)
	return ch.Contract(g)
}

func TestBinaryRoundTrip(t *testing.T) {
	original := buildTestCH(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.graph.bin")

	if err := graph.WriteBinary(path, original); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	loaded, err := graph.ReadBinary(path)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}

	if loaded.NumNodes() != original.NumNodes() {
		t.Errorf("NumNodes: got %d, want %d", loaded.NumNodes(), original.NumNodes())
	}

	for i := graph.NodeID(0); i < original.NumNodes(); i++ {
		if loaded.NodeLat[i] != original.NodeLat[i] {
			t.Errorf("NodeLat[%d]: got %f, want %f", i, loaded.NodeLat[i], original.NodeLat[i])
		}
	}

	// Rank is skipped during ReadBinary (only needed for preprocessing).
	if loaded.Rank != nil {
		t.Errorf("Rank should be nil after ReadBinary, got len=%d", len(loaded.Rank))
	}

	if loaded.NumEdges() != original.NumEdges() {
		t.Fatalf("NumEdges: got %d, want %d", loaded.NumEdges(), original.NumEdges())
	}
	for e := 0; e < original.NumEdges(); e++ {
		got := loaded.EdgeData(graph.EdgeID(e))
		want := original.EdgeData(graph.EdgeID(e))
		if got != want {
			t.Errorf("EdgeData[%d]: got %+v, want %+v", e, got, want)
		}
	}

	for n := graph.NodeID(0); n < original.NumNodes(); n++ {
		if loaded.BeginEdges(n) != original.BeginEdges(n) || loaded.EndEdges(n) != original.EndEdges(n) {
			t.Errorf("edge range for node %d differs after round trip", n)
		}
	}

	// The pre-contraction graph travels with the facade too, since
	// snapping and geometry lookup both need it at query time.
	origLoaded := loaded.OrigGraph()
	origOriginal := original.OrigGraph()
	if origLoaded.NumEdges != origOriginal.NumEdges {
		t.Errorf("OrigGraph NumEdges: got %d, want %d", origLoaded.NumEdges, origOriginal.NumEdges)
	}
	for e := range origOriginal.Head {
		if origLoaded.Head[e] != origOriginal.Head[e] || origLoaded.Weight[e] != origOriginal.Weight[e] {
			t.Errorf("OrigGraph edge %d differs after round trip", e)
		}
	}
}

func TestBinaryInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.graph.bin")
	os.WriteFile(path, []byte("NOT_MPROUTER_HEADER_BLAH_BLAH_BLAH_MORE_DATA"), 0644)

	_, err := graph.ReadBinary(path)
	if err == nil {
		t.Fatal("expected error for invalid magic bytes")
	}
}

func TestBinaryTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.graph.bin")
	os.WriteFile(path, []byte("MPROUTER"), 0644)

	_, err := graph.ReadBinary(path)
	if err == nil {
		t.Fatal("expected error for truncated file")
	}
}
