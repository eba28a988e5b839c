package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jordanmarkov/osrm-backend/pkg/api"
	"github.com/jordanmarkov/osrm-backend/pkg/graph"
	"github.com/jordanmarkov/osrm-backend/pkg/routing"
)

func main() {
	graphPath := flag.String("graph", "graph.bin", "Path to preprocessed graph binary")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	flag.Parse()

	start := time.Now()

	// Load graph.
	log.Printf("Loading graph from %s...", *graphPath)
	chg, err := graph.ReadBinary(*graphPath)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	log.Printf("Loaded: %d nodes, %d up-edges (%d fwd, %d bwd)",
		chg.NumNodes(), chg.NumEdges(), chg.NumForwardEdges(), chg.NumBackwardEdges())

	// The facade only carries upward CH edges; snapping and geometry
	// lookup need every original edge, which OrigGraph reconstructs from
	// the pre-contraction arrays carried alongside it.
	origGraph := chg.OrigGraph()

	// Build routing engine.
	log.Println("Building spatial snap index...")
	engine := routing.NewEngine(chg, origGraph)

	loadTime := time.Since(start)
	log.Printf("Ready in %s", loadTime.Round(time.Millisecond))

	// Setup HTTP server.
	addr := fmt.Sprintf(":%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	stats := api.StatsResponse{
		NumNodes:    chg.NumNodes(),
		NumFwdEdges: chg.NumForwardEdges(),
		NumBwdEdges: chg.NumBackwardEdges(),
	}

	handlers := api.NewHandlers(engine, stats)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
