package proximity

import (
	"math/rand"
	"testing"

	"github.com/questline-games/manhunt/internal/geo"
)

func TestGridCellSizeClamp(t *testing.T) {
	g := newSpatialGrid(0.1, 1.2)
	if g.cellSize < 1.0 {
		t.Errorf("cellSize = %f, want clamped to at least 1 m", g.cellSize)
	}
}

func TestGridSameCellForIdenticalCoord(t *testing.T) {
	g := newSpatialGrid(50, 1.2)
	c := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	x1, y1 := g.cellFor(c)
	x2, y2 := g.cellFor(c)
	if x1 != x2 || y1 != y2 {
		t.Error("cellFor is not deterministic")
	}
}

func TestGridNeighborhoodContainsSelf(t *testing.T) {
	g := newSpatialGrid(50, 1.2)
	c := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	g.insert("me", c)

	found := false
	for _, en := range g.neighborhood(c) {
		if en.ID == "me" {
			found = true
		}
	}
	if !found {
		t.Error("neighborhood does not include the queried player's own cell")
	}
}

// The grid must be a superset filter: every pair within the threshold has
// to appear in each other's 3x3 neighborhood. Verified against random
// placements at a mid and a high latitude.
func TestGridNeverMissesTrueNeighbors(t *testing.T) {
	for _, baseLat := range []float64{40.7, 69.6} {
		const threshold = 55.0 // awareness 50 plus buffer 5
		g := newSpatialGrid(threshold, 1.2)
		rng := rand.New(rand.NewSource(7))

		type placed struct {
			id    string
			coord geo.Coordinate
		}
		var players []placed
		for i := 0; i < 400; i++ {
			// Spread over roughly 1 km of latitude and longitude.
			c := geo.Coordinate{
				Latitude:  baseLat + rng.Float64()*0.009,
				Longitude: -74.0 + rng.Float64()*0.012,
			}
			id := string(rune('A'+i/26)) + string(rune('a'+i%26))
			players = append(players, placed{id: id, coord: c})
			g.insert(id, c)
		}

		for _, p := range players {
			inHood := make(map[string]bool)
			for _, en := range g.neighborhood(p.coord) {
				inHood[en.ID] = true
			}
			for _, q := range players {
				if q.id == p.id {
					continue
				}
				if geo.Distance(p.coord, q.coord) <= threshold && !inHood[q.id] {
					t.Fatalf("lat %.1f: %s is within %.0fm of %s but outside its neighborhood",
						baseLat, q.id, threshold, p.id)
				}
			}
		}
	}
}
