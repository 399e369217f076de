package proximity

import (
	"fmt"
	"math"

	"github.com/questline-games/manhunt/internal/geo"
)

// metersPerDegreeLat is the flat-earth conversion the grid uses for cell
// assignment. Exact distance filtering happens after the grid lookup, so
// the rounding here only affects which candidates get compared, never the
// final answer.
const metersPerDegreeLat = 111000.0

// defaultCellSizeMultiplier widens cells beyond the search threshold so any true
// neighbor of a player is guaranteed to fall inside the player's 3x3 cell
// block.
const defaultCellSizeMultiplier = 1.2

// gridEntry is a player placed in the grid at an already-smoothed
// coordinate.
type gridEntry struct {
	ID    string
	Coord geo.Coordinate
}

// spatialGrid is an ephemeral partitioning of players into fixed-size
// square cells. It is rebuilt for every scan and never shared across
// goroutines, so it carries no locking.
type spatialGrid struct {
	cellSize float64
	cells    map[string][]gridEntry
}

// newSpatialGrid builds a grid whose cells are thresholdMeters times
// multiplier on a side. The cell size is clamped to one meter so the
// cos(latitude) term in the longitude conversion cannot collapse cells to
// zero width near the poles.
func newSpatialGrid(thresholdMeters, multiplier float64) *spatialGrid {
	if multiplier < 1.0 {
		multiplier = defaultCellSizeMultiplier
	}
	size := thresholdMeters * multiplier
	if size < 1.0 {
		size = 1.0
	}
	return &spatialGrid{cellSize: size, cells: make(map[string][]gridEntry)}
}

// cellFor maps a coordinate to its cell indices, converting degrees to
// meters at the coordinate's own latitude.
func (g *spatialGrid) cellFor(c geo.Coordinate) (int, int) {
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(c.Latitude*math.Pi/180)
	cellX := int(math.Floor(c.Longitude * metersPerDegreeLon / g.cellSize))
	cellY := int(math.Floor(c.Latitude * metersPerDegreeLat / g.cellSize))
	return cellX, cellY
}

func cellKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

func (g *spatialGrid) insert(id string, coord geo.Coordinate) {
	x, y := g.cellFor(coord)
	key := cellKey(x, y)
	g.cells[key] = append(g.cells[key], gridEntry{ID: id, Coord: coord})
}

// neighborhood returns every entry in the 3x3 block of cells around coord,
// including the entry for the queried player itself. Callers filter by
// exact distance afterwards; the grid guarantees no true neighbor within
// the threshold is missed, at the cost of some false positives.
func (g *spatialGrid) neighborhood(coord geo.Coordinate) []gridEntry {
	cx, cy := g.cellFor(coord)

	var out []gridEntry
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			out = append(out, g.cells[cellKey(cx+dx, cy+dy)]...)
		}
	}
	return out
}
