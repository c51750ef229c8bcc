// Package grid maps continuous geographic coordinates onto a discrete
// cell lattice and owns the flyweight registry of cell records. Cell
// identity is defined solely by the integer pair (i, j); a Grid hands
// out at most one Cell record per pair for its lifetime.
package grid

import (
	"fmt"
	"math"
)

// DefaultCellWidth is the lattice pitch in degrees. One cell covers
// roughly an 11 by 11 meter square near the equator.
const DefaultCellWidth = 1e-4

// CellKey identifies a cell by its integer lattice coordinates. It is
// the composite map key used by the flyweight registry and the
// snapshot store, avoiding string round-trips.
type CellKey struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Cell is the flyweight identity record for one grid square.
type Cell struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Key returns the composite map key for the cell.
func (c *Cell) Key() CellKey {
	if c == nil {
		return CellKey{}
	}
	return CellKey{I: c.I, J: c.J}
}

// String returns the canonical "i:j" form used to build cache and coin
// identifiers.
func (c *Cell) String() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", c.I, c.J)
}

// Grid owns the cell registry for one world instance. It is not safe
// for concurrent mutation; callers serialize access (single-writer).
type Grid struct {
	cellWidth float64
	cells     map[CellKey]*Cell
}

// New constructs a grid with the provided cell width in degrees.
// Non-positive widths fall back to DefaultCellWidth.
func New(cellWidth float64) *Grid {
	if cellWidth <= 0 {
		cellWidth = DefaultCellWidth
	}
	return &Grid{
		cellWidth: cellWidth,
		cells:     make(map[CellKey]*Cell),
	}
}

// CellWidth reports the lattice pitch in degrees.
func (g *Grid) CellWidth() float64 {
	if g == nil {
		return DefaultCellWidth
	}
	return g.cellWidth
}

// KeyAt computes the lattice coordinates containing p without touching
// the registry. Boundary coordinates resolve to the higher-index cell;
// negative coordinates use true mathematical floor, not truncation.
func (g *Grid) KeyAt(p LatLng) CellKey {
	width := g.CellWidth()
	return CellKey{
		I: int(math.Floor(p.Lat / width)),
		J: int(math.Floor(p.Lng / width)),
	}
}

// CellAt resolves the cell containing p, registering it on first
// lookup. Two calls with the same coordinates return the identical
// record.
func (g *Grid) CellAt(p LatLng) *Cell {
	if g == nil {
		return nil
	}
	return g.Lookup(g.KeyAt(p))
}

// Lookup returns the unique cell record for key, creating and
// registering it on miss.
func (g *Grid) Lookup(key CellKey) *Cell {
	if g == nil {
		return nil
	}
	if cell, ok := g.cells[key]; ok {
		return cell
	}
	if g.cells == nil {
		g.cells = make(map[CellKey]*Cell)
	}
	cell := &Cell{I: key.I, J: key.J}
	g.cells[key] = cell
	return cell
}

// BoundsOf returns the bounding rectangle of the cell. Pure: the
// rectangle is recomputed from (i, j) and the cell width on demand.
func (g *Grid) BoundsOf(c *Cell) Rect {
	if c == nil {
		return Rect{}
	}
	width := g.CellWidth()
	return Rect{
		SouthWest: LatLng{Lat: float64(c.I) * width, Lng: float64(c.J) * width},
		NorthEast: LatLng{Lat: float64(c.I+1) * width, Lng: float64(c.J+1) * width},
	}
}

// Neighborhood enumerates every cell in the square window of the given
// radius around the cell containing center, row-major from the
// south-west corner. The window is (2*radius+1)^2 cells; a negative
// radius yields an empty result.
func (g *Grid) Neighborhood(center LatLng, radius int) []*Cell {
	if g == nil || radius < 0 {
		return nil
	}
	origin := g.KeyAt(center)
	cells := make([]*Cell, 0, (2*radius+1)*(2*radius+1))
	for di := -radius; di <= radius; di++ {
		for dj := -radius; dj <= radius; dj++ {
			cells = append(cells, g.Lookup(CellKey{I: origin.I + di, J: origin.J + dj}))
		}
	}
	return cells
}

// Len reports how many cells the registry has materialized. The
// registry grows monotonically, bounded by the set of cells ever
// visited.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.cells)
}
