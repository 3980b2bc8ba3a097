package resolver

import (
	"math"

	"github.com/Zachdehooge/hazard-map/internal/geo"
)

type cellKey struct{ x, y int64 }

// grid buckets placed positions into square cells one separation wide, so
// any position closer than the separation lies in the 3x3 neighbourhood.
type grid struct {
	cell  float64
	cells map[cellKey][]geo.Point
	count int
}

func newGrid(cell float64) *grid {
	return &grid{cell: cell, cells: make(map[cellKey][]geo.Point)}
}

func (g *grid) key(p geo.Point) cellKey {
	return cellKey{x: int64(math.Floor(p.X / g.cell)), y: int64(math.Floor(p.Y / g.cell))}
}

func (g *grid) insert(p geo.Point) {
	k := g.key(p)
	g.cells[k] = append(g.cells[k], p)
	g.count++
}

// conflicts reports whether p is strictly closer than the cell size to any
// inserted position
func (g *grid) conflicts(p geo.Point) bool {
	k := g.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, q := range g.cells[cellKey{x: k.x + dx, y: k.y + dy}] {
				if p.Distance(q) < g.cell {
					return true
				}
			}
		}
	}
	return false
}
