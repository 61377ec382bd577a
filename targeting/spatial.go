package targeting

import (
	"github.com/mlange-42/ark/ecs"
)

// Neighbor is a graspable found near a query origin.
type Neighbor struct {
	E      ecs.Entity
	DistSq float64 // squared planar distance from the query origin
}

type cellEntry struct {
	e    ecs.Entity
	x, y float64
}

// SpatialGrid buckets graspables by horizontal position. Positions outside the
// world bounds land in the nearest edge cell.
type SpatialGrid struct {
	cellSize   float64
	cols, rows int
	cells      [][]cellEntry
	count      int
}

// NewSpatialGrid creates a grid covering width by height.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]cellEntry, cols*rows),
	}
}

// Clear empties every cell, keeping their capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Insert records e at (x, y).
func (g *SpatialGrid) Insert(e ecs.Entity, x, y float64) {
	i := g.cellIndex(x, y)
	g.cells[i] = append(g.cells[i], cellEntry{e: e, x: x, y: y})
	g.count++
}

// Len returns the number of inserted entities.
func (g *SpatialGrid) Len() int {
	return g.count
}

// QueryRadiusInto appends every entity within radius of (x, y) to dst, skipping
// exclude. Order follows cells, not distance.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, x, y, radius float64, exclude ecs.Entity) []Neighbor {
	reach := int(radius/g.cellSize) + 1
	col, row := g.cellCoords(x, y)
	radiusSq := radius * radius

	for r := max(row-reach, 0); r <= min(row+reach, g.rows-1); r++ {
		for c := max(col-reach, 0); c <= min(col+reach, g.cols-1); c++ {
			for _, ce := range g.cells[r*g.cols+c] {
				if ce.e == exclude {
					continue
				}
				dx, dy := ce.x-x, ce.y-y
				if d := dx*dx + dy*dy; d <= radiusSq {
					dst = append(dst, Neighbor{E: ce.e, DistSq: d})
				}
			}
		}
	}
	return dst
}

func (g *SpatialGrid) cellCoords(x, y float64) (col, row int) {
	col = min(max(int(x/g.cellSize), 0), g.cols-1)
	row = min(max(int(y/g.cellSize), 0), g.rows-1)
	return col, row
}

func (g *SpatialGrid) cellIndex(x, y float64) int {
	col, row := g.cellCoords(x, y)
	return row*g.cols + col
}
