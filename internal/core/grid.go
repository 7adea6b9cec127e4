package core

import (
	"sort"

	"github.com/pkg/errors"
)

// Grid is a 4-connected rectangular map with blocked cells.
type Grid struct {
	Width, Height int
	blocked       map[Cell]bool
}

// NewGrid creates an obstacle-free grid.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:   width,
		Height:  height,
		blocked: make(map[Cell]bool),
	}
}

// Block marks cells as obstacles. Out of bounds cells are rejected.
func (g *Grid) Block(cells ...Cell) error {
	for _, c := range cells {
		if !g.InBounds(c) {
			return errors.Errorf("obstacle %v outside %dx%d grid", c, g.Width, g.Height)
		}
		g.blocked[c] = true
	}
	return nil
}

// InBounds reports whether c lies inside the grid rectangle.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// Blocked reports whether c is an obstacle.
func (g *Grid) Blocked(c Cell) bool {
	return g.blocked[c]
}

// Passable reports whether an agent may occupy c.
func (g *Grid) Passable(c Cell) bool {
	return g.InBounds(c) && !g.blocked[c]
}

// Obstacles returns blocked cells in cell order.
func (g *Grid) Obstacles() []Cell {
	out := make([]Cell, 0, len(g.blocked))
	for c := range g.blocked {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.Index(out[i]) < g.Index(out[j])
	})
	return out
}

// Size is the number of cells, blocked or not.
func (g *Grid) Size() int {
	return g.Width * g.Height
}

// Index maps c to x*Height + y, the order used by the variable indexer.
func (g *Grid) Index(c Cell) int {
	return c.X*g.Height + c.Y
}

// CellAt is the inverse of Index.
func (g *Grid) CellAt(i int) Cell {
	return Cell{X: i / g.Height, Y: i % g.Height}
}

// Cells returns every passable cell, x outer and y inner.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, 0, g.Size()-len(g.blocked))
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Height; y++ {
			c := Cell{X: x, Y: y}
			if !g.blocked[c] {
				out = append(out, c)
			}
		}
	}
	return out
}

// Neighbors returns the passable cells reachable from c in one step,
// in the fixed order stay, +x, -x, +y, -y. Stay is included when c is passable.
func (g *Grid) Neighbors(c Cell) []Cell {
	if !g.Passable(c) {
		return nil
	}
	out := make([]Cell, 0, len(AllMoves))
	for _, m := range AllMoves {
		n := c.Add(m.Delta())
		if g.Passable(n) {
			out = append(out, n)
		}
	}
	return out
}

// Adjacent reports whether b is reachable from a by one move (including stay).
func (g *Grid) Adjacent(a, b Cell) bool {
	if !g.Passable(a) || !g.Passable(b) {
		return false
	}
	_, ok := MoveBetween(a, b)
	return ok
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	cp := NewGrid(g.Width, g.Height)
	for c := range g.blocked {
		cp.blocked[c] = true
	}
	return cp
}
