// Package core defines the grid, instance and solution models for MAPF-SAT.
package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Cell is a grid position. X grows east, Y grows north.
type Cell struct {
	X, Y int
}

// C is shorthand for Cell{X: x, Y: y}.
func C(x, y int) Cell {
	return Cell{X: x, Y: y}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns c shifted by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{X: c.X + d.X, Y: c.Y + d.Y}
}

// Manhattan returns the L1 distance between c and o.
func (c Cell) Manhattan(o Cell) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// MarshalJSON encodes a cell as [x, y], like MarshalYAML.
func (c Cell) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", c.X, c.Y)), nil
}

// MarshalYAML encodes a cell as a two element sequence [x, y].
func (c Cell) MarshalYAML() (interface{}, error) {
	return []int{c.X, c.Y}, nil
}

// UnmarshalYAML accepts [x, y] or {x: .., y: ..}.
func (c *Cell) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var pair []int
	if err := unmarshal(&pair); err == nil {
		if len(pair) != 2 {
			return errors.Errorf("cell must have 2 coordinates, got %d", len(pair))
		}
		c.X, c.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	}
	if err := unmarshal(&obj); err != nil {
		return errors.Wrap(err, "cell")
	}
	c.X, c.Y = obj.X, obj.Y
	return nil
}

// Move is one of the five discrete actions an agent takes per timestep.
type Move int

const (
	Stay  Move = iota // remain in place
	East              // +x
	West              // -x
	North             // +y
	South             // -y
)

// AllMoves lists moves in neighbour order: stay first.
var AllMoves = [...]Move{Stay, East, West, North, South}

func (m Move) String() string {
	return [...]string{"Stay", "East", "West", "North", "South"}[m]
}

// Delta returns the displacement of m.
func (m Move) Delta() Cell {
	return [...]Cell{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}[m]
}

// MoveBetween returns the move taking from to to, if they are equal or adjacent.
func MoveBetween(from, to Cell) (Move, bool) {
	for _, m := range AllMoves {
		if from.Add(m.Delta()) == to {
			return m, true
		}
	}
	return Stay, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
