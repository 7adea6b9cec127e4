package algo

import (
	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Window is the set of cells an agent can occupy at one timestep while
// still leaving from its start and reaching its goal in time.
type Window struct {
	grid  *core.Grid
	in    []bool // by grid index
	cells []core.Cell
}

// Contains reports whether c is in the window.
func (w *Window) Contains(c core.Cell) bool {
	return w != nil && w.grid.InBounds(c) && w.in[w.grid.Index(c)]
}

// Cells returns the window contents in grid cell order.
func (w *Window) Cells() []core.Cell {
	if w == nil {
		return nil
	}
	return w.cells
}

// Len is the window size.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.cells)
}

// Empty reports whether no cell is feasible.
func (w *Window) Empty() bool {
	return w.Len() == 0
}

// Windows holds one Window per timestep 0..horizon for a single agent.
type Windows []*Window

// At returns the window for t, nil outside 0..horizon.
func (ws Windows) At(t int) *Window {
	if t < 0 || t >= len(ws) {
		return nil
	}
	return ws[t]
}

// Feasible reports whether every timestep has a non-empty window.
func (ws Windows) Feasible() bool {
	for _, w := range ws {
		if w.Empty() {
			return false
		}
	}
	return len(ws) > 0
}

// FirstEmpty returns the first timestep with an empty window, or -1.
func (ws Windows) FirstEmpty() int {
	for t, w := range ws {
		if w.Empty() {
			return t
		}
	}
	return -1
}

// BuildWindows computes W(a,t) = {u : dist(start,u) <= t and dist(u,goal) <= horizon-t}
// for t in 0..horizon. Unreachable distances never qualify.
func BuildWindows(g *core.Grid, fromStart, toGoal *DistanceMap, horizon int) Windows {
	ws := make(Windows, horizon+1)
	cells := g.Cells()
	for t := 0; t <= horizon; t++ {
		w := &Window{grid: g, in: make([]bool, g.Size())}
		for _, c := range cells {
			ds, dg := fromStart.At(c), toGoal.At(c)
			if !IsFinite(ds) || !IsFinite(dg) {
				continue
			}
			if ds <= float64(t) && dg <= float64(horizon-t) {
				w.in[g.Index(c)] = true
				w.cells = append(w.cells, c)
			}
		}
		ws[t] = w
	}
	return ws
}

// BuildAgentWindows builds the windows of one agent from the oracle.
func (o *Oracle) BuildAgentWindows(a core.AgentID, horizon int) Windows {
	return BuildWindows(o.grid, o.from[a], o.to[a], horizon)
}

// BuildAllWindows returns windows for every agent, indexed by AgentID.
func (o *Oracle) BuildAllWindows(horizon int) []Windows {
	out := make([]Windows, len(o.agent))
	for i := range o.agent {
		out[i] = o.BuildAgentWindows(core.AgentID(i), horizon)
	}
	return out
}
