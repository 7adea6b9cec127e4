package algo

import (
	"container/heap"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// SpaceTimeState represents (cell, time) for space-time A*.
type SpaceTimeState struct {
	C core.Cell
	T int
}

// Reservations records cells and moves taken by already planned agents,
// using the same movement rules as the SAT encoding: no vertex conflicts,
// no swaps, and no entering a cell that is occupied or being left at the
// same step.
type Reservations struct {
	vertex  map[SpaceTimeState]bool
	entered map[SpaceTimeState]bool // someone arrived at C at T from elsewhere
	edge    map[edgeKey]bool
	last    map[core.Cell]int // latest reserved time per cell
	parked  map[core.Cell]int // occupied forever from this time on

	// Constraints of a single agent, see Forbid.
	banned      map[SpaceTimeState]bool
	bannedMoves map[edgeKey]bool
	lastBan     map[core.Cell]int
}

type edgeKey struct {
	from, to core.Cell
	t        int // departure time
}

// NewReservations creates an empty reservation table.
func NewReservations() *Reservations {
	return &Reservations{
		vertex:  make(map[SpaceTimeState]bool),
		entered: make(map[SpaceTimeState]bool),
		edge:    make(map[edgeKey]bool),
		last:    make(map[core.Cell]int),
		parked:  make(map[core.Cell]int),

		banned:      make(map[SpaceTimeState]bool),
		bannedMoves: make(map[edgeKey]bool),
		lastBan:     make(map[core.Cell]int),
	}
}

// Forbid adds a constraint on the agent being planned. Unlike Reserve it
// does not imply the movement rules around the cell: a banned cell may
// still be entered right after the banned time.
func (r *Reservations) Forbid(c Constraint) {
	if c.IsEdge {
		r.bannedMoves[edgeKey{c.EdgeFrom, c.EdgeTo, c.Time}] = true
		return
	}
	r.banned[SpaceTimeState{c.Cell, c.Time}] = true
	if prev, ok := r.lastBan[c.Cell]; !ok || c.Time > prev {
		r.lastBan[c.Cell] = c.Time
	}
}

// Reserve blocks p for later agents. The agent stays on its last cell forever.
func (r *Reservations) Reserve(p core.Path) {
	for t, c := range p {
		r.vertex[SpaceTimeState{c, t}] = true
		if prev, ok := r.last[c]; !ok || t > prev {
			r.last[c] = t
		}
		if t > 0 && p[t-1] != c {
			r.edge[edgeKey{p[t-1], c, t - 1}] = true
			r.entered[SpaceTimeState{c, t}] = true
		}
	}
	if len(p) > 0 {
		r.parked[p[len(p)-1]] = len(p) - 1
	}
}

func (r *Reservations) occupied(c core.Cell, t int) bool {
	if r.vertex[SpaceTimeState{c, t}] {
		return true
	}
	since, ok := r.parked[c]
	return ok && t >= since
}

// Free reports whether a move from -> to departing at t is allowed.
func (r *Reservations) Free(from, to core.Cell, t int) bool {
	if r.occupied(to, t+1) || r.banned[SpaceTimeState{to, t + 1}] || r.bannedMoves[edgeKey{from, to, t}] {
		return false
	}
	if from == to {
		return true
	}
	if r.edge[edgeKey{to, from, t}] {
		return false
	}
	if r.occupied(to, t) {
		return false
	}
	return !r.entered[SpaceTimeState{from, t + 1}]
}

// CanPark reports whether an agent may stay on c from t onwards.
func (r *Reservations) CanPark(c core.Cell, t int) bool {
	if _, ok := r.parked[c]; ok {
		return false
	}
	if ban, ok := r.lastBan[c]; ok && ban > t {
		return false
	}
	last, ok := r.last[c]
	return !ok || last < t
}

// astarNode for priority queue.
type astarNode struct {
	state  SpaceTimeState
	g      int // timesteps so far
	f      int // g + h
	parent *astarNode
	index  int // heap index
}

// astarHeap implements heap.Interface.
type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].g > h[j].g
}
func (h astarHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *astarHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// SpaceTimeAStar finds a shortest path from start to goal that respects res
// and ends with the agent parked at goal no later than maxTime. toGoal is the
// unit-cost heuristic. Returns nil if no such path exists.
func SpaceTimeAStar(g *core.Grid, start, goal core.Cell, toGoal *DistanceMap, res *Reservations, maxTime int) core.Path {
	if res == nil {
		res = NewReservations()
	}
	heuristic := func(c core.Cell) int {
		d := toGoal.At(c)
		if !IsFinite(d) {
			return -1
		}
		return int(d)
	}
	if h := heuristic(start); h < 0 || h > maxTime || res.occupied(start, 0) || res.banned[SpaceTimeState{start, 0}] {
		return nil
	}

	open := &astarHeap{}
	heap.Push(open, &astarNode{
		state: SpaceTimeState{C: start, T: 0},
		f:     heuristic(start),
	})
	visited := make(map[SpaceTimeState]bool)

	for open.Len() > 0 {
		current := heap.Pop(open).(*astarNode)
		if visited[current.state] {
			continue
		}
		visited[current.state] = true

		if current.state.C == goal && res.CanPark(goal, current.state.T) {
			return reconstructPath(current)
		}
		if current.state.T >= maxTime {
			continue
		}

		for _, n := range g.Neighbors(current.state.C) {
			next := SpaceTimeState{C: n, T: current.state.T + 1}
			if visited[next] || !res.Free(current.state.C, n, current.state.T) {
				continue
			}
			h := heuristic(n)
			if h < 0 || next.T+h > maxTime {
				continue
			}
			heap.Push(open, &astarNode{
				state:  next,
				g:      next.T,
				f:      next.T + h,
				parent: current,
			})
		}
	}

	return nil // No path found
}

func reconstructPath(node *astarNode) core.Path {
	path := make(core.Path, node.state.T+1)
	for n := node; n != nil; n = n.parent {
		path[n.state.T] = n.state.C
	}
	return path
}
