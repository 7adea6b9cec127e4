package algo

import (
	"container/heap"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Unreachable is the distance to a cell with no path. Check with IsFinite
// before comparing or adding.
var Unreachable = math.Inf(1)

// IsFinite reports whether d is a real distance.
func IsFinite(d float64) bool {
	return !math.IsInf(d, 0) && !math.IsNaN(d)
}

// EdgeCost prices the move from one cell to an adjacent one.
type EdgeCost func(from, to core.Cell) float64

// UnitCost charges 1 per move.
func UnitCost(from, to core.Cell) float64 { return 1 }

// DistanceMap holds the distance from (or to) a fixed cell for every grid cell.
type DistanceMap struct {
	grid *core.Grid
	dist []float64 // by grid index
}

// At returns the distance for c, Unreachable if c is off-grid or cut off.
func (m *DistanceMap) At(c core.Cell) float64 {
	if m == nil || !m.grid.InBounds(c) {
		return Unreachable
	}
	return m.dist[m.grid.Index(c)]
}

// Reachable reports whether c has a finite distance.
func (m *DistanceMap) Reachable(c core.Cell) bool {
	return IsFinite(m.At(c))
}

// dijkstraNode for priority queue.
type dijkstraNode struct {
	cell  core.Cell
	dist  float64
	index int // heap index
}

// dijkstraHeap implements heap.Interface.
type dijkstraHeap []*dijkstraNode

func (h dijkstraHeap) Len() int { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].cell.X < h[j].cell.X || (h[i].cell.X == h[j].cell.X && h[i].cell.Y < h[j].cell.Y)
}
func (h dijkstraHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *dijkstraHeap) Push(x any) {
	n := x.(*dijkstraNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *dijkstraHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// dijkstra relaxes from source until the queue is empty or stop(cell) holds
// for the cell just settled. reverse prices edges as cost(v, u).
func dijkstra(g *core.Grid, source core.Cell, cost EdgeCost, reverse bool, stop func(core.Cell) bool) *DistanceMap {
	if cost == nil {
		cost = UnitCost
	}
	m := &DistanceMap{grid: g, dist: make([]float64, g.Size())}
	for i := range m.dist {
		m.dist[i] = Unreachable
	}
	if !g.Passable(source) {
		return m
	}

	settled := make([]bool, g.Size())
	open := &dijkstraHeap{}
	m.dist[g.Index(source)] = 0
	heap.Push(open, &dijkstraNode{cell: source})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*dijkstraNode)
		ci := g.Index(cur.cell)
		if settled[ci] {
			continue
		}
		settled[ci] = true
		if stop != nil && stop(cur.cell) {
			break
		}

		for _, n := range g.Neighbors(cur.cell) {
			if n == cur.cell {
				continue
			}
			w := cost(cur.cell, n)
			if reverse {
				w = cost(n, cur.cell)
			}
			if w < 0 || !IsFinite(w) {
				continue
			}
			ni := g.Index(n)
			if d := cur.dist + w; d < m.dist[ni] {
				m.dist[ni] = d
				heap.Push(open, &dijkstraNode{cell: n, dist: d})
			}
		}
	}
	return m
}

// ComputeDistances runs Dijkstra from source over the whole grid.
func ComputeDistances(g *core.Grid, source core.Cell, cost EdgeCost) *DistanceMap {
	return dijkstra(g, source, cost, false, nil)
}

// ComputeDistancesTo returns dist(u, target) for every u, following edges backwards.
func ComputeDistancesTo(g *core.Grid, target core.Cell, cost EdgeCost) *DistanceMap {
	return dijkstra(g, target, cost, true, nil)
}

// ShortestDistance is the single-pair variant that stops once target is settled.
// It agrees with ComputeDistances(g, source, cost).At(target).
func ShortestDistance(g *core.Grid, source, target core.Cell, cost EdgeCost) float64 {
	if !g.Passable(target) {
		return Unreachable
	}
	m := dijkstra(g, source, cost, false, func(c core.Cell) bool { return c == target })
	return m.At(target)
}

// Oracle caches one forward map per agent start and one backward map per goal.
type Oracle struct {
	grid  *core.Grid
	cost  EdgeCost
	from  []*DistanceMap // by agent: dist(start, .)
	to    []*DistanceMap // by agent: dist(., goal)
	agent []*core.Agent
}

// NewOracle precomputes every agent's maps, using up to parallelism workers.
func NewOracle(inst *core.Instance, cost EdgeCost, parallelism int) *Oracle {
	o := &Oracle{
		grid:  inst.Grid,
		cost:  cost,
		from:  make([]*DistanceMap, len(inst.Agents)),
		to:    make([]*DistanceMap, len(inst.Agents)),
		agent: inst.Agents,
	}

	var eg errgroup.Group
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for i, a := range inst.Agents {
		i, a := i, a
		eg.Go(func() error {
			o.from[i] = ComputeDistances(inst.Grid, a.Start, cost)
			o.to[i] = ComputeDistancesTo(inst.Grid, a.Goal, cost)
			return nil
		})
	}
	eg.Wait()
	return o
}

// FromStart is dist(start(a), c).
func (o *Oracle) FromStart(a core.AgentID, c core.Cell) float64 {
	return o.from[a].At(c)
}

// ToGoal is dist(c, goal(a)).
func (o *Oracle) ToGoal(a core.AgentID, c core.Cell) float64 {
	return o.to[a].At(c)
}

// StartToGoal is the agent's shortest path length.
func (o *Oracle) StartToGoal(a core.AgentID) float64 {
	return o.from[a].At(o.agent[a].Goal)
}

// Distance answers dist(source, target) from a cached map when source is an
// agent start or target is an agent goal; otherwise it searches.
func (o *Oracle) Distance(source, target core.Cell) float64 {
	for i, a := range o.agent {
		if a.Start == source {
			return o.from[i].At(target)
		}
		if a.Goal == target {
			return o.to[i].At(source)
		}
	}
	return ShortestDistance(o.grid, source, target, o.cost)
}

// Agents is the number of agents covered.
func (o *Oracle) Agents() int {
	return len(o.agent)
}
