package algo

import (
	"container/heap"
	"context"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// CBS implements Conflict-Based Search minimizing the sum of arrival times
// under the same movement rules as the SAT encoding. It is complete only
// up to MaxTime and MaxNodes, and serves as an optimality cross-check for
// small instances.
type CBS struct {
	MaxTime  int // latest arrival; 0 means twice the number of cells
	MaxNodes int // constraint tree nodes to expand; 0 means 100000
}

// NewCBS creates a CBS solver.
func NewCBS(maxTime int) *CBS {
	return &CBS{MaxTime: maxTime}
}

func (c *CBS) Name() string { return "CBS" }

// cbsNode represents a node in the CBS constraint tree.
type cbsNode struct {
	constraints []Constraint
	paths       map[core.AgentID]core.Path
	cost        int // sum of settle times
	index       int
}

type cbsHeap []*cbsNode

func (h cbsHeap) Len() int           { return len(h) }
func (h cbsHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h cbsHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *cbsHeap) Push(x any) {
	n := x.(*cbsNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *cbsHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// Solve implements the CBS algorithm. Returns a nil solution when the
// search space is exhausted or MaxNodes is reached.
func (c *CBS) Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error) {
	if err := inst.ValidateLayout(); err != nil {
		return nil, err
	}
	maxTime := c.MaxTime
	if maxTime <= 0 {
		maxTime = 2 * inst.Grid.Size()
	}
	maxNodes := c.MaxNodes
	if maxNodes <= 0 {
		maxNodes = 100000
	}
	oracle := NewOracle(inst, UnitCost, 0)

	root := &cbsNode{paths: make(map[core.AgentID]core.Path, len(inst.Agents))}
	for _, a := range inst.Agents {
		if !c.replan(inst, oracle, root, a, maxTime) {
			return nil, nil
		}
	}

	open := &cbsHeap{}
	heap.Init(open)
	heap.Push(open, root)

	for expanded := 0; open.Len() > 0 && expanded < maxNodes; expanded++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := heap.Pop(open).(*cbsNode)

		conflict := FindFirstConflict(node.paths)
		if conflict == nil {
			return c.solution(node), nil
		}

		// Branch: create child nodes with new constraints
		for i, con := range splitConflict(conflict) {
			child := &cbsNode{
				constraints: append(append([]Constraint{}, node.constraints...), con),
				paths:       make(map[core.AgentID]core.Path, len(node.paths)),
			}
			for id, p := range node.paths {
				child.paths[id] = p
			}
			agent := conflict.Agent1
			if i == 1 {
				agent = conflict.Agent2
			}
			if c.replan(inst, oracle, child, inst.AgentByID(agent), maxTime) {
				heap.Push(open, child)
			}
		}
	}
	return nil, nil
}

// splitConflict returns the constraint for Agent1 and the one for Agent2.
// Every plan without the conflict satisfies at least one of them.
func splitConflict(c *Conflict) [2]Constraint {
	switch {
	case c.IsEdge:
		return [2]Constraint{
			{Agent: c.Agent1, Time: c.Time, IsEdge: true, EdgeFrom: c.EdgeFrom, EdgeTo: c.EdgeTo},
			{Agent: c.Agent2, Time: c.Time, IsEdge: true, EdgeFrom: c.EdgeTo, EdgeTo: c.EdgeFrom},
		}
	case c.IsFollow:
		// either the follower does not make the move or the leader is
		// not on the cell when it starts
		return [2]Constraint{
			{Agent: c.Agent1, Time: c.Time, IsEdge: true, EdgeFrom: c.EdgeFrom, EdgeTo: c.EdgeTo},
			{Agent: c.Agent2, Cell: c.Cell, Time: c.Time},
		}
	}
	return [2]Constraint{
		{Agent: c.Agent1, Cell: c.Cell, Time: c.Time},
		{Agent: c.Agent2, Cell: c.Cell, Time: c.Time},
	}
}

// replan plans a under the node's constraints and updates the node cost.
func (c *CBS) replan(inst *core.Instance, oracle *Oracle, node *cbsNode, a *core.Agent, maxTime int) bool {
	res := NewReservations()
	for _, con := range node.constraints {
		if con.Agent == a.ID {
			res.Forbid(con)
		}
	}
	path := SpaceTimeAStar(inst.Grid, a.Start, a.Goal, oracle.to[a.ID], res, maxTime)
	if path == nil {
		return false
	}
	node.paths[a.ID] = path

	node.cost = 0
	for _, p := range node.paths {
		node.cost += p.SettleTime()
	}
	return true
}

func (c *CBS) solution(node *cbsNode) *core.Solution {
	horizon := pathsHorizon(node.paths)
	sol := core.NewSolution(horizon)
	for id, p := range node.paths {
		sol.Paths[id] = padPath(p, horizon)
	}
	sol.ComputeMakespan()
	sol.Cost = sol.SumOfCosts
	sol.Status = core.StatusOptimal
	sol.Feasible = true
	return sol
}
