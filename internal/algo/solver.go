// Package algo implements distance, feasibility and search algorithms for MAPF-SAT.
package algo

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Solver is the interface for MAPF planners.
type Solver interface {
	// Solve attempts to find a plan for the instance. A nil solution with a
	// nil error means no plan was found.
	Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error)

	// Name returns the algorithm name.
	Name() string
}

// Conflict represents a collision between two agents.
type Conflict struct {
	Agent1, Agent2 core.AgentID
	Cell           core.Cell
	Time           int  // timestep of the vertex conflict, or departure time of the move
	IsEdge         bool // Agent1 and Agent2 swap cells
	// IsFollow: Agent1 moves into Cell while Agent2 leaves it in the same step.
	IsFollow bool
	// For edge and follow conflicts: the cells Agent1 moves between
	EdgeFrom, EdgeTo core.Cell
}

func (c *Conflict) String() string {
	switch {
	case c.IsEdge:
		return fmt.Sprintf("agents %d and %d swap %v<->%v at t=%d", c.Agent1, c.Agent2, c.EdgeFrom, c.EdgeTo, c.Time)
	case c.IsFollow:
		return fmt.Sprintf("agent %d follows agent %d into %v at t=%d", c.Agent1, c.Agent2, c.Cell, c.Time)
	}
	return fmt.Sprintf("agents %d and %d meet at %v at t=%d", c.Agent1, c.Agent2, c.Cell, c.Time)
}

// Constraint forbids an agent from being on Cell at Time or, for edge
// constraints, from moving EdgeFrom->EdgeTo departing at Time.
type Constraint struct {
	Agent core.AgentID
	Cell  core.Cell
	Time  int
	// For edge constraints
	IsEdge   bool
	EdgeFrom core.Cell
	EdgeTo   core.Cell
}

// sortedAgentIDs returns sorted agent IDs from paths map.
func sortedAgentIDs(paths map[core.AgentID]core.Path) []core.AgentID {
	agents := make([]core.AgentID, 0, len(paths))
	for id := range paths {
		agents = append(agents, id)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i] < agents[j]
	})
	return agents
}

func pathsHorizon(paths map[core.AgentID]core.Path) int {
	h := 0
	for _, p := range paths {
		if len(p)-1 > h {
			h = len(p) - 1
		}
	}
	return h
}

// scanConflicts visits conflicts in (time, agent pair) order until visit returns false.
func scanConflicts(paths map[core.AgentID]core.Path, visit func(*Conflict) bool) {
	agents := sortedAgentIDs(paths)
	horizon := pathsHorizon(paths)

	for t := 0; t <= horizon; t++ {
		for i := 0; i < len(agents); i++ {
			for j := i + 1; j < len(agents); j++ {
				p1, p2 := paths[agents[i]], paths[agents[j]]
				if len(p1) == 0 || len(p2) == 0 {
					continue
				}
				if p1.At(t) == p2.At(t) {
					if !visit(&Conflict{Agent1: agents[i], Agent2: agents[j], Cell: p1.At(t), Time: t}) {
						return
					}
				}
				if t == horizon {
					continue
				}
				from1, to1 := p1.At(t), p1.At(t+1)
				from2, to2 := p2.At(t), p2.At(t+1)
				if from1 != to1 && from1 == to2 && to1 == from2 {
					c := &Conflict{
						Agent1:   agents[i],
						Agent2:   agents[j],
						Cell:     from1,
						Time:     t,
						IsEdge:   true,
						EdgeFrom: from1,
						EdgeTo:   to1,
					}
					if !visit(c) {
						return
					}
					continue
				}
				// A follower into a cell whose occupant stays is a vertex
				// conflict at t+1 and is reported there.
				if c := following(agents[i], from1, to1, agents[j], from2, to2, t); c != nil && !visit(c) {
					return
				}
				if c := following(agents[j], from2, to2, agents[i], from1, to1, t); c != nil && !visit(c) {
					return
				}
			}
		}
	}
}

// following returns the conflict of agent a entering the cell b leaves at t.
func following(a core.AgentID, fromA, toA core.Cell, b core.AgentID, fromB, toB core.Cell, t int) *Conflict {
	if fromA == toA || toA != fromB || fromB == toB {
		return nil
	}
	return &Conflict{
		Agent1:   a,
		Agent2:   b,
		Cell:     toA,
		Time:     t,
		IsFollow: true,
		EdgeFrom: fromA,
		EdgeTo:   toA,
	}
}

// FindFirstConflict detects the earliest conflict in paths.
func FindFirstConflict(paths map[core.AgentID]core.Path) *Conflict {
	var first *Conflict
	scanConflicts(paths, func(c *Conflict) bool {
		first = c
		return false
	})
	return first
}

// FindAllConflicts detects all conflicts in paths.
func FindAllConflicts(paths map[core.AgentID]core.Path) []*Conflict {
	var conflicts []*Conflict
	scanConflicts(paths, func(c *Conflict) bool {
		conflicts = append(conflicts, c)
		return true
	})
	return conflicts
}

// ValidatePath checks that p starts at the agent's start, ends at its goal,
// has horizon+1 steps and only uses passable cells and legal moves.
func ValidatePath(g *core.Grid, a *core.Agent, p core.Path, horizon int) error {
	if len(p) != horizon+1 {
		return errors.Errorf("agent %d: path has %d steps, want %d", a.ID, len(p), horizon+1)
	}
	if p[0] != a.Start {
		return errors.Errorf("agent %d: path starts at %v, want %v", a.ID, p[0], a.Start)
	}
	if p[len(p)-1] != a.Goal {
		return errors.Errorf("agent %d: path ends at %v, want %v", a.ID, p[len(p)-1], a.Goal)
	}
	for t, c := range p {
		if !g.Passable(c) {
			return errors.Errorf("agent %d: cell %v at t=%d is not passable", a.ID, c, t)
		}
		if t > 0 && !g.Adjacent(p[t-1], c) {
			return errors.Errorf("agent %d: illegal move %v->%v at t=%d", a.ID, p[t-1], c, t-1)
		}
	}
	return nil
}

// VerifySolution validates every path and checks the plan is free of vertex,
// swap and following conflicts.
func VerifySolution(inst *core.Instance, sol *core.Solution) error {
	for _, a := range inst.Agents {
		p, ok := sol.Paths[a.ID]
		if !ok {
			return errors.Errorf("agent %d: missing path", a.ID)
		}
		if err := ValidatePath(inst.Grid, a, p, sol.Horizon); err != nil {
			return err
		}
	}
	if c := FindFirstConflict(sol.Paths); c != nil {
		return errors.Errorf("conflict: %v", c)
	}
	return nil
}
