package algo

import (
	"context"
	"sort"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Prioritized plans agents one at a time with space-time A*, each agent
// avoiding the paths of those planned before it. Incomplete but fast; the
// makespan it finds is an upper bound for the SAT horizon.
type Prioritized struct {
	MaxTime int // 0 means twice the number of cells
}

// NewPrioritized creates a prioritized planning solver.
func NewPrioritized(maxTime int) *Prioritized {
	return &Prioritized{MaxTime: maxTime}
}

func (p *Prioritized) Name() string { return "Prioritized" }

// Solve implements prioritized planning. Returns a nil solution when some
// agent cannot be routed around the earlier ones.
func (p *Prioritized) Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error) {
	if err := inst.ValidateLayout(); err != nil {
		return nil, err
	}
	maxTime := p.MaxTime
	if maxTime <= 0 {
		maxTime = 2 * inst.Grid.Size()
	}

	oracle := NewOracle(inst, UnitCost, 0)
	res := NewReservations()
	paths := make(map[core.AgentID]core.Path, len(inst.Agents))

	for _, a := range p.computePriority(inst, oracle) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := SpaceTimeAStar(inst.Grid, a.Start, a.Goal, oracle.to[a.ID], res, maxTime)
		if path == nil {
			return nil, nil
		}
		res.Reserve(path)
		paths[a.ID] = path
	}

	horizon := pathsHorizon(paths)
	sol := core.NewSolution(horizon)
	for id, path := range paths {
		sol.Paths[id] = padPath(path, horizon)
	}
	sol.ComputeMakespan()
	sol.Cost = sol.SumOfCosts
	sol.Status = core.StatusFeasible
	sol.Feasible = true
	return sol, nil
}

// computePriority orders agents by descending shortest path length, then ID.
func (p *Prioritized) computePriority(inst *core.Instance, oracle *Oracle) []*core.Agent {
	agents := make([]*core.Agent, len(inst.Agents))
	copy(agents, inst.Agents)
	sort.SliceStable(agents, func(i, j int) bool {
		return oracle.StartToGoal(agents[i].ID) > oracle.StartToGoal(agents[j].ID)
	})
	return agents
}

// padPath extends p with waits on its last cell up to horizon.
func padPath(p core.Path, horizon int) core.Path {
	out := make(core.Path, horizon+1)
	for t := range out {
		out[t] = p.At(t)
	}
	return out
}
