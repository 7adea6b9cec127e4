package encoding

import (
	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Decode turns a model of the formula into paths. Only in-window occ
// variables are read; anything else in the model is ignored. cost is the
// objective reported by the solver and is copied into the solution.
func (e *Encoded) Decode(m Assignment, cost int) (*core.Solution, error) {
	inst, ix := e.Instance, e.Indexer
	sol := core.NewSolution(inst.Horizon)
	sol.Cost = cost

	for _, a := range inst.Agents {
		path := make(core.Path, inst.Horizon+1)
		for t := range path {
			found := 0
			for _, u := range e.Windows[a.ID].At(t).Cells() {
				if m.Value(ix.Occ(a.ID, u, t)) {
					path[t] = u
					found++
				}
			}
			if found != 1 {
				return nil, errors.Errorf("model places agent %d at %d cells at t=%d", a.ID, found, t)
			}
		}
		sol.Paths[a.ID] = path
	}
	sol.ComputeMakespan()
	sol.Feasible = true
	return sol, nil
}

// Objective is the soft cost a plan incurs: for every agent, the number of
// timesteps between its shortest possible arrival and its actual one.
func (e *Encoded) Objective(sol *core.Solution) int {
	cost := 0
	for _, a := range e.Instance.Agents {
		d, ok := arrivalBound(e.Oracle.StartToGoal(a.ID))
		if !ok {
			continue
		}
		if at := sol.Arrival[a.ID]; at > d {
			cost += at - d
		}
	}
	return cost
}
