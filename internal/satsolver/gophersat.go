package satsolver

import (
	"context"
	"time"

	"github.com/crillab/gophersat/solver"

	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
)

// Gophersat solves weighted partial MaxSAT exactly with gophersat's
// linear search: every soft clause gets a relaxation variable, and the
// weighted sum of relaxation variables is minimized.
type Gophersat struct{}

// NewGophersat creates the backend.
func NewGophersat() *Gophersat { return &Gophersat{} }

func (g *Gophersat) Name() string { return "gophersat" }

func gsLit(l int) solver.Lit {
	if l < 0 {
		return solver.IntToVar(int32(-l)).Lit().Negation()
	}
	return solver.IntToVar(int32(l)).Lit()
}

// Solve returns the optimum. gophersat cannot be interrupted: when ctx ends
// first the search is abandoned in the background and ErrIncomplete is
// returned.
func (g *Gophersat) Solve(ctx context.Context, f *encoding.Formula) (*Result, error) {
	start := time.Now()
	if f.Unsatisfiable() {
		return &Result{Status: Unsatisfiable, Elapsed: time.Since(start)}, nil
	}

	if len(f.Hard) == 0 && len(f.Soft) == 0 {
		return &Result{Status: Optimal, Model: make(encoding.Assignment, f.NumVars+1), Elapsed: time.Since(start)}, nil
	}

	r := renumber(f)
	clauses := make([][]int, 0, len(f.Hard)+len(f.Soft))
	for _, c := range f.Hard {
		clauses = append(clauses, r.clause(c))
	}
	relax := r.n()
	costLits := make([]solver.Lit, 0, len(f.Soft))
	weights := make([]int, 0, len(f.Soft))
	for _, c := range f.Soft {
		relax++
		clauses = append(clauses, append(r.clause(c.Lits), relax))
		costLits = append(costLits, gsLit(relax))
		weights = append(weights, c.Weight)
	}

	pb := solver.ParseSlice(clauses)
	if pb.Status == solver.Unsat {
		return &Result{Status: Unsatisfiable, Elapsed: time.Since(start)}, nil
	}
	if len(costLits) > 0 {
		pb.SetCostFunc(costLits, weights)
	}

	type answer struct {
		status solver.Status
		cost   int
		model  []bool
	}
	done := make(chan answer, 1)
	go func() {
		s := solver.New(pb)
		res := s.Optimal(nil, nil)
		a := answer{status: res.Status, cost: res.Weight}
		if res.Status == solver.Sat {
			a.model = s.Model()
		}
		done <- a
	}()

	select {
	case <-ctx.Done():
		return &Result{Status: Unknown, Elapsed: time.Since(start)}, incomplete(ctx)
	case a := <-done:
		res := &Result{Elapsed: time.Since(start)}
		switch a.status {
		case solver.Unsat:
			res.Status = Unsatisfiable
		case solver.Sat:
			res.Status = Optimal
			res.Cost = a.cost
			res.Model = r.assignment(f.NumVars, func(d int) bool {
				return d-1 < len(a.model) && a.model[d-1]
			})
		default:
			return res, incomplete(ctx)
		}
		return res, nil
	}
}
