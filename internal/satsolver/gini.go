package satsolver

import (
	"context"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
)

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Gini decides the hard clauses with gini, then minimizes the number of
// violated soft clauses through a sorting network over their violation
// literals, assuming Leq(w) for w = 0, 1, ... until a model appears.
// Weights are handled by repeating a violation literal weight times.
type Gini struct {
	Poll time.Duration // how often a cancellable solve checks ctx
}

// NewGini creates the backend.
func NewGini() *Gini { return &Gini{Poll: 10 * time.Millisecond} }

func (b *Gini) Name() string { return "gini" }

// run solves g, stopping early when ctx ends. Returns 1, -1 or 0 (unknown).
func (b *Gini) run(ctx context.Context, g *gini.Gini) int {
	if ctx.Done() == nil {
		return g.Solve()
	}
	if ctx.Err() != nil {
		return 0
	}
	poll := b.Poll
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	s := g.GoSolve()
	tick := time.NewTicker(poll)
	defer tick.Stop()
	for {
		if res, ok := s.Test(); ok {
			return res
		}
		select {
		case <-ctx.Done():
			return s.Stop()
		case <-tick.C:
		}
	}
}

func (b *Gini) Solve(ctx context.Context, f *encoding.Formula) (*Result, error) {
	start := time.Now()
	if f.Unsatisfiable() {
		return &Result{Status: Unsatisfiable, Elapsed: time.Since(start)}, nil
	}

	r := renumber(f)
	c := logic.NewCCap(r.n() + len(f.Soft) + 2)
	lits := make([]z.Lit, r.n()+1)
	for d := 1; d <= r.n(); d++ {
		lits[d] = c.Lit()
	}
	toLit := func(l int) z.Lit {
		d := r.lit(l)
		if d < 0 {
			return lits[-d].Not()
		}
		return lits[d]
	}

	g := gini.NewVc(r.n()+len(f.Soft)+2, len(f.Hard)+len(f.Soft))
	marks, _ := c.CnfSince(g, nil)
	add := func(ms []z.Lit) {
		for _, m := range ms {
			g.Add(m)
		}
		g.Add(z.LitNull)
	}
	clause := func(cl encoding.Clause) []z.Lit {
		ms := make([]z.Lit, len(cl), len(cl)+1)
		for i, l := range cl {
			ms[i] = toLit(l)
		}
		return ms
	}

	for _, cl := range f.Hard {
		add(clause(cl))
	}
	var violated []z.Lit
	for _, sc := range f.Soft {
		var v z.Lit
		if len(sc.Lits) == 1 {
			v = toLit(sc.Lits[0]).Not()
		} else {
			v = c.Lit()
			add(append(clause(sc.Lits), v))
		}
		for i := 0; i < sc.Weight; i++ {
			violated = append(violated, v)
		}
	}

	model := func() encoding.Assignment {
		return r.assignment(f.NumVars, func(d int) bool { return g.Value(lits[d]) })
	}

	switch b.run(ctx, g) {
	case unsatisfiable:
		return &Result{Status: Unsatisfiable, Elapsed: time.Since(start)}, nil
	case satisfiable:
	default:
		return &Result{Status: Unknown, Elapsed: time.Since(start)}, incomplete(ctx)
	}

	best := model()
	bound := f.Cost(best)
	if bound > 0 {
		cs := c.CardSort(violated)
		for w := 0; w < bound; w++ {
			marks, _ = c.CnfSince(g, marks, cs.Leq(w))
			g.Assume(cs.Leq(w))
			res := b.run(ctx, g)
			if res == satisfiable {
				best = model()
				break
			}
			if res != unsatisfiable {
				return &Result{Status: Satisfiable, Model: best, Cost: f.Cost(best), Elapsed: time.Since(start)}, nil
			}
		}
	}
	return &Result{Status: Optimal, Model: best, Cost: f.Cost(best), Elapsed: time.Since(start)}, nil
}
