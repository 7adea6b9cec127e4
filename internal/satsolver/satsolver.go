// Package satsolver runs encoded formulas through SAT and MaxSAT backends.
package satsolver

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
)

var (
	// ErrUnknownBackend is returned by New for unregistered names.
	ErrUnknownBackend = errors.New("unknown solver backend")
	// ErrIncomplete means the backend stopped before deciding the formula.
	ErrIncomplete = errors.New("solver stopped before an answer")
)

// Status of a solve.
type Status int

const (
	Unknown       Status = iota // interrupted before any model
	Satisfiable                 // model found, cost not proven minimal
	Optimal                     // model with minimal violated soft weight
	Unsatisfiable               // hard clauses have no model
)

func (s Status) String() string {
	return [...]string{"UNKNOWN", "SATISFIABLE", "OPTIMUM FOUND", "UNSATISFIABLE"}[s]
}

// Result is a backend answer. Model is indexed by variable id and Cost is
// the total weight of violated soft clauses.
type Result struct {
	Status  Status
	Model   encoding.Assignment
	Cost    int
	Elapsed time.Duration
}

// Backend solves weighted partial MaxSAT formulas. Implementations treat
// the formula as read-only.
type Backend interface {
	Solve(ctx context.Context, f *encoding.Formula) (*Result, error)
	Name() string
}

var registry = map[string]func() Backend{
	"gophersat": func() Backend { return NewGophersat() },
	"gini":      func() Backend { return NewGini() },
}

// DefaultBackend is used when no name is given.
const DefaultBackend = "gophersat"

// New returns the backend registered under name.
func New(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	mk, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q (have %v)", name, Names())
	}
	return mk(), nil
}

// Names lists registered backends.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// renumbering maps the variables a formula actually uses onto 1..n, so
// backends do not allocate for the unused part of the id space.
type renumbering struct {
	dense []int32 // id -> dense id, 0 if unused
	ids   []int   // dense id -> id; ids[0] unused
}

func renumber(f *encoding.Formula) *renumbering {
	r := &renumbering{dense: make([]int32, f.NumVars+1), ids: []int{0}}
	visit := func(c encoding.Clause) {
		for _, l := range c {
			v := l
			if v < 0 {
				v = -v
			}
			if r.dense[v] == 0 {
				r.ids = append(r.ids, v)
				r.dense[v] = int32(len(r.ids) - 1)
			}
		}
	}
	for _, c := range f.Hard {
		visit(c)
	}
	for _, c := range f.Soft {
		visit(c.Lits)
	}
	return r
}

// n is the number of dense variables.
func (r *renumbering) n() int {
	return len(r.ids) - 1
}

func (r *renumbering) lit(l int) int {
	if l < 0 {
		return -int(r.dense[-l])
	}
	return int(r.dense[l])
}

func (r *renumbering) clause(c encoding.Clause) []int {
	out := make([]int, len(c))
	for i, l := range c {
		out[i] = r.lit(l)
	}
	return out
}

// assignment lifts a dense model back to formula ids.
func (r *renumbering) assignment(numVars int, value func(dense int) bool) encoding.Assignment {
	m := make(encoding.Assignment, numVars+1)
	for d := 1; d < len(r.ids); d++ {
		m[r.ids[d]] = value(d)
	}
	return m
}

func incomplete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrIncomplete, err.Error())
	}
	return ErrIncomplete
}
