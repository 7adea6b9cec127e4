package encoding

import (
	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Clause is a disjunction of DIMACS literals.
type Clause []int

// SoftClause is a clause whose violation costs Weight.
type SoftClause struct {
	Weight int
	Lits   Clause
}

// Formula is a weighted partial MaxSAT problem. Ids 1..CoreVars belong to
// the indexer families; CoreVars+1..NumVars are auxiliaries.
type Formula struct {
	NumVars    int
	CoreVars   int
	Hard       []Clause
	Soft       []SoftClause
	Infeasible []core.AgentID // agents with an empty feasibility window
}

// Stats summarizes a formula.
type Stats struct {
	Vars       int
	CoreVars   int
	AuxVars    int
	Hard       int
	Soft       int
	Literals   int
	SoftWeight int
}

// Stats counts clauses, literals and variables.
func (f *Formula) Stats() Stats {
	s := Stats{
		Vars:     f.NumVars,
		CoreVars: f.CoreVars,
		AuxVars:  f.NumVars - f.CoreVars,
		Hard:     len(f.Hard),
		Soft:     len(f.Soft),
	}
	for _, c := range f.Hard {
		s.Literals += len(c)
	}
	for _, c := range f.Soft {
		s.Literals += len(c.Lits)
		s.SoftWeight += c.Weight
	}
	return s
}

// TopWeight is one more than the total soft weight, the WCNF hard marker.
func (f *Formula) TopWeight() int {
	return f.Stats().SoftWeight + 1
}

// Unsatisfiable reports whether a hard clause is empty.
func (f *Formula) Unsatisfiable() bool {
	for _, c := range f.Hard {
		if len(c) == 0 {
			return true
		}
	}
	return false
}

// Assignment holds a truth value per variable id; index 0 is unused.
type Assignment []bool

// Value evaluates a literal. Unknown variables are false.
func (m Assignment) Value(lit int) bool {
	v := lit
	if v < 0 {
		v = -v
	}
	if v >= len(m) {
		return lit < 0
	}
	return m[v] == (lit > 0)
}

// Satisfies reports whether some literal of c is true.
func (m Assignment) Satisfies(c Clause) bool {
	for _, l := range c {
		if m.Value(l) {
			return true
		}
	}
	return false
}

// CheckHard returns an error naming the first violated hard clause.
func (f *Formula) CheckHard(m Assignment) error {
	for i, c := range f.Hard {
		if !m.Satisfies(c) {
			return errors.Errorf("hard clause %d %v violated", i, c)
		}
	}
	return nil
}

// Cost is the total weight of soft clauses m violates.
func (f *Formula) Cost(m Assignment) int {
	cost := 0
	for _, c := range f.Soft {
		if !m.Satisfies(c.Lits) {
			cost += c.Weight
		}
	}
	return cost
}

// Builder is an append-only clause buffer with a private auxiliary counter.
// Auxiliary ids start right after coreVars and are renumbered by Merge.
type Builder struct {
	coreVars int
	aux      int
	hard     []Clause
	soft     []SoftClause
}

// NewBuilder creates a buffer for a formula whose core ids end at coreVars.
func NewBuilder(coreVars int) *Builder {
	return &Builder{coreVars: coreVars}
}

// AddClause appends a hard clause. The literals are copied.
func (b *Builder) AddClause(lits ...int) {
	c := make(Clause, len(lits))
	copy(c, lits)
	b.hard = append(b.hard, c)
}

// AddSoft appends a soft clause with a positive weight.
func (b *Builder) AddSoft(weight int, lits ...int) {
	c := make(Clause, len(lits))
	copy(c, lits)
	b.soft = append(b.soft, SoftClause{Weight: weight, Lits: c})
}

// NewVar allocates an auxiliary variable.
func (b *Builder) NewVar() int {
	b.aux++
	return b.coreVars + b.aux
}

// Len is the number of buffered clauses.
func (b *Builder) Len() int {
	return len(b.hard) + len(b.soft)
}

// Merge concatenates parts in order into one formula. Part k's auxiliary ids
// are shifted by the auxiliary count of parts 0..k-1, so the result depends
// only on the order of parts. Clauses are relocated in place; parts must
// not be used afterwards.
func Merge(coreVars int, parts ...*Builder) *Formula {
	f := &Formula{CoreVars: coreVars}
	nh, ns := 0, 0
	for _, p := range parts {
		nh += len(p.hard)
		ns += len(p.soft)
	}
	f.Hard = make([]Clause, 0, nh)
	f.Soft = make([]SoftClause, 0, ns)

	offset := 0
	for _, p := range parts {
		relocate := func(c Clause) Clause {
			if offset == 0 {
				return c
			}
			for i, l := range c {
				switch {
				case l > coreVars:
					c[i] = l + offset
				case -l > coreVars:
					c[i] = l - offset
				}
			}
			return c
		}
		for _, c := range p.hard {
			f.Hard = append(f.Hard, relocate(c))
		}
		for _, c := range p.soft {
			f.Soft = append(f.Soft, SoftClause{Weight: c.Weight, Lits: relocate(c.Lits)})
		}
		offset += p.aux
	}
	f.NumVars = coreVars + offset
	return f
}
