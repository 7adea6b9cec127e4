// Package card encodes cardinality constraints over DIMACS literals into CNF.
package card

import (
	"strings"

	"github.com/pkg/errors"
)

// Sink receives clauses and hands out fresh auxiliary variables.
type Sink interface {
	AddClause(lits ...int)
	NewVar() int
}

// Encoding selects a CNF translation.
type Encoding int

const (
	// Pairwise forbids every pair: n(n-1)/2 binary clauses, no auxiliaries.
	Pairwise Encoding = iota
	// Ladder is the sequential (regular) encoding: 3n-4 clauses, n-1 auxiliaries.
	Ladder
)

var encodingNames = [...]string{"pairwise", "ladder"}

func (e Encoding) String() string {
	if e < 0 || int(e) >= len(encodingNames) {
		return "unknown"
	}
	return encodingNames[e]
}

// ParseEncoding maps a name ("pairwise", "ladder", "sequential") to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "pairwise", "naive":
		return Pairwise, nil
	case "ladder", "sequential", "regular":
		return Ladder, nil
	}
	return 0, errors.Errorf("unknown cardinality encoding %q", s)
}

// Set implements pflag.Value.
func (e *Encoding) Set(s string) error {
	v, err := ParseEncoding(s)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Type implements pflag.Value.
func (e *Encoding) Type() string { return "encoding" }

// AtLeastOne adds the clause (l1 ∨ ... ∨ ln). With no literals this is the
// empty clause, which makes the formula unsatisfiable.
func AtLeastOne(s Sink, lits []int) {
	s.AddClause(lits...)
}

// AtMostOne adds clauses allowing at most one of lits to be true.
func AtMostOne(s Sink, enc Encoding, lits []int) {
	if len(lits) < 2 {
		return
	}
	switch enc {
	case Ladder:
		ladderAMO(s, lits)
	default:
		pairwiseAMO(s, lits)
	}
}

// ExactlyOne adds clauses requiring exactly one of lits to be true.
func ExactlyOne(s Sink, enc Encoding, lits []int) {
	AtLeastOne(s, lits)
	AtMostOne(s, enc, lits)
}

func pairwiseAMO(s Sink, lits []int) {
	for i := 0; i < len(lits); i++ {
		for j := i + 1; j < len(lits); j++ {
			s.AddClause(-lits[i], -lits[j])
		}
	}
}

// ladderAMO: y_i means "some x_j with j <= i is true".
func ladderAMO(s Sink, lits []int) {
	n := len(lits)
	y := make([]int, n-1)
	for i := range y {
		y[i] = s.NewVar()
	}
	for i := 0; i < n-1; i++ {
		s.AddClause(-lits[i], y[i])
		if i > 0 {
			s.AddClause(-y[i-1], y[i])
			s.AddClause(-lits[i], -y[i-1])
		}
	}
	s.AddClause(-lits[n-1], -y[n-2])
}

// Collector is a Sink that stores clauses in memory, numbering auxiliaries
// after Next-1.
type Collector struct {
	Clauses [][]int
	Next    int
}

// NewCollector returns a Collector whose first auxiliary variable is first.
func NewCollector(first int) *Collector {
	return &Collector{Next: first}
}

func (c *Collector) AddClause(lits ...int) {
	cl := make([]int, len(lits))
	copy(cl, lits)
	c.Clauses = append(c.Clauses, cl)
}

func (c *Collector) NewVar() int {
	v := c.Next
	c.Next++
	return v
}
