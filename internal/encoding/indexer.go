// Package encoding reduces a MAPF instance to weighted partial MaxSAT.
package encoding

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// ErrCapacity is returned when an instance needs more variables than the
// configured maximum id.
var ErrCapacity = errors.New("variable capacity exceeded")

// DefaultMaxVar is the largest id both solver backends accept: their
// literals are 2*var in 32 bits.
const DefaultMaxVar = 1<<30 - 1

// Family names a variable kind.
type Family int

const (
	FamilyNone Family = iota
	FamilyOcc
	FamilyFlow
	FamilyArrived
	FamilyAux
)

func (f Family) String() string {
	return [...]string{"none", "occ", "flow", "arrived", "aux"}[f]
}

// Var is a decoded variable id.
type Var struct {
	Family Family
	Agent  core.AgentID // occ, arrived
	Cell   core.Cell    // occ; flow source
	To     core.Cell    // flow target
	T      int
}

func (v Var) String() string {
	switch v.Family {
	case FamilyOcc:
		return fmt.Sprintf("occ(%d,%v,%d)", v.Agent, v.Cell, v.T)
	case FamilyFlow:
		return fmt.Sprintf("flow(%v,%v,%d)", v.Cell, v.To, v.T)
	case FamilyArrived:
		return fmt.Sprintf("arrived(%d,%d)", v.Agent, v.T)
	}
	return v.Family.String()
}

// Indexer maps occ, flow and arrived variables to contiguous DIMACS ids
// with closed-form mixed-radix offsets:
//
//	occ(a,(x,y),t)  = a*W*H*T + x*H*T + y*T + t + 1
//	flow(u,v,t)     = flowOff + (((u.x*H + u.y)*W + v.x)*H + v.y)*T + t + 1
//	arrived(a,t)    = arrOff + a*T + t + 1
//
// where T = horizon+1. All arithmetic is 64-bit and the total is checked
// against the maximum id when the indexer is built.
type Indexer struct {
	w, h, agents, steps int64
	flowOff, arrOff     int64
	total               int64
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || c < 0 {
		return 0, false
	}
	return c, true
}

func mulAll(vs ...int64) (int64, bool) {
	p := int64(1)
	for _, v := range vs {
		var ok bool
		if p, ok = mul(p, v); !ok {
			return 0, false
		}
	}
	return p, true
}

// NewIndexer lays out the three families and fails with ErrCapacity when
// the last id would exceed maxVar (0 means DefaultMaxVar).
func NewIndexer(width, height, agents, horizon int, maxVar int64) (*Indexer, error) {
	if width <= 0 || height <= 0 || agents < 0 || horizon < 0 {
		return nil, errors.Errorf("indexer: bad dimensions w=%d h=%d agents=%d horizon=%d", width, height, agents, horizon)
	}
	if maxVar <= 0 {
		maxVar = DefaultMaxVar
	}
	if maxVar > math.MaxInt {
		maxVar = math.MaxInt
	}
	ix := &Indexer{
		w:      int64(width),
		h:      int64(height),
		agents: int64(agents),
		steps:  int64(horizon) + 1,
	}

	occ, ok1 := mulAll(ix.agents, ix.w, ix.h, ix.steps)
	flow, ok2 := mulAll(ix.w, ix.h, ix.w, ix.h, ix.steps)
	arr, ok3 := mulAll(ix.agents, ix.steps)
	if !ok1 || !ok2 || !ok3 || occ > math.MaxInt64-flow-arr {
		return nil, errors.Wrapf(ErrCapacity, "%dx%d grid, %d agents, horizon %d overflows 64 bits", width, height, agents, horizon)
	}
	ix.flowOff = occ
	ix.arrOff = occ + flow
	ix.total = occ + flow + arr
	if ix.total > maxVar {
		return nil, errors.Wrapf(ErrCapacity, "need %d variables, limit %d", ix.total, maxVar)
	}
	return ix, nil
}

// NumVars is the number of ids reserved by the three families.
func (ix *Indexer) NumVars() int { return int(ix.total) }

// Horizon is the last timestep.
func (ix *Indexer) Horizon() int { return int(ix.steps) - 1 }

// Occ is the id of "agent a is at c at time t".
func (ix *Indexer) Occ(a core.AgentID, c core.Cell, t int) int {
	return int(int64(a)*ix.w*ix.h*ix.steps + int64(c.X)*ix.h*ix.steps + int64(c.Y)*ix.steps + int64(t) + 1)
}

// Flow is the id of "the occupant of u moves to v between t and t+1".
// Flow(u, u, t) is the stay self-loop.
func (ix *Indexer) Flow(u, v core.Cell, t int) int {
	k := ((int64(u.X)*ix.h+int64(u.Y))*ix.w+int64(v.X))*ix.h + int64(v.Y)
	return int(ix.flowOff + k*ix.steps + int64(t) + 1)
}

// Arrived is the id of "agent a is at its goal from t to the horizon".
func (ix *Indexer) Arrived(a core.AgentID, t int) int {
	return int(ix.arrOff + int64(a)*ix.steps + int64(t) + 1)
}

// Decode inverts Occ, Flow and Arrived. Ids above NumVars decode as aux.
func (ix *Indexer) Decode(id int) (Var, bool) {
	n := int64(id) - 1
	switch {
	case n < 0:
		return Var{}, false
	case n < ix.flowOff:
		t := n % ix.steps
		n /= ix.steps
		y := n % ix.h
		n /= ix.h
		x := n % ix.w
		a := n / ix.w
		return Var{Family: FamilyOcc, Agent: core.AgentID(a), Cell: core.C(int(x), int(y)), T: int(t)}, true
	case n < ix.arrOff:
		n -= ix.flowOff
		t := n % ix.steps
		n /= ix.steps
		vy := n % ix.h
		n /= ix.h
		vx := n % ix.w
		n /= ix.w
		uy := n % ix.h
		ux := n / ix.h
		return Var{Family: FamilyFlow, Cell: core.C(int(ux), int(uy)), To: core.C(int(vx), int(vy)), T: int(t)}, true
	case n < ix.total:
		n -= ix.arrOff
		return Var{Family: FamilyArrived, Agent: core.AgentID(n / ix.steps), T: int(n % ix.steps)}, true
	}
	return Var{Family: FamilyAux}, true
}
