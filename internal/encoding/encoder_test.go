package encoding

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-sat/internal/card"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// pairwiseOptions avoids auxiliaries so witnesses can be built by hand.
func pairwiseOptions() Options {
	opts := DefaultOptions()
	opts.AtMostOne = card.Pairwise
	opts.Logger = quietLogger()
	return opts
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

// witness builds the assignment a valid plan induces on the core variables:
// occ from the paths, flow along each occupant's move (stay for empty
// cells), arrived from each agent's settle time.
func witness(enc *Encoded, paths map[core.AgentID]core.Path) Assignment {
	inst, ix := enc.Instance, enc.Indexer
	m := make(Assignment, enc.Formula.NumVars+1)
	occupant := make(map[core.Cell]core.AgentID)

	for t := 0; t <= inst.Horizon; t++ {
		for k := range occupant {
			delete(occupant, k)
		}
		for id, p := range paths {
			m[ix.Occ(id, p[t], t)] = true
			occupant[p[t]] = id
		}
		if t == inst.Horizon {
			break
		}
		for _, u := range inst.Grid.Cells() {
			if id, ok := occupant[u]; ok {
				m[ix.Flow(u, paths[id][t+1], t)] = true
			} else {
				m[ix.Flow(u, u, t)] = true
			}
		}
	}
	for id, p := range paths {
		for t := p.SettleTime(); t <= inst.Horizon; t++ {
			m[ix.Arrived(id, t)] = true
		}
	}
	return m
}

func encode(t *testing.T, inst *core.Instance, opts Options) *Encoded {
	t.Helper()
	enc, err := NewEncoder(opts).Encode(inst)
	require.NoError(t, err)
	return enc
}

func TestSingleAgentWitness(t *testing.T) {
	inst := core.NewInstance(3, 3, 4)
	inst.AddAgent(core.C(0, 0), core.C(2, 2))
	enc := encode(t, inst, pairwiseOptions())

	path := core.Path{core.C(0, 0), core.C(1, 0), core.C(1, 1), core.C(2, 1), core.C(2, 2)}
	m := witness(enc, map[core.AgentID]core.Path{0: path})
	require.NoError(t, enc.Formula.CheckHard(m))
	assert.Equal(t, 0, enc.Formula.Cost(m))

	sol, err := enc.Decode(m, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(path, sol.Paths[0]); diff != "" {
		t.Errorf("decoded path mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, sol.Arrival[0])
	assert.Empty(t, enc.Formula.Infeasible)
}

func TestCrossingAgentsWitness(t *testing.T) {
	inst := core.NewInstance(3, 3, 6)
	inst.AddAgent(core.C(0, 1), core.C(2, 1))
	inst.AddAgent(core.C(1, 0), core.C(1, 2))
	enc := encode(t, inst, pairwiseOptions())

	// Agent 1 waits for agent 0 to clear the centre, then crosses.
	paths := map[core.AgentID]core.Path{
		0: {core.C(0, 1), core.C(1, 1), core.C(2, 1), core.C(2, 1), core.C(2, 1), core.C(2, 1), core.C(2, 1)},
		1: {core.C(1, 0), core.C(1, 0), core.C(1, 0), core.C(1, 1), core.C(1, 2), core.C(1, 2), core.C(1, 2)},
	}
	m := witness(enc, paths)
	require.NoError(t, enc.Formula.CheckHard(m))

	sol, err := enc.Decode(m, enc.Formula.Cost(m))
	require.NoError(t, err)
	assert.Equal(t, 2, sol.Cost)
	assert.Equal(t, sol.Cost, enc.Objective(sol))
	assert.Equal(t, 6, sol.SumOfCosts)
}

func TestForbiddenPlans(t *testing.T) {
	tests := []struct {
		name  string
		width int
		h     int
		a0    core.Path
		a1    core.Path
	}{
		{
			name:  "vertex collision",
			width: 3, h: 2,
			a0: core.Path{core.C(0, 0), core.C(1, 0), core.C(2, 0)},
			a1: core.Path{core.C(2, 0), core.C(1, 0), core.C(0, 0)},
		},
		{
			name:  "swap",
			width: 2, h: 1,
			a0: core.Path{core.C(0, 0), core.C(1, 0)},
			a1: core.Path{core.C(1, 0), core.C(0, 0)},
		},
		{
			name:  "following",
			width: 3, h: 1,
			a0: core.Path{core.C(1, 0), core.C(2, 0)},
			a1: core.Path{core.C(0, 0), core.C(1, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := core.NewInstance(tt.width, 1, tt.h)
			inst.AddAgent(tt.a0[0], tt.a0[len(tt.a0)-1])
			inst.AddAgent(tt.a1[0], tt.a1[len(tt.a1)-1])
			enc := encode(t, inst, pairwiseOptions())

			m := witness(enc, map[core.AgentID]core.Path{0: tt.a0, 1: tt.a1})
			assert.Error(t, enc.Formula.CheckHard(m))
		})
	}
}

func TestObjectiveMonotone(t *testing.T) {
	inst := core.NewInstance(3, 1, 4)
	inst.AddAgent(core.C(0, 0), core.C(2, 0))
	enc := encode(t, inst, pairwiseOptions())

	plans := []core.Path{
		{core.C(0, 0), core.C(1, 0), core.C(2, 0), core.C(2, 0), core.C(2, 0)},
		{core.C(0, 0), core.C(0, 0), core.C(1, 0), core.C(2, 0), core.C(2, 0)},
		{core.C(0, 0), core.C(1, 0), core.C(1, 0), core.C(1, 0), core.C(2, 0)},
	}
	last := -1
	for i, p := range plans {
		m := witness(enc, map[core.AgentID]core.Path{0: p})
		require.NoError(t, enc.Formula.CheckHard(m), "plan %d", i)
		cost := enc.Formula.Cost(m)
		if cost <= last {
			t.Errorf("plan %d arrives later but costs %d <= %d", i, cost, last)
		}
		last = cost
	}
}

func TestEncodeHorizonZero(t *testing.T) {
	inst := core.NewInstance(1, 1, 0)
	inst.AddAgent(core.C(0, 0), core.C(0, 0))
	enc := encode(t, inst, DefaultOptions())

	f := enc.Formula
	arrived := enc.Indexer.Arrived(0, 0)
	assert.Equal(t, []SoftClause{{Weight: 1, Lits: Clause{arrived}}}, f.Soft)
	assert.Contains(t, f.Hard, Clause{arrived})
	assert.False(t, f.Unsatisfiable())

	m := witness(enc, map[core.AgentID]core.Path{0: {core.C(0, 0)}})
	assert.NoError(t, f.CheckHard(m))
	assert.True(t, m.Value(arrived))
}

func TestEncodeBlockedConnection(t *testing.T) {
	inst := core.NewInstance(3, 1, 4)
	require.NoError(t, inst.Grid.Block(core.C(1, 0)))
	inst.AddAgent(core.C(0, 0), core.C(2, 0))

	logger, hook := test.NewNullLogger()
	opts := DefaultOptions()
	opts.Logger = logger
	enc := encode(t, inst, opts)

	assert.True(t, enc.Formula.Unsatisfiable())
	assert.Equal(t, []core.AgentID{0}, enc.Formula.Infeasible)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, core.AgentID(0), hook.LastEntry().Data["agent"])
}

func TestEncodeHorizonTooShort(t *testing.T) {
	inst := core.NewInstance(3, 3, 2)
	inst.AddAgent(core.C(0, 0), core.C(2, 2))
	enc := encode(t, inst, pairwiseOptions())
	assert.True(t, enc.Formula.Unsatisfiable())
	assert.Equal(t, []core.AgentID{0}, enc.Formula.Infeasible)
}

func TestEncodeDeterministic(t *testing.T) {
	inst := core.NewInstance(4, 4, 7)
	require.NoError(t, inst.Grid.Block(core.C(1, 1), core.C(2, 2)))
	inst.AddAgent(core.C(0, 0), core.C(3, 3))
	inst.AddAgent(core.C(3, 0), core.C(0, 3))
	inst.AddAgent(core.C(0, 3), core.C(3, 0))

	opts := DefaultOptions()
	opts.Logger = quietLogger()
	opts.Parallelism = 1
	want := encode(t, inst, opts).Formula

	for _, p := range []int{2, 4, 16} {
		opts.Parallelism = p
		for run := 0; run < 3; run++ {
			got := encode(t, inst, opts).Formula
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("parallelism %d run %d differs (-want +got):\n%s", p, run, diff)
			}
		}
	}
}

func TestEncodeLiteralRange(t *testing.T) {
	inst := core.NewInstance(3, 3, 5)
	inst.AddAgent(core.C(0, 0), core.C(2, 2))
	inst.AddAgent(core.C(2, 0), core.C(0, 2))
	inst.AddAgent(core.C(1, 0), core.C(1, 2))
	opts := DefaultOptions()
	opts.Logger = quietLogger()
	enc := encode(t, inst, opts)
	f := enc.Formula

	require.Greater(t, f.NumVars, f.CoreVars, "ladder at-most-one over three agents needs auxiliaries")
	check := func(c Clause) {
		for _, l := range c {
			if l == 0 || abs(l) > f.NumVars {
				t.Fatalf("literal %d outside 1..%d", l, f.NumVars)
			}
		}
	}
	for _, c := range f.Hard {
		check(c)
	}
	for _, c := range f.Soft {
		check(c.Lits)
		assert.Len(t, c.Lits, 1)
		v, _ := enc.Indexer.Decode(c.Lits[0])
		assert.Equal(t, FamilyArrived, v.Family)
	}
	// [d, horizon] per agent with d = 4, 4, 2
	assert.Len(t, f.Soft, 2+2+4)
}

func TestEncodeRejects(t *testing.T) {
	inst := core.NewInstance(3, 3, 4)
	inst.AddAgent(core.C(0, 0), core.C(3, 3))
	_, err := NewEncoder(DefaultOptions()).Encode(inst)
	assert.True(t, errors.Is(err, core.ErrInvalidInstance))

	inst = core.NewInstance(10, 10, 50)
	inst.AddAgent(core.C(0, 0), core.C(9, 9))
	opts := DefaultOptions()
	opts.MaxVar = 1000
	_, err = NewEncoder(opts).Encode(inst)
	assert.True(t, errors.Is(err, ErrCapacity))
}
