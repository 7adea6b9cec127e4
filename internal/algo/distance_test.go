package algo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

func TestComputeDistancesUnit(t *testing.T) {
	g := core.NewGrid(3, 3)
	m := ComputeDistances(g, core.C(0, 0), nil)

	for _, c := range g.Cells() {
		want := float64(c.Manhattan(core.C(0, 0)))
		if got := m.At(c); got != want {
			t.Errorf("dist((0,0), %v) = %v, want %v", c, got, want)
		}
	}
	assert.False(t, IsFinite(m.At(core.C(5, 5))))
}

func TestComputeDistancesObstacles(t *testing.T) {
	// .#.
	// .#.
	// ...
	g := core.NewGrid(3, 3)
	require.NoError(t, g.Block(core.C(1, 1), core.C(1, 2)))
	m := ComputeDistances(g, core.C(0, 2), nil)

	assert.Equal(t, 6.0, m.At(core.C(2, 2)))
	assert.Equal(t, 2.0, m.At(core.C(0, 0)))
	assert.True(t, math.IsInf(m.At(core.C(1, 1)), 1))
}

func TestComputeDistancesDisconnected(t *testing.T) {
	g := core.NewGrid(3, 1)
	require.NoError(t, g.Block(core.C(1, 0)))
	m := ComputeDistances(g, core.C(0, 0), nil)

	assert.Equal(t, 0.0, m.At(core.C(0, 0)))
	assert.False(t, m.Reachable(core.C(2, 0)))
	assert.False(t, IsFinite(ShortestDistance(g, core.C(0, 0), core.C(2, 0), nil)))
}

func TestShortestDistanceAgreesWithMap(t *testing.T) {
	g := core.NewGrid(5, 4)
	require.NoError(t, g.Block(core.C(1, 0), core.C(1, 1), core.C(1, 2), core.C(3, 1), core.C(3, 2), core.C(3, 3)))

	for _, src := range g.Cells() {
		m := ComputeDistances(g, src, nil)
		for _, dst := range g.Cells() {
			got := ShortestDistance(g, src, dst, nil)
			want := m.At(dst)
			if got != want && !(math.IsInf(got, 1) && math.IsInf(want, 1)) {
				t.Errorf("ShortestDistance(%v, %v) = %v, map says %v", src, dst, got, want)
			}
		}
	}
}

func TestTriangleInequality(t *testing.T) {
	g := core.NewGrid(4, 4)
	require.NoError(t, g.Block(core.C(1, 1), core.C(2, 1)))
	m := ComputeDistances(g, core.C(0, 0), nil)

	for _, u := range g.Cells() {
		for _, v := range g.Neighbors(u) {
			if !m.Reachable(u) {
				continue
			}
			if m.At(v) > m.At(u)+1 {
				t.Errorf("dist(%v)=%v exceeds dist(%v)+1=%v", v, m.At(v), u, m.At(u)+1)
			}
		}
	}
}

func TestComputeDistancesToDirected(t *testing.T) {
	g := core.NewGrid(3, 1)
	// Moving east costs 1, moving west costs 5.
	cost := func(from, to core.Cell) float64 {
		if to.X > from.X {
			return 1
		}
		return 5
	}

	from := ComputeDistances(g, core.C(0, 0), cost)
	to := ComputeDistancesTo(g, core.C(0, 0), cost)

	assert.Equal(t, 2.0, from.At(core.C(2, 0)))
	assert.Equal(t, 10.0, to.At(core.C(2, 0)))
	assert.Equal(t, ShortestDistance(g, core.C(2, 0), core.C(0, 0), cost), to.At(core.C(2, 0)))
}

func TestOracle(t *testing.T) {
	inst := core.NewInstance(4, 4, 6)
	inst.AddAgent(core.C(0, 0), core.C(3, 3))
	inst.AddAgent(core.C(3, 0), core.C(0, 3))

	o := NewOracle(inst, nil, 2)
	assert.Equal(t, 2, o.Agents())
	assert.Equal(t, 6.0, o.StartToGoal(0))
	assert.Equal(t, 6.0, o.StartToGoal(1))
	assert.Equal(t, 2.0, o.FromStart(0, core.C(1, 1)))
	assert.Equal(t, 4.0, o.ToGoal(0, core.C(1, 1)))
	assert.Equal(t, 3.0, o.Distance(core.C(3, 0), core.C(0, 0)))
	assert.Equal(t, 2.0, o.Distance(core.C(1, 1), core.C(2, 2)))
}
