package core

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveDelta(t *testing.T) {
	tests := []struct {
		move Move
		want Cell
	}{
		{Stay, C(0, 0)},
		{East, C(1, 0)},
		{West, C(-1, 0)},
		{North, C(0, 1)},
		{South, C(0, -1)},
	}

	for _, tt := range tests {
		got := tt.move.Delta()
		if got != tt.want {
			t.Errorf("%v.Delta() = %v, want %v", tt.move, got, tt.want)
		}
	}
}

func TestNeighborOrder(t *testing.T) {
	g := NewGrid(3, 3)
	got := g.Neighbors(C(1, 1))
	want := []Cell{C(1, 1), C(2, 1), C(0, 1), C(1, 2), C(1, 0)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Neighbors mismatch (-want +got):\n%s", diff)
	}

	// Corner with an obstacle to the east.
	require.NoError(t, g.Block(C(1, 0)))
	got = g.Neighbors(C(0, 0))
	want = []Cell{C(0, 0), C(0, 1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Neighbors mismatch (-want +got):\n%s", diff)
	}

	if n := g.Neighbors(C(1, 0)); len(n) != 0 {
		t.Errorf("blocked cell has neighbours %v", n)
	}
}

func TestGridIndex(t *testing.T) {
	g := NewGrid(4, 3)
	for i := 0; i < g.Size(); i++ {
		c := g.CellAt(i)
		if got := g.Index(c); got != i {
			t.Errorf("Index(CellAt(%d)) = %d", i, got)
		}
	}
	assert.Equal(t, 5, g.Index(C(1, 2)))
	assert.Error(t, g.Block(C(4, 0)))
}

func TestAdjacent(t *testing.T) {
	g := NewGrid(2, 2)
	assert.True(t, g.Adjacent(C(0, 0), C(0, 0)))
	assert.True(t, g.Adjacent(C(0, 0), C(1, 0)))
	assert.False(t, g.Adjacent(C(0, 0), C(1, 1)))
	assert.False(t, g.Adjacent(C(0, 0), C(2, 0)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Instance
		ok    bool
	}{
		{"valid", func() *Instance {
			inst := NewInstance(3, 3, 4)
			inst.AddAgent(C(0, 0), C(2, 2))
			return inst
		}, true},
		{"zero width", func() *Instance {
			return NewInstance(0, 3, 4)
		}, false},
		{"negative horizon", func() *Instance {
			inst := NewInstance(3, 3, -2)
			inst.AddAgent(C(0, 0), C(2, 2))
			return inst
		}, false},
		{"start out of bounds", func() *Instance {
			inst := NewInstance(3, 3, 4)
			inst.AddAgent(C(3, 0), C(2, 2))
			return inst
		}, false},
		{"goal blocked", func() *Instance {
			inst := NewInstance(3, 3, 4)
			_ = inst.Grid.Block(C(2, 2))
			inst.AddAgent(C(0, 0), C(2, 2))
			return inst
		}, false},
		{"shared start", func() *Instance {
			inst := NewInstance(3, 3, 4)
			inst.AddAgent(C(0, 0), C(2, 2))
			inst.AddAgent(C(0, 0), C(2, 1))
			return inst
		}, false},
		{"shared goal", func() *Instance {
			inst := NewInstance(3, 3, 4)
			inst.AddAgent(C(0, 0), C(2, 2))
			inst.AddAgent(C(0, 1), C(2, 2))
			return inst
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInstance), "error %v should match ErrInvalidInstance", err)
		})
	}
}

func TestValidateAggregates(t *testing.T) {
	inst := NewInstance(2, 2, -1)
	inst.AddAgent(C(5, 5), C(0, 0))
	inst.AddAgent(C(0, 1), C(0, 0))

	err := inst.Validate()
	var inv InvalidInstanceError
	require.True(t, errors.As(err, &inv))
	assert.Len(t, inv.Problems, 3)

	assert.Error(t, inst.ValidateLayout())
}

func TestParseInstance(t *testing.T) {
	doc := `
name: corridor
width: 3
height: 1
obstacles: [[1, 0]]
agents:
  - start: [0, 0]
    goal: [2, 0]
horizon: 4
`
	inst, err := ParseInstance([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "corridor", inst.Name)
	assert.Equal(t, 4, inst.Horizon)
	assert.True(t, inst.Grid.Blocked(C(1, 0)))
	require.Len(t, inst.Agents, 1)
	assert.Equal(t, Agent{ID: 0, Start: C(0, 0), Goal: C(2, 0)}, *inst.Agents[0])
}

func TestParseInstanceJSON(t *testing.T) {
	doc := `{"width": 2, "height": 2, "agents": [{"start": {"x": 0, "y": 0}, "goal": [1, 1]}]}`
	inst, err := ParseInstance([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, AutoHorizon, inst.Horizon)
	assert.Equal(t, C(1, 1), inst.Agents[0].Goal)
}

func TestParseInstanceRejects(t *testing.T) {
	for _, doc := range []string{
		"width: 2\nheight: 2\nagents: [{start: [0], goal: [1, 1]}]",
		"width: 2\nheight: 2\nobstacles: [[3, 3]]",
		"width: 2\nheight: 2\ncolour: red",
	} {
		_, err := ParseInstance([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestWriteInstanceRoundTrip(t *testing.T) {
	inst := NewInstance(4, 3, 7)
	inst.Name = "rt"
	require.NoError(t, inst.Grid.Block(C(1, 1), C(2, 1)))
	inst.AddAgent(C(0, 0), C(3, 2))
	inst.AddAgent(C(3, 0), C(0, 2))

	var buf bytes.Buffer
	require.NoError(t, WriteInstance(&buf, inst))
	back, err := ParseInstance(buf.Bytes())
	require.NoError(t, err)

	h1, err := inst.Fingerprint()
	require.NoError(t, err)
	h2, err := back.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	back.Agents[1].Goal = C(1, 2)
	h3, err := back.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestWriteInstanceJSON(t *testing.T) {
	inst := NewInstance(3, 2, AutoHorizon)
	require.NoError(t, inst.Grid.Block(C(1, 1)))
	inst.AddAgent(C(0, 0), C(2, 1))

	var buf bytes.Buffer
	require.NoError(t, WriteInstanceJSON(&buf, inst))
	assert.Contains(t, buf.String(), `"obstacles": [
    [
      1,
      1
    ]
  ]`)
	assert.NotContains(t, buf.String(), "horizon")

	back, err := ParseInstance(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, AutoHorizon, back.Horizon)
	assert.True(t, back.Grid.Blocked(C(1, 1)))
	assert.Equal(t, C(2, 1), back.Agents[0].Goal)
}

func TestSettleTime(t *testing.T) {
	tests := []struct {
		path Path
		want int
	}{
		{Path{C(0, 0)}, 0},
		{Path{C(0, 0), C(1, 0), C(1, 0)}, 1},
		{Path{C(1, 0), C(0, 0), C(1, 0)}, 2},
		{Path{C(0, 0), C(0, 0), C(0, 0)}, 0},
	}
	for _, tt := range tests {
		if got := tt.path.SettleTime(); got != tt.want {
			t.Errorf("%v.SettleTime() = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestComputeMakespan(t *testing.T) {
	sol := NewSolution(4)
	sol.Paths[0] = Path{C(0, 0), C(1, 0), C(2, 0), C(2, 0), C(2, 0)}
	sol.Paths[1] = Path{C(0, 1), C(0, 1), C(1, 1), C(2, 1), C(3, 1)}

	assert.Equal(t, 4, sol.ComputeMakespan())
	assert.Equal(t, 6, sol.SumOfCosts)
	assert.Equal(t, map[AgentID]int{0: 2, 1: 4}, sol.Arrival)
}
