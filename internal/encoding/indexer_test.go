package encoding

import (
	"math"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

func TestIndexerBijection(t *testing.T) {
	const w, h, agents, horizon = 3, 2, 2, 3
	ix, err := NewIndexer(w, h, agents, horizon, 0)
	require.NoError(t, err)

	steps := horizon + 1
	wantTotal := agents*w*h*steps + w*h*w*h*steps + agents*steps
	require.Equal(t, wantTotal, ix.NumVars())

	seen := make(map[int]Var)
	record := func(id int, v Var) {
		if id < 1 || id > ix.NumVars() {
			t.Fatalf("%v has id %d outside 1..%d", v, id, ix.NumVars())
		}
		if prev, dup := seen[id]; dup {
			t.Fatalf("%v and %v share id %d", prev, v, id)
		}
		seen[id] = v
		got, ok := ix.Decode(id)
		if !ok || got != v {
			t.Errorf("Decode(%d) = %v, want %v", id, got, v)
		}
	}

	g := core.NewGrid(w, h)
	for a := 0; a < agents; a++ {
		for _, c := range g.Cells() {
			for ts := 0; ts <= horizon; ts++ {
				record(ix.Occ(core.AgentID(a), c, ts), Var{Family: FamilyOcc, Agent: core.AgentID(a), Cell: c, T: ts})
			}
		}
	}
	for _, u := range g.Cells() {
		for _, v := range g.Cells() {
			for ts := 0; ts <= horizon; ts++ {
				record(ix.Flow(u, v, ts), Var{Family: FamilyFlow, Cell: u, To: v, T: ts})
			}
		}
	}
	for a := 0; a < agents; a++ {
		for ts := 0; ts <= horizon; ts++ {
			record(ix.Arrived(core.AgentID(a), ts), Var{Family: FamilyArrived, Agent: core.AgentID(a), T: ts})
		}
	}
	assert.Len(t, seen, ix.NumVars())

	v, ok := ix.Decode(ix.NumVars() + 1)
	assert.True(t, ok)
	assert.Equal(t, FamilyAux, v.Family)
	_, ok = ix.Decode(0)
	assert.False(t, ok)
}

func TestIndexerLayout(t *testing.T) {
	ix, err := NewIndexer(3, 3, 1, 4, 0)
	require.NoError(t, err)

	// T = 5: occ ids are a*45 + x*15 + y*5 + t + 1.
	assert.Equal(t, 1, ix.Occ(0, core.C(0, 0), 0))
	assert.Equal(t, 15+2*5+3+1, ix.Occ(0, core.C(1, 2), 3))
	assert.Equal(t, 45+1, ix.Flow(core.C(0, 0), core.C(0, 0), 0))
	assert.Equal(t, 45+81*5+1, ix.Arrived(0, 0))
	assert.Equal(t, 45+81*5+5, ix.NumVars())
	assert.Equal(t, 4, ix.Horizon())
}

func TestIndexerCapacity(t *testing.T) {
	_, err := NewIndexer(100, 100, 10, 100, 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))

	_, err = NewIndexer(1<<20, 1<<20, 1<<10, 1<<20, 0)
	assert.True(t, errors.Is(err, ErrCapacity))

	_, err = NewIndexer(0, 3, 1, 1, 0)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCapacity))
}

func TestIndexerLimitFitsInt(t *testing.T) {
	// 2^32 flow ids plus 2^16 occ ids and one arrived id.
	const want int64 = 1<<32 + 1<<16 + 1
	ix, err := NewIndexer(256, 256, 1, 0, math.MaxInt64)
	if strconv.IntSize == 32 {
		assert.True(t, errors.Is(err, ErrCapacity))
		return
	}
	require.NoError(t, err)
	assert.Equal(t, want, int64(ix.NumVars()))
	assert.Equal(t, want, int64(ix.Arrived(0, 0)))
}
