package encoding

import (
	"math"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/mapf-sat/internal/algo"
	"github.com/elektrokombinacija/mapf-sat/internal/card"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// Options configures an Encoder.
type Options struct {
	Parallelism int           // worker limit; 0 means GOMAXPROCS
	ExactlyOne  card.Encoding // for flow and position constraints
	AtMostOne   card.Encoding // for per-cell collision constraints
	MaxVar      int64         // largest id the solver accepts; 0 means DefaultMaxVar
	EdgeCost    algo.EdgeCost // nil means one per move
	Logger      logrus.FieldLogger
}

// DefaultOptions returns pairwise exactly-one, ladder at-most-one and
// DefaultMaxVar.
func DefaultOptions() Options {
	return Options{
		ExactlyOne: card.Pairwise,
		AtMostOne:  card.Ladder,
		MaxVar:     DefaultMaxVar,
	}
}

// Encoder builds MaxSAT formulas for MAPF instances.
type Encoder struct {
	opts Options
	log  logrus.FieldLogger
}

// NewEncoder creates an encoder.
func NewEncoder(opts Options) *Encoder {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}
	if opts.MaxVar <= 0 {
		opts.MaxVar = DefaultMaxVar
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Encoder{opts: opts, log: log}
}

// Encoded is the result of one encoding: the formula together with the
// intermediate data needed to decode a model.
type Encoded struct {
	Instance *core.Instance
	Indexer  *Indexer
	Oracle   *algo.Oracle
	Windows  []algo.Windows // by agent
	Formula  *Formula
	Duration time.Duration
}

// Encode validates inst and produces its formula. Instances where some
// agent cannot reach its goal in time still encode; the formula then holds
// an empty hard clause and lists the agent in Formula.Infeasible.
func (e *Encoder) Encode(inst *core.Instance) (*Encoded, error) {
	start := time.Now()
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	g := inst.Grid
	horizon := inst.Horizon
	ix, err := NewIndexer(g.Width, g.Height, len(inst.Agents), horizon, e.opts.MaxVar)
	if err != nil {
		return nil, err
	}

	oracle := algo.NewOracle(inst, e.opts.EdgeCost, e.opts.Parallelism)
	windows := oracle.BuildAllWindows(horizon)

	enc := &Encoded{
		Instance: inst,
		Indexer:  ix,
		Oracle:   oracle,
		Windows:  windows,
	}

	// Job order: one per timestep for the cell families, then one per agent.
	coreVars := ix.NumVars()
	parts := make([]*Builder, horizon+1+len(inst.Agents))
	var eg errgroup.Group
	eg.SetLimit(e.opts.Parallelism)
	for t := 0; t <= horizon; t++ {
		t := t
		eg.Go(func() error {
			b := NewBuilder(coreVars)
			e.encodeCells(b, enc, t)
			parts[t] = b
			return nil
		})
	}
	for _, a := range inst.Agents {
		a := a
		eg.Go(func() error {
			b := NewBuilder(coreVars)
			e.encodeAgent(b, enc, a)
			parts[horizon+1+int(a.ID)] = b
			return nil
		})
	}
	eg.Wait()

	f := Merge(coreVars, parts...)
	if int64(f.NumVars) > e.opts.MaxVar {
		return nil, errors.Wrapf(ErrCapacity, "need %d variables with auxiliaries, limit %d", f.NumVars, e.opts.MaxVar)
	}
	for _, a := range inst.Agents {
		if ws := windows[a.ID]; !ws.Feasible() {
			f.Infeasible = append(f.Infeasible, a.ID)
			e.log.WithFields(logrus.Fields{
				"agent": a.ID,
				"start": a.Start.String(),
				"goal":  a.Goal.String(),
				"t":     ws.FirstEmpty(),
			}).Warn("agent cannot reach its goal within the horizon, formula is unsatisfiable")
		}
	}
	enc.Formula = f
	enc.Duration = time.Since(start)

	s := f.Stats()
	e.log.WithFields(logrus.Fields{
		"vars":     s.Vars,
		"aux":      s.AuxVars,
		"hard":     s.Hard,
		"soft":     s.Soft,
		"literals": s.Literals,
		"horizon":  horizon,
		"elapsed":  enc.Duration,
	}).Debug("encoded instance")
	return enc, nil
}

// encodeCells emits the flow and collision constraints of timestep t.
func (e *Encoder) encodeCells(b *Builder, enc *Encoded, t int) {
	inst, ix := enc.Instance, enc.Indexer
	g := inst.Grid
	horizon := inst.Horizon

	for _, u := range g.Cells() {
		nbrs := g.Neighbors(u)

		if t < horizon {
			flows := make([]int, len(nbrs))
			for i, v := range nbrs {
				flows[i] = ix.Flow(u, v, t)
			}
			card.ExactlyOne(b, e.opts.ExactlyOne, flows)
			for _, v := range nbrs {
				// once per unordered pair
				if v != u && g.Index(u) < g.Index(v) {
					b.AddClause(-ix.Flow(u, v, t), -ix.Flow(v, u, t))
				}
			}
		}

		var occupants []int
		for _, a := range inst.Agents {
			if enc.Windows[a.ID].At(t).Contains(u) {
				occupants = append(occupants, ix.Occ(a.ID, u, t))
			}
		}
		card.AtMostOne(b, e.opts.AtMostOne, occupants)

		for _, v := range nbrs {
			if v != u {
				b.AddClause(-ix.Flow(u, v, t), ix.Flow(v, v, t))
			}
		}
	}
}

// encodeAgent emits the movement, arrival and objective clauses of one agent.
func (e *Encoder) encodeAgent(b *Builder, enc *Encoded, a *core.Agent) {
	g, ix := enc.Instance.Grid, enc.Indexer
	horizon := enc.Instance.Horizon
	ws := enc.Windows[a.ID]

	b.AddClause(ix.Arrived(a.ID, horizon))
	b.AddClause(ix.Occ(a.ID, a.Start, 0))
	b.AddClause(ix.Occ(a.ID, a.Goal, horizon))

	for t := 0; t < horizon; t++ {
		next := ws.At(t + 1)
		for _, u := range ws.At(t).Cells() {
			here := ix.Occ(a.ID, u, t)
			succ := []int{-here}
			for _, v := range g.Neighbors(u) {
				flow := ix.Flow(u, v, t)
				if !next.Contains(v) {
					b.AddClause(-here, -flow)
					continue
				}
				there := ix.Occ(a.ID, v, t+1)
				succ = append(succ, there)
				b.AddClause(-here, -flow, there)
				b.AddClause(-here, -there, flow)
			}
			b.AddClause(succ...)
		}
	}

	for t := 0; t < horizon; t++ {
		prev := ws.At(t)
		for _, v := range ws.At(t + 1).Cells() {
			pred := []int{-ix.Occ(a.ID, v, t+1)}
			for _, u := range g.Neighbors(v) {
				if prev.Contains(u) {
					pred = append(pred, ix.Occ(a.ID, u, t))
				}
			}
			b.AddClause(pred...)
		}
	}

	if d, ok := arrivalBound(enc.Oracle.StartToGoal(a.ID)); ok {
		for t := d; t < horizon; t++ {
			atGoal := ix.Occ(a.ID, a.Goal, t)
			now, later := ix.Arrived(a.ID, t), ix.Arrived(a.ID, t+1)
			b.AddClause(-atGoal, -later, now)
			b.AddClause(-now, atGoal)
			b.AddClause(-now, later)
		}
		for t := d; t <= horizon; t++ {
			b.AddSoft(1, ix.Arrived(a.ID, t))
		}
	}

	for t := 0; t <= horizon; t++ {
		w := ws.At(t)
		lits := make([]int, 0, w.Len())
		for _, u := range w.Cells() {
			lits = append(lits, ix.Occ(a.ID, u, t))
		}
		card.ExactlyOne(b, e.opts.ExactlyOne, lits)
	}
}

// arrivalBound rounds a shortest path length up to whole timesteps.
func arrivalBound(d float64) (int, bool) {
	if !algo.IsFinite(d) {
		return 0, false
	}
	return int(math.Ceil(d)), true
}
