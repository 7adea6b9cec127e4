// Package planner solves MAPF instances end to end through the MaxSAT
// reduction: encode, solve, decode and verify.
package planner

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/elektrokombinacija/mapf-sat/internal/algo"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
	"github.com/elektrokombinacija/mapf-sat/internal/encoding"
	"github.com/elektrokombinacija/mapf-sat/internal/metrics"
	"github.com/elektrokombinacija/mapf-sat/internal/satsolver"
)

// Config configures a SAT planner.
type Config struct {
	Backend string // satsolver backend name; empty means the default
	Encoder encoding.Options

	// Auto searches for the smallest feasible horizon even when the
	// instance has one. Instances with core.AutoHorizon are always searched.
	Auto bool
	// MaxHorizon caps the automatic search. 0 means the makespan of a
	// prioritized plan, or twice the number of cells when there is none.
	MaxHorizon int

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// SAT is an optimal planner: for a fixed horizon it minimizes the sum of
// arrival delays; in automatic mode it first minimizes the makespan.
type SAT struct {
	cfg     Config
	backend satsolver.Backend
	encoder *encoding.Encoder
	log     logrus.FieldLogger
}

var _ algo.Solver = (*SAT)(nil)

// New creates a planner.
func New(cfg Config) (*SAT, error) {
	backend, err := satsolver.New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts := cfg.Encoder
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &SAT{
		cfg:     cfg,
		backend: backend,
		encoder: encoding.NewEncoder(opts),
		log:     log.WithField("backend", backend.Name()),
	}, nil
}

func (p *SAT) Name() string { return "SAT(" + p.backend.Name() + ")" }

// Solve plans inst. An instance without a plan yields a solution with
// StatusUnsatisfiable and no paths, not an error.
func (p *SAT) Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error) {
	if p.cfg.Auto || inst.Horizon == core.AutoHorizon {
		return p.solveAuto(ctx, inst)
	}
	sol, _, err := p.SolveHorizon(ctx, inst, inst.Horizon)
	return sol, err
}

// SolveHorizon plans inst with a fixed horizon and also returns the
// encoding, for callers that want the formula statistics.
func (p *SAT) SolveHorizon(ctx context.Context, inst *core.Instance, horizon int) (*core.Solution, *encoding.Encoded, error) {
	inst = inst.WithHorizon(horizon)
	enc, err := p.encoder.Encode(inst)
	if err != nil {
		return nil, nil, err
	}
	s := enc.Formula.Stats()
	p.cfg.Metrics.ObserveEncode(enc.Duration, horizon, s.CoreVars, s.AuxVars, s.Hard, s.Soft)

	res, err := p.backend.Solve(ctx, enc.Formula)
	if res != nil {
		p.cfg.Metrics.ObserveSolve(p.backend.Name(), res.Status.String(), res.Elapsed)
	}
	if err != nil {
		return nil, enc, errors.Wrapf(err, "%s at horizon %d", p.backend.Name(), horizon)
	}
	log := p.log.WithFields(logrus.Fields{
		"horizon": horizon,
		"status":  res.Status,
		"elapsed": res.Elapsed,
	})

	switch res.Status {
	case satsolver.Unsatisfiable:
		log.Debug("no plan within horizon")
		sol := core.NewSolution(horizon)
		sol.Status = core.StatusUnsatisfiable
		return sol, enc, nil
	case satsolver.Optimal, satsolver.Satisfiable:
	default:
		return nil, enc, errors.Wrapf(satsolver.ErrIncomplete, "%s at horizon %d", p.backend.Name(), horizon)
	}

	sol, err := enc.Decode(res.Model, res.Cost)
	if err != nil {
		return nil, enc, errors.Wrap(err, "decode model")
	}
	if err := algo.VerifySolution(inst, sol); err != nil {
		return nil, enc, errors.Wrap(err, "decoded plan is invalid")
	}
	sol.Cost = enc.Objective(sol)
	sol.Status = core.StatusFeasible
	if res.Status == satsolver.Optimal {
		sol.Status = core.StatusOptimal
	}
	log.WithFields(logrus.Fields{
		"cost":     sol.Cost,
		"makespan": sol.Makespan,
	}).Debug("found plan")
	return sol, enc, nil
}

// solveAuto tries horizons from the largest shortest-path distance upwards.
// The first satisfiable horizon is the minimum makespan.
func (p *SAT) solveAuto(ctx context.Context, inst *core.Instance) (*core.Solution, error) {
	if err := inst.ValidateLayout(); err != nil {
		return nil, err
	}
	lower, upper, ok, err := p.horizonBounds(ctx, inst)
	if err != nil {
		return nil, err
	}
	if !ok {
		p.log.Info("some agent can never reach its goal")
		sol := core.NewSolution(0)
		sol.Status = core.StatusUnsatisfiable
		return sol, nil
	}
	p.log.WithFields(logrus.Fields{"lower": lower, "upper": upper}).Debug("searching horizon")

	var last *core.Solution
	for h := lower; h <= upper; h++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sol, _, err := p.SolveHorizon(ctx, inst, h)
		if err != nil {
			return nil, err
		}
		if sol.Status != core.StatusUnsatisfiable {
			return sol, nil
		}
		last = sol
	}
	if last == nil {
		last = core.NewSolution(upper)
		last.Status = core.StatusUnsatisfiable
	}
	return last, nil
}

// horizonBounds returns the search range. ok is false when some goal is
// unreachable regardless of time.
func (p *SAT) horizonBounds(ctx context.Context, inst *core.Instance) (lower, upper int, ok bool, err error) {
	oracle := algo.NewOracle(inst, p.cfg.Encoder.EdgeCost, p.cfg.Encoder.Parallelism)
	for _, a := range inst.Agents {
		d := oracle.StartToGoal(a.ID)
		if !algo.IsFinite(d) {
			return 0, 0, false, nil
		}
		if c := int(math.Ceil(d)); c > lower {
			lower = c
		}
	}

	upper = p.cfg.MaxHorizon
	if upper <= 0 {
		upper = 2 * inst.Grid.Size()
		ref, err := algo.NewPrioritized(0).Solve(ctx, inst)
		if err != nil {
			return 0, 0, false, err
		}
		if ref != nil && ref.Makespan < upper {
			upper = ref.Makespan
		}
	}
	if upper < lower {
		upper = lower
	}
	return lower, upper, true, nil
}
