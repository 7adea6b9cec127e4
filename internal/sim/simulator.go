// Package sim replays plans step by step on the grid, counting moves and
// waits and reporting every rule a plan breaks.
package sim

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/elektrokombinacija/mapf-sat/internal/algo"
	"github.com/elektrokombinacija/mapf-sat/internal/core"
)

// SimulationConfig configures a simulation.
type SimulationConfig struct {
	Instance *core.Instance
	// Solver plans the instance when Run is called without a loaded plan.
	Solver algo.Solver
	Logger logrus.FieldLogger
}

// ViolationKind names a movement rule.
type ViolationKind string

const (
	VertexViolation   ViolationKind = "vertex"    // two agents on one cell
	SwapViolation     ViolationKind = "swap"      // two agents exchange cells
	FollowViolation   ViolationKind = "following" // entering a cell that was occupied
	MoveViolation     ViolationKind = "move"      // jump or step onto an obstacle
	EndpointViolation ViolationKind = "endpoint"  // wrong start or final cell
)

// Violation is one broken rule at timestep T. For moves T is the
// departure time.
type Violation struct {
	Kind   ViolationKind  `json:"kind"`
	T      int            `json:"t"`
	Agents []core.AgentID `json:"agents"`
	Cell   core.Cell      `json:"cell"`
}

// Step is the state of the grid after moving to timestep T.
type Step struct {
	T         int         `json:"t"`
	Positions []core.Cell `json:"positions"` // by agent id
	Moves     int         `json:"moves"`
	Waits     int         `json:"waits"`
	Settled   int         `json:"settled"` // agents on their goal for good
}

// SimulationMetrics summarises a replay.
type SimulationMetrics struct {
	PlanningTimeMs float64 `json:"planning_time_ms"`
	Solver         string  `json:"solver,omitempty"`
	Status         string  `json:"status"`

	Horizon    int `json:"horizon"`
	Makespan   int `json:"makespan"`
	SumOfCosts int `json:"sum_of_costs"`
	Cost       int `json:"cost"`

	Moves      int `json:"moves"`
	Waits      int `json:"waits"`
	Violations int `json:"violations"`
}

// Simulator replays one plan. Safe for concurrent readers while stepping.
type Simulator struct {
	mu sync.Mutex

	config  SimulationConfig
	log     logrus.FieldLogger
	agents  []core.AgentID
	settle  map[core.AgentID]int
	current int

	solution   *core.Solution
	steps      []Step
	violations []Violation
	metrics    SimulationMetrics
}

// NewSimulator creates a simulator for config.Instance.
func NewSimulator(config SimulationConfig) *Simulator {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Simulator{config: config, log: log}
	for _, a := range config.Instance.Agents {
		s.agents = append(s.agents, a.ID)
	}
	sort.Slice(s.agents, func(i, j int) bool { return s.agents[i] < s.agents[j] })
	return s
}

// Load sets the plan to replay and records timestep 0.
func (s *Simulator) Load(sol *core.Solution) error {
	if sol == nil || !sol.Feasible {
		return errors.New("no feasible plan to replay")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.solution = sol
	s.current = 0
	s.steps = nil
	s.violations = nil
	s.settle = make(map[core.AgentID]int, len(s.agents))
	s.metrics.Status = sol.Status.String()
	s.metrics.Horizon = sol.Horizon
	s.metrics.Makespan = sol.Makespan
	s.metrics.SumOfCosts = sol.SumOfCosts
	s.metrics.Cost = sol.Cost
	s.metrics.Moves, s.metrics.Waits = 0, 0

	for _, id := range s.agents {
		s.settle[id] = sol.Paths[id].SettleTime()
		a := s.config.Instance.AgentByID(id)
		p := sol.Paths[id]
		if len(p) == 0 || p[0] != a.Start {
			s.violate(EndpointViolation, 0, p.At(0), id)
		}
		if p.At(sol.Horizon) != a.Goal {
			s.violate(EndpointViolation, sol.Horizon, p.At(sol.Horizon), id)
		}
	}
	s.record(Step{T: 0})
	return nil
}

// Run plans the instance with the configured solver unless a plan is
// loaded, then replays it to the end.
func (s *Simulator) Run(ctx context.Context) (*SimulationMetrics, error) {
	if s.solution == nil {
		if err := s.plan(ctx); err != nil {
			return nil, err
		}
	}
	for s.Step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	m := s.Metrics()
	return &m, nil
}

func (s *Simulator) plan(ctx context.Context) error {
	if s.config.Solver == nil {
		return errors.New("no plan loaded and no solver configured")
	}
	start := time.Now()
	sol, err := s.config.Solver.Solve(ctx, s.config.Instance)
	elapsed := time.Since(start)
	if err != nil {
		return errors.Wrapf(err, "planning with %s", s.config.Solver.Name())
	}
	if err := s.Load(sol); err != nil {
		return errors.Wrapf(err, "planning with %s", s.config.Solver.Name())
	}
	s.mu.Lock()
	s.metrics.Solver = s.config.Solver.Name()
	s.metrics.PlanningTimeMs = float64(elapsed.Microseconds()) / 1000
	s.mu.Unlock()
	return nil
}

// Step advances the replay by one timestep. Returns false once the horizon
// has been reached.
func (s *Simulator) Step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solution == nil || s.current >= s.solution.Horizon {
		return false
	}
	t := s.current
	g := s.config.Instance.Grid
	paths := s.solution.Paths
	st := Step{T: t + 1}

	for _, id := range s.agents {
		from, to := paths[id].At(t), paths[id].At(t+1)
		if from == to {
			st.Waits++
		} else {
			st.Moves++
		}
		if !g.Adjacent(from, to) {
			s.violate(MoveViolation, t, to, id)
		}
	}

	for i, a := range s.agents {
		pa := paths[a]
		for _, b := range s.agents[i+1:] {
			pb := paths[b]
			if pa.At(t+1) == pb.At(t+1) {
				s.violate(VertexViolation, t+1, pa.At(t+1), a, b)
			}
			if pa.At(t) != pa.At(t+1) && pa.At(t) == pb.At(t+1) && pa.At(t+1) == pb.At(t) {
				s.violate(SwapViolation, t, pa.At(t), a, b)
			}
		}
		for _, b := range s.agents {
			if a == b {
				continue
			}
			to := pa.At(t + 1)
			swap := paths[b].At(t+1) == pa.At(t)
			if pa.At(t) != to && paths[b].At(t) == to && !swap {
				s.violate(FollowViolation, t, to, a, b)
			}
		}
	}

	s.current++
	s.metrics.Moves += st.Moves
	s.metrics.Waits += st.Waits
	s.record(st)

	s.log.WithFields(logrus.Fields{
		"t":       st.T,
		"moves":   st.Moves,
		"waits":   st.Waits,
		"settled": st.Settled,
	}).Debug("replayed step")
	return true
}

// record fills positions and settled count of st, which is s.current.
func (s *Simulator) record(st Step) {
	st.Positions = make([]core.Cell, len(s.agents))
	for i, id := range s.agents {
		st.Positions[i] = s.solution.Paths[id].At(st.T)
		if s.settle[id] <= st.T {
			st.Settled++
		}
	}
	s.steps = append(s.steps, st)
}

func (s *Simulator) violate(kind ViolationKind, t int, c core.Cell, agents ...core.AgentID) {
	s.violations = append(s.violations, Violation{Kind: kind, T: t, Agents: agents, Cell: c})
	s.metrics.Violations++
	s.log.WithFields(logrus.Fields{
		"kind":   kind,
		"t":      t,
		"cell":   c.String(),
		"agents": agents,
	}).Warn("plan breaks a movement rule")
}

// Metrics returns the current summary.
func (s *Simulator) Metrics() SimulationMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Steps returns the steps replayed so far, timestep 0 first.
func (s *Simulator) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.steps...)
}

// Violations returns the rules broken so far.
func (s *Simulator) Violations() []Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Violation(nil), s.violations...)
}

// SimulationResult is the exported form of a replay.
type SimulationResult struct {
	Instance   string            `json:"instance"`
	Metrics    SimulationMetrics `json:"metrics"`
	Steps      []Step            `json:"steps"`
	Violations []Violation       `json:"violations"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
}

// Result snapshots the replay.
func (s *Simulator) Result() *SimulationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SimulationResult{
		Instance:   s.config.Instance.Name,
		Metrics:    s.metrics,
		Steps:      append([]Step(nil), s.steps...),
		Violations: append([]Violation{}, s.violations...),
		Success:    s.solution != nil && len(s.violations) == 0,
	}
}

// Export writes the replay as indented JSON.
func (s *Simulator) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(s.Result()), "encode replay")
}

// ExportMetrics writes the summary to a JSON file.
func (s *Simulator) ExportMetrics(path string) error {
	data, err := json.MarshalIndent(s.Metrics(), "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write %s", path)
}

// Replay runs a full replay of sol.
func Replay(ctx context.Context, inst *core.Instance, sol *core.Solution, log logrus.FieldLogger) (*SimulationResult, error) {
	s := NewSimulator(SimulationConfig{Instance: inst, Logger: log})
	if err := s.Load(sol); err != nil {
		return nil, err
	}
	if _, err := s.Run(ctx); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// RunSimulation plans and replays config.Instance. The result is returned
// even when planning fails.
func RunSimulation(ctx context.Context, config SimulationConfig) (*SimulationResult, error) {
	s := NewSimulator(config)
	_, err := s.Run(ctx)
	result := s.Result()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
	}
	return result, err
}
