package core

import (
	"fmt"
	"strings"

	"github.com/mitchellh/hashstructure"
	"github.com/pkg/errors"
)

// ErrInvalidInstance is the cause of every validation failure.
var ErrInvalidInstance = errors.New("invalid instance")

// AutoHorizon marks an instance whose horizon is chosen by the planner.
const AutoHorizon = -1

// AgentID is the 0-based position of an agent in Instance.Agents.
type AgentID int

// Agent travels from Start to Goal.
type Agent struct {
	ID    AgentID
	Start Cell
	Goal  Cell
}

// Instance is a MAPF problem: I = (G, A, T).
type Instance struct {
	Name    string
	Grid    *Grid
	Agents  []*Agent
	Horizon int // maxTime; timesteps are 0..Horizon
}

// NewInstance creates an instance over an empty width x height grid.
func NewInstance(width, height, horizon int) *Instance {
	return &Instance{
		Grid:    NewGrid(width, height),
		Horizon: horizon,
	}
}

// AddAgent appends an agent and returns it. IDs follow insertion order.
func (inst *Instance) AddAgent(start, goal Cell) *Agent {
	a := &Agent{ID: AgentID(len(inst.Agents)), Start: start, Goal: goal}
	inst.Agents = append(inst.Agents, a)
	return a
}

// WithHorizon returns a shallow copy with a different horizon.
func (inst *Instance) WithHorizon(h int) *Instance {
	cp := *inst
	cp.Horizon = h
	return &cp
}

// InvalidInstanceError lists every problem found by validation.
type InvalidInstanceError struct {
	Problems []string
}

func (e InvalidInstanceError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidInstance, strings.Join(e.Problems, "; "))
}

// Is makes errors.Is(err, ErrInvalidInstance) hold.
func (e InvalidInstanceError) Is(target error) bool {
	return target == ErrInvalidInstance
}

// Validate checks the instance can be encoded, horizon included.
func (inst *Instance) Validate() error {
	problems := inst.layoutProblems()
	if inst.Horizon < 0 {
		problems = append(problems, fmt.Sprintf("horizon %d is negative", inst.Horizon))
	}
	if len(problems) > 0 {
		return InvalidInstanceError{Problems: problems}
	}
	return nil
}

// ValidateLayout checks grid and agents, ignoring the horizon.
func (inst *Instance) ValidateLayout() error {
	if problems := inst.layoutProblems(); len(problems) > 0 {
		return InvalidInstanceError{Problems: problems}
	}
	return nil
}

func (inst *Instance) layoutProblems() []string {
	var problems []string
	if inst.Grid == nil {
		return []string{"missing grid"}
	}
	g := inst.Grid
	if g.Width <= 0 || g.Height <= 0 {
		problems = append(problems, fmt.Sprintf("grid dimensions %dx%d must be positive", g.Width, g.Height))
		return problems
	}

	starts := make(map[Cell]AgentID)
	goals := make(map[Cell]AgentID)
	for i, a := range inst.Agents {
		if a.ID != AgentID(i) {
			problems = append(problems, fmt.Sprintf("agent at position %d has id %d", i, a.ID))
		}
		check := func(what string, c Cell) {
			switch {
			case !g.InBounds(c):
				problems = append(problems, fmt.Sprintf("agent %d %s %v out of bounds", i, what, c))
			case g.Blocked(c):
				problems = append(problems, fmt.Sprintf("agent %d %s %v is blocked", i, what, c))
			}
		}
		check("start", a.Start)
		check("goal", a.Goal)

		if other, ok := starts[a.Start]; ok {
			problems = append(problems, fmt.Sprintf("agents %d and %d share start %v", other, i, a.Start))
		} else {
			starts[a.Start] = AgentID(i)
		}
		if other, ok := goals[a.Goal]; ok {
			problems = append(problems, fmt.Sprintf("agents %d and %d share goal %v", other, i, a.Goal))
		} else {
			goals[a.Goal] = AgentID(i)
		}
	}
	return problems
}

// AgentByID finds agent by ID.
func (inst *Instance) AgentByID(id AgentID) *Agent {
	if id < 0 || int(id) >= len(inst.Agents) {
		return nil
	}
	return inst.Agents[id]
}

// Fingerprint is a stable hash of the instance contents, name excluded.
func (inst *Instance) Fingerprint() (uint64, error) {
	type agentKey struct {
		Start, Goal Cell
	}
	key := struct {
		Width, Height int
		Obstacles     []Cell
		Agents        []agentKey
		Horizon       int
	}{
		Horizon: inst.Horizon,
	}
	if inst.Grid != nil {
		key.Width, key.Height = inst.Grid.Width, inst.Grid.Height
		key.Obstacles = inst.Grid.Obstacles()
	}
	for _, a := range inst.Agents {
		key.Agents = append(key.Agents, agentKey{Start: a.Start, Goal: a.Goal})
	}
	h, err := hashstructure.Hash(key, nil)
	if err != nil {
		return 0, errors.Wrap(err, "fingerprint")
	}
	return h, nil
}
