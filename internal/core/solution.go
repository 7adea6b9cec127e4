package core

// Path lists an agent's cell at every timestep, index = time.
type Path []Cell

// At returns the cell at time t; agents rest at their final cell.
func (p Path) At(t int) Cell {
	if len(p) == 0 {
		return Cell{}
	}
	if t >= len(p) {
		return p[len(p)-1]
	}
	if t < 0 {
		return p[0]
	}
	return p[t]
}

// SettleTime is the earliest t from which the path stays on its last cell.
func (p Path) SettleTime() int {
	if len(p) == 0 {
		return 0
	}
	last := p[len(p)-1]
	t := len(p) - 1
	for t > 0 && p[t-1] == last {
		t--
	}
	return t
}

// Status classifies the outcome of a solve.
type Status int

const (
	StatusUnknown       Status = iota // no answer (timeout or interrupted)
	StatusFeasible                    // valid plan, optimality not proven
	StatusOptimal                     // valid plan with proven minimal cost
	StatusUnsatisfiable               // no plan within the horizon
)

func (s Status) String() string {
	return [...]string{"UNKNOWN", "FEASIBLE", "OPTIMAL", "UNSATISFIABLE"}[s]
}

// Solution is a plan for every agent of an instance.
type Solution struct {
	Paths      map[AgentID]Path
	Arrival    map[AgentID]int // settle time at goal
	Horizon    int
	Cost       int // objective reported by the solver
	Status     Status
	Makespan   int
	SumOfCosts int
	Feasible   bool
}

// NewSolution creates an empty solution.
func NewSolution(horizon int) *Solution {
	return &Solution{
		Paths:   make(map[AgentID]Path),
		Arrival: make(map[AgentID]int),
		Horizon: horizon,
	}
}

// ComputeMakespan fills Arrival, Makespan and SumOfCosts from the paths.
func (s *Solution) ComputeMakespan() int {
	s.Makespan, s.SumOfCosts = 0, 0
	for id, p := range s.Paths {
		at := p.SettleTime()
		s.Arrival[id] = at
		s.SumOfCosts += at
		if at > s.Makespan {
			s.Makespan = at
		}
	}
	return s.Makespan
}
