package mlopt

import (
	"fmt"

	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

// Phase is a state of the optimization loop.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseModel
	PhaseTopology
	PhaseBranch
	PhaseCheck
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseModel:
		return "MODEL_OPT"
	case PhaseTopology:
		return "TOPOLOGY_OPT"
	case PhaseBranch:
		return "BRANCH_OPT"
	case PhaseCheck:
		return "CHECK_CONVERGENCE"
	case PhaseTerminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is the current solution. It is replaced as a whole after
// every successful phase.
type State struct {
	Tree   *tree.Tree
	Params tlh.Params
	LnL    float64
	// Iter is the number of completed iterations.
	Iter int
	// Delta is the log-likelihood change of the last iteration.
	Delta float64
}

// Copy returns an independent copy of the state.
func (s *State) Copy() *State {
	return &State{
		Tree:   s.Tree.Copy(),
		Params: s.Params.Copy(),
		LnL:    s.LnL,
		Iter:   s.Iter,
		Delta:  s.Delta,
	}
}

// IterationRecord summarizes a completed iteration.
type IterationRecord struct {
	Iteration  int                `json:"iteration"`
	LnL        float64            `json:"lnL"`
	Delta      float64            `json:"delta"`
	Parameters map[string]float64 `json:"parameters"`
	Move       *SPRMove           `json:"move,omitempty"`
	Tree       string             `json:"tree"`
}

// Result is the outcome of the optimization. If it was aborted,
// State is the last valid state.
type Result struct {
	State     *State
	StartLnL  float64
	Trace     []IterationRecord
	Converged bool
	// Phase is TERMINATED or the phase which failed.
	Phase Phase
}
