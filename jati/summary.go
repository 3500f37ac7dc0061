package main

import "bitbucket.org/Davydov/jati/mlopt"

// CallSummary stores information about the program call.
type CallSummary struct {
	// Version stores jati version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of workers used.
	NThreads int `json:"nThreads"`
	// RunID identifies the run outputs.
	RunID string `json:"runID"`
	// TotalTime is the computations time in seconds.
	TotalTime float64 `json:"time"`
	// Optimization is the optimization result.
	Optimization *OptimizationSummary `json:"optimization,omitempty"`
}

// OptimizationSummary is storing jati run summary information.
type OptimizationSummary struct {
	// StartingTree is the starting tree after unrooting.
	StartingTree string `json:"startingTree"`
	// FinalTree is the maximum likelihood tree.
	FinalTree string `json:"finalTree"`
	StartLnL  float64 `json:"startLnL"`
	MaxLnL    float64 `json:"maxLnL"`
	// MaxLParameters is the maximum likelihood parameter values.
	MaxLParameters map[string]float64 `json:"maxLParameters"`
	Iterations     int                `json:"iterations"`
	Converged      bool               `json:"converged"`
	// Phase is TERMINATED or the phase which failed.
	Phase string `json:"phase"`
	// Error is set if the optimization was aborted.
	Error string                  `json:"error,omitempty"`
	Trace []mlopt.IterationRecord `json:"trace"`
	// Time is the optimization time in seconds.
	Time float64 `json:"optimizationTime"`
}

// newOptimizationSummary summarizes an optimization result.
func newOptimizationSummary(start string, res *mlopt.Result, runErr error) *OptimizationSummary {
	st := res.State
	s := &OptimizationSummary{
		StartingTree:   start,
		FinalTree:      st.Tree.Newick(-1),
		StartLnL:       res.StartLnL,
		MaxLnL:         st.LnL,
		MaxLParameters: st.Params.Named(),
		Iterations:     st.Iter,
		Converged:      res.Converged,
		Phase:          res.Phase.String(),
		Trace:          res.Trace,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}
