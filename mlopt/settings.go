// Package mlopt searches for the maximum likelihood tree, branch
// lengths and model parameters. A Controller alternates model
// parameter optimization, SPR topology search and branch length
// optimization until the log-likelihood stops changing.
package mlopt

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/jati/smodel"
)

var log = logging.MustGetLogger("mlopt")

var (
	// ErrConfiguration is returned for invalid settings, trees or
	// parameters. No optimization is attempted.
	ErrConfiguration = smodel.ErrConfiguration
	// ErrNumericalInstability is returned when the log-likelihood
	// becomes non-finite.
	ErrNumericalInstability = errors.New("numerical instability")
	// ErrTopologyInvariant is returned when a rearrangement produces
	// a malformed tree.
	ErrTopologyInvariant = errors.New("topology invariant violation")
)

// Model optimization methods.
const (
	MethodLBFGSB  = "lbfgsb"
	MethodSimplex = "simplex"
	MethodBFGS    = "bfgs"
	MethodNone    = "none"
)

// Methods lists the accepted optimization methods.
var Methods = []string{MethodLBFGSB, MethodSimplex, MethodBFGS, MethodNone}

// Settings controls the optimization.
type Settings struct {
	// Method is the model parameter optimizer.
	Method string
	// ModelIterations limits the model parameter optimizer.
	ModelIterations int
	// EstimateFreqs enables optimization of the stationary
	// frequencies.
	EstimateFreqs bool

	// Epsilon is the convergence threshold for the log-likelihood
	// change between iterations.
	Epsilon float64
	// MaxIterations is the maximum number of full iterations.
	MaxIterations int
	// MoveTolerance is the minimal improvement for an SPR move to be
	// applied, candidates within it of the best score are tied.
	MoveTolerance float64

	// BranchTolerance stops branch length sweeps when no length
	// changes more.
	BranchTolerance float64
	MaxBranchSweeps int
	MinBranchLength float64
	MaxBranchLength float64

	// Workers is the number of goroutines scoring SPR candidates.
	Workers int
	// Randomize draws starting branch lengths and model parameters
	// at random.
	Randomize bool
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		Method:          MethodLBFGSB,
		ModelIterations: 10000,
		Epsilon:         1e-5,
		MaxIterations:   5,
		MoveTolerance:   1e-3,
		BranchTolerance: 1e-4,
		MaxBranchSweeps: 10,
		MinBranchLength: 1e-6,
		MaxBranchLength: 10,
		Workers:         runtime.GOMAXPROCS(0),
	}
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	known := false
	for _, m := range Methods {
		if s.Method == m {
			known = true
		}
	}
	switch {
	case !known:
		return fmt.Errorf("%w: unknown optimization method %q", ErrConfiguration, s.Method)
	case !(s.Epsilon > 0) || math.IsInf(s.Epsilon, 0):
		return fmt.Errorf("%w: epsilon must be positive, got %v", ErrConfiguration, s.Epsilon)
	case s.MaxIterations < 1:
		return fmt.Errorf("%w: maximum iterations must be positive, got %d", ErrConfiguration, s.MaxIterations)
	case !(s.MoveTolerance >= 0):
		return fmt.Errorf("%w: negative move tolerance %v", ErrConfiguration, s.MoveTolerance)
	case !(s.BranchTolerance > 0):
		return fmt.Errorf("%w: branch length tolerance must be positive, got %v", ErrConfiguration, s.BranchTolerance)
	case s.MaxBranchSweeps < 1:
		return fmt.Errorf("%w: branch length sweeps must be positive, got %d", ErrConfiguration, s.MaxBranchSweeps)
	case !(s.MinBranchLength > 0 && s.MinBranchLength < s.MaxBranchLength) || math.IsInf(s.MaxBranchLength, 0):
		return fmt.Errorf("%w: invalid branch length bounds [%v, %v]",
			ErrConfiguration, s.MinBranchLength, s.MaxBranchLength)
	case s.ModelIterations < 1:
		return fmt.Errorf("%w: model iterations must be positive, got %d", ErrConfiguration, s.ModelIterations)
	}
	return nil
}

func (s *Settings) workers() int {
	if s.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return s.Workers
}

func (s *Settings) clampLength(l float64) float64 {
	if !(l >= s.MinBranchLength) {
		return s.MinBranchLength
	}
	if l > s.MaxBranchLength {
		return s.MaxBranchLength
	}
	return l
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
