package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/Davydov/jati/mlopt"
	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tlh"
)

// Frequency optimization modes.
const (
	freqFixed     = "fixed"
	freqEmpirical = "empirical"
	freqEstimated = "estimated"
)

// Config is the run configuration built from the command line.
type Config struct {
	Timestamp time.Time
	RunName   string
	RunID     string

	OutFolder string
	OutTree   string
	StartTree string
	OutLogL   string
	OutLog    string
	OutJSON   string
	OutPlot   string

	SeqFile  string
	TreeFile string
	AAMatrix string

	Model   smodel.ModelID
	Params  []float64
	Freqs   []float64
	FreqOpt string
	NCat    int
	Alpha   float64
	Gap     tlh.GapMode
	Lambda  float64
	Mu      float64

	Seed     int64
	Settings *mlopt.Settings

	Checkpoint string
}

// newConfig creates the configuration from the parsed flags. The
// output folder is not created.
func newConfig(now time.Time) (*Config, error) {
	cfg := &Config{
		Timestamp: now,
		RunName:   *runName,
		SeqFile:   *seqFileName,
		TreeFile:  *treeFileName,
		AAMatrix:  *aaMatrixFileName,
		Params:    *params,
		Freqs:     *freqs,
		FreqOpt:   *freqOpt,
		NCat:      *ncatg,
		Alpha:     *alpha,
		Lambda:    *lambda,
		Mu:        *mu,
		Seed:      *seed,
	}

	var err error
	if cfg.Model, err = smodel.Lookup(*modelName); err != nil {
		return nil, err
	}
	if cfg.Gap, err = tlh.ParseGapMode(*gapHandling); err != nil {
		return nil, err
	}
	if len(cfg.Freqs) > 0 && cfg.FreqOpt != freqFixed {
		log.Warningf("Frequencies given with %s frequencies, using them as a starting point only", cfg.FreqOpt)
	}

	s := mlopt.DefaultSettings()
	s.Method = *method
	s.ModelIterations = *iterations
	s.EstimateFreqs = cfg.FreqOpt == freqEstimated
	s.Epsilon = *epsilon
	s.MaxIterations = *maxIterations
	s.MoveTolerance = *moveTol
	s.BranchTolerance = *brlenTol
	s.MaxBranchLength = *maxBrLen
	s.Randomize = *randomize
	if *nThreads > 0 {
		s.Workers = *nThreads
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg.Settings = s

	cfg.RunID = fmt.Sprint(now.Unix())
	if cfg.RunName != "" {
		cfg.RunID = cfg.RunName + "_" + cfg.RunID
	}
	cfg.OutFolder = filepath.Join(*outFolder, cfg.RunID+"_out")
	out := func(suffix string) string {
		return filepath.Join(cfg.OutFolder, cfg.RunID+suffix)
	}
	cfg.OutTree = out("_tree.newick")
	cfg.StartTree = out("_start_tree.newick")
	cfg.OutLogL = out("_logl.out")
	cfg.OutLog = out(".log")
	if *jsonOut {
		cfg.OutJSON = out(".json")
	}
	if *plotOut {
		cfg.OutPlot = out("_trace.png")
	}
	cfg.Checkpoint = *checkpointDB
	return cfg, nil
}

// createOutFolder creates the output folder.
func (cfg *Config) createOutFolder() error {
	return os.MkdirAll(cfg.OutFolder, 0755)
}

// checkpointKey identifies the run in the checkpoint database. The
// seed is not a part of it: a resumed run takes its state from the
// checkpoint.
func (cfg *Config) checkpointKey() []byte {
	return []byte(strings.Join([]string{
		filepath.Base(cfg.SeqFile),
		cfg.Model.String(),
		cfg.Gap.String(),
		cfg.RunName,
	}, "|"))
}

func (cfg *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run start time: %s\n", cfg.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Run ID: %s\n", cfg.RunID)
	fmt.Fprintf(&b, "Input sequence file: %s\n", cfg.SeqFile)
	if cfg.TreeFile != "" {
		fmt.Fprintf(&b, "Input tree file: %s\n", cfg.TreeFile)
	} else {
		b.WriteString("No input tree file provided.\n")
	}
	fmt.Fprintf(&b, "Output folder: %s\n", cfg.OutFolder)

	over := "Substitution"
	if cfg.Gap == tlh.PIP {
		over = "PIP"
	}
	fmt.Fprintf(&b, "Model setup: %s model with %s Q\n", over, cfg.Model)
	fmt.Fprintf(&b, "Model parameters: %v\n", cfg.Params)
	fmt.Fprintf(&b, "Model frequencies: %v\n", cfg.Freqs)
	if cfg.NCat > 1 {
		fmt.Fprintf(&b, "Gamma rate categories: %d, alpha=%v\n", cfg.NCat, cfg.Alpha)
	}

	s := cfg.Settings
	fmt.Fprintf(&b, "Optimisation setup: frequencies: %s, method: %s, max iterations: %d, epsilon: %g, move tolerance: %g",
		cfg.FreqOpt, s.Method, s.MaxIterations, s.Epsilon, s.MoveTolerance)
	return b.String()
}
