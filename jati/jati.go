/*

Jati reconstructs maximum likelihood phylogenetic trees. It alternates
substitution model parameter optimization, SPR topology search and
branch length optimization until the log-likelihood converges. Gaps
are handled with the Poisson Indel Process or treated as missing data.

The basic usage of jati looks like this:

	jati -s alignment.fasta -m HKY

, this will build a neighbor-joining starting tree and optimize it
under HKY with PIP gap handling. A starting tree, gamma rate
variation and gap handling can be set:

	jati -s alignment.fasta -t tree.nwk -m GTR --ncatg 4 -g missing

The outputs are written to <out-folder>/<run_id>_out/. To see all the
options run:

	jati -h

*/
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"runtime/pprof"
	"sort"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/jati/checkpoint"
	"bitbucket.org/Davydov/jati/mlopt"
	"bitbucket.org/Davydov/jati/tlh"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("jati")
var formatter = logging.MustStringFormatter(`%{time:15:04:05} %{level:.4s} %{message}`)

// command-line options
var (
	app = kingpin.New("jati", "maximum likelihood phylogenetic tree reconstruction").Version(version)

	// input and output
	seqFileName      = app.Flag("seq-file", "sequence file in fasta format").Short('s').Required().ExistingFile()
	treeFileName     = app.Flag("tree-file", "tree file in newick format (neighbor-joining tree by default)").Short('t').ExistingFile()
	outFolder        = app.Flag("out-folder", "output folder").Short('d').Default(".").String()
	runName          = app.Flag("run-name", "run identifier for output").Short('r').String()
	jsonOut          = app.Flag("json", "write a json summary").Bool()
	plotOut          = app.Flag("plot", "plot the log-likelihood trace").Bool()
	checkpointDB     = app.Flag("checkpoint", "checkpoint database, resume if a run with the same sequence file, model, gap handling and run name is found").String()
	checkpointSec    = app.Flag("checkpoint-seconds", "minimal time between checkpoint saves").Default("0").Float64()
	restart          = app.Flag("restart", "remove the checkpoint of this run and start anew").Bool()
	aaMatrixFileName = app.Flag("aa-matrix", "exchangeabilities in PAML format (required for HIVB and BLOSUM)").ExistingFile()

	// model
	modelName   = app.Flag("model", "sequence evolution model (JC69, K80, HKY, TN93, GTR, WAG, HIVB, BLOSUM)").Short('m').Required().String()
	params      = app.Flag("params", "model parameters, e.g. r_tc r_ta r_tg r_ca r_cg r_ag for GTR (in this order)").Short('p').Float64List()
	freqs       = app.Flag("freqs", "stationary frequencies, pi_t pi_c pi_a pi_g for DNA (in this order)").Short('f').Float64List()
	freqOpt     = app.Flag("freq-opt", "frequency optimisation").Short('o').Default(freqEmpirical).Enum(freqFixed, freqEmpirical, freqEstimated)
	gapHandling = app.Flag("gap-handling", "gap handling: PIP model or gaps as missing data").Short('g').Default("pip").Enum("pip", "missing", "PIP", "Missing")
	ncatg       = app.Flag("ncatg", "number of discrete gamma rate categories (no variation by default)").Default("1").Int()
	alpha       = app.Flag("alpha", "starting gamma shape").Default("1").Float64()
	lambda      = app.Flag("lambda", "starting PIP insertion rate (by default matches the alignment length)").Default("0").Float64()
	mu          = app.Flag("mu", "starting PIP deletion rate").Default(fmt.Sprint(defaultMu)).Float64()

	// optimization
	epsilon       = app.Flag("epsilon", "log-likelihood convergence threshold").Short('e').Default("1e-5").Float64()
	maxIterations = app.Flag("max-iterations", "max iterations for the optimisation").Short('x').Default("5").Int()
	method        = app.Flag("method", "model parameter optimization method "+
		"(lbfgsb: limited-memory Broyden–Fletcher–Goldfarb–Shanno with bounding constraints, "+
		"simplex: downhill simplex, bfgs: gonum BFGS, none: no optimization)").
		Default(mlopt.MethodLBFGSB).Enum(mlopt.Methods...)
	iterations = app.Flag("iter", "maximum number of model optimizer iterations").Default("10000").Int()
	moveTol    = app.Flag("move-tol", "minimal log-likelihood improvement of an SPR move").Default("1e-3").Float64()
	brlenTol   = app.Flag("brlen-tol", "branch length convergence tolerance").Default("1e-4").Float64()
	maxBrLen   = app.Flag("maxbrlen", "maximum branch length").Default("10").Float64()
	randomize  = app.Flag("randomize", "use random starting branch lengths").Bool()
	seed       = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()

	// performance and logging
	nThreads   = app.Flag("nt", "number of workers (default is the number of CPUs)").Default("0").Int()
	cpuProfile = app.Flag("cpuprofile", "write cpu profile to file").String()
	logLevel   = app.Flag("loglevel", "console log level").Default("info").Enum("critical", "error", "warning", "notice", "info", "debug")
)

// setupLogging logs to the console and at debug level to the run
// log file. The returned file has to be closed.
func setupLogging(cfg *Config) (*os.File, error) {
	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.OutLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	console := logging.AddModuleLevel(logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), formatter))
	console.SetLevel(level, "")
	file := logging.AddModuleLevel(logging.NewBackendFormatter(logging.NewLogBackend(f, "", 0), formatter))
	file.SetLevel(logging.DEBUG, "")
	logging.SetBackend(console, file)
	return f, nil
}

// run reads the input and runs the optimization. The summary is
// returned even if the optimization was aborted.
func run(cfg *Config) (*OptimizationSummary, error) {
	startTime := time.Now()

	ali, err := readAlignment(cfg.SeqFile)
	if err != nil {
		return nil, err
	}
	calc, err := tlh.New(ali, cfg.Settings.Workers)
	if err != nil {
		return nil, err
	}
	t, err := startTree(cfg, ali)
	if err != nil {
		return nil, err
	}
	p, err := newParams(cfg, ali, calc, t)
	if err != nil {
		return nil, err
	}
	if err := calc.Check(t, p); err != nil {
		return nil, err
	}
	start := t.Newick(-1)
	log.Infof("intree=%s", start)
	if err := writeString(cfg.StartTree, start); err != nil {
		log.Error("Error writing starting tree:", err)
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)>>32))
	c := mlopt.NewController(calc, cfg.Settings, rng)

	if cfg.Checkpoint != "" {
		db, err := bolt.Open(cfg.Checkpoint, 0600, &bolt.Options{Timeout: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("opening checkpoint database: %w", err)
		}
		defer db.Close()
		log.Infof("Using checkpoint database %s", cfg.Checkpoint)
		cp := checkpoint.NewCheckpointIO(db, cfg.checkpointKey(), *checkpointSec)
		if *restart {
			if err := cp.Clear(); err != nil {
				return nil, fmt.Errorf("clearing checkpoint: %w", err)
			}
		}
		c.SetCheckpoint(cp)
	}

	res, runErr := c.Run(t, p)
	if res == nil {
		return nil, runErr
	}
	writeOutputs(cfg, res)

	st := res.State
	log.Noticef("Final lnL=%f after %d iterations, converged: %v", st.LnL, st.Iter, res.Converged)
	named := st.Params.Named()
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Infof("%s=%v", name, named[name])
	}
	log.Infof("outtree=%s", st.Tree.Newick(-1))

	summary := newOptimizationSummary(start, res, runErr)
	summary.Time = time.Since(startTime).Seconds()
	log.Noticef("Running time: %v", time.Since(startTime))
	return summary, runErr
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	logging.SetFormatter(formatter)

	startTime := time.Now()
	if *seed == -1 {
		*seed = startTime.UnixNano()
	}
	cfg, err := newConfig(startTime)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.createOutFolder(); err != nil {
		log.Fatal("Error creating output folder:", err)
	}
	logFile, err := setupLogging(cfg)
	if err != nil {
		log.Fatal("Error creating log file:", err)
	}
	defer logFile.Close()

	log.Info("JATI run started")
	log.Info(version)
	log.Info("Command line:", os.Args)
	log.Infof("Random seed=%v", cfg.Seed)
	log.Info(cfg.String())

	runtime.GOMAXPROCS(cfg.Settings.Workers)
	log.Infof("Using %d workers", cfg.Settings.Workers)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	summary := &CallSummary{
		Version:     version,
		CommandLine: os.Args,
		Seed:        cfg.Seed,
		NThreads:    cfg.Settings.Workers,
		RunID:       cfg.RunID,
	}
	opt, err := run(cfg)
	summary.Optimization = opt
	summary.TotalTime = time.Since(startTime).Seconds()

	if cfg.OutJSON != "" {
		if jerr := writeJSON(cfg.OutJSON, summary); jerr != nil {
			log.Error("Error writing json summary:", jerr)
		}
	}
	if err != nil {
		log.Critical("Optimization failed:", err)
		pprof.StopCPUProfile()
		logFile.Close()
		os.Exit(1)
	}
	log.Info("JATI run done")
}
