package main

import (
	"fmt"
	"os"

	"bitbucket.org/Davydov/jati/bio"
	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

// defaultMu is the starting PIP deletion rate when none is given.
const defaultMu = 0.1

// readAlignment reads a FASTA file and detects the sequence type.
func readAlignment(fn string) (*bio.Alignment, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seqs, err := bio.ParseFasta(f)
	if err != nil {
		return nil, err
	}
	ali, err := bio.NewAlignment(seqs)
	if err != nil {
		return nil, err
	}
	log.Infof("Read alignment of %d %s sequences, length %d", ali.NSeq(), ali.Alphabet, ali.Length())
	if ali.NSeq() < 3 {
		return nil, fmt.Errorf("%w: at least 3 sequences are required, got %d", bio.ErrAlignment, ali.NSeq())
	}
	return ali, nil
}

// newModel creates the substitution model with the starting
// frequencies given by the frequency mode.
func newModel(cfg *Config, ali *bio.Alignment) (*smodel.Model, error) {
	info := cfg.Model.Info()
	if info.Alphabet != ali.Alphabet {
		return nil, fmt.Errorf("%w: model %s is for %s sequences, alignment is %s",
			smodel.ErrConfiguration, cfg.Model, info.Alphabet, ali.Alphabet)
	}

	var freqs []float64
	switch {
	case len(cfg.Freqs) > 0:
		freqs = cfg.Freqs
	case cfg.FreqOpt != freqFixed && !info.EqualFreqs:
		freqs = ali.Frequencies()
		log.Infof("Empirical frequencies: %v", freqs)
	}
	var params []float64
	if len(cfg.Params) > 0 {
		params = cfg.Params
	}

	var m *smodel.Model
	var err error
	if info.Empirical && cfg.AAMatrix != "" {
		var f *os.File
		if f, err = os.Open(cfg.AAMatrix); err != nil {
			return nil, err
		}
		defer f.Close()
		log.Infof("Reading %s exchangeabilities from %s", cfg.Model, cfg.AAMatrix)
		m, err = smodel.NewFromPAML(cfg.Model, f, freqs)
	} else {
		m, err = smodel.New(cfg.Model, params, freqs)
	}
	if err != nil {
		return nil, err
	}
	if err := m.SetGamma(cfg.NCat, cfg.Alpha); err != nil {
		return nil, err
	}
	return m, nil
}

// newParams creates the model and gap parameters. Without a given
// insertion rate lambda is set so that the expected number of columns
// matches the alignment.
func newParams(cfg *Config, ali *bio.Alignment, calc *tlh.Calculator, t *tree.Tree) (tlh.Params, error) {
	m, err := newModel(cfg, ali)
	if err != nil {
		return tlh.Params{}, err
	}
	p := tlh.Params{Model: m, Gap: tlh.Gap{Mode: cfg.Gap}}
	if cfg.Gap == tlh.PIP {
		p.Gap.Mu = cfg.Mu
		if p.Gap.Mu <= 0 {
			p.Gap.Mu = defaultMu
		}
		p.Gap.Lambda = cfg.Lambda
		if p.Gap.Lambda <= 0 {
			p.Gap.Lambda = float64(calc.NColumns()) / (t.TotalLength() + 1/p.Gap.Mu)
		}
		log.Infof("PIP starting rates: lambda=%g, mu=%g", p.Gap.Lambda, p.Gap.Mu)
	}
	return p, nil
}

// startTree reads the tree file or builds a neighbor-joining tree.
// Rooted trees are unrooted.
func startTree(cfg *Config, ali *bio.Alignment) (*tree.Tree, error) {
	if cfg.TreeFile == "" {
		log.Info("Building neighbor-joining starting tree")
		return tree.NeighborJoining(ali.Names(), ali.Distances())
	}
	f, err := os.Open(cfg.TreeFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := tree.ParseNewick(f)
	if err != nil {
		return nil, err
	}
	if t.IsRooted() {
		log.Notice("Tree is rooted, unrooting")
		if err := t.Unroot(); err != nil {
			return nil, err
		}
	}
	return t, nil
}
