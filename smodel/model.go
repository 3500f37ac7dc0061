// Package smodel implements time-reversible substitution models for
// nucleotide and amino acid sequences.
//
// Models form a closed set identified by ModelID. Every model exposes
// the same capabilities: the number, names, bounds and defaults of its
// rate parameters, the stationary frequencies and the rate matrix.
package smodel

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/jati/bio"
	"bitbucket.org/Davydov/jati/dist"
)

var log = logging.MustGetLogger("smodel")

// ErrConfiguration is returned for invalid model setups: unknown
// models, wrong number of parameters or frequencies, values out of
// bounds.
var ErrConfiguration = errors.New("configuration error")

const (
	// RateMin is the lower bound for rate parameters.
	RateMin = 1e-4
	// RateMax is the upper bound for rate parameters.
	RateMax = 100
	// AlphaMin is the lower bound for the gamma shape parameter.
	AlphaMin = 0.02
	// AlphaMax is the upper bound for the gamma shape parameter.
	AlphaMax = 100
	// freqTolerance is the allowed deviation of frequency sums from one.
	freqTolerance = 1e-6
)

// ModelID identifies a substitution model.
type ModelID int

const (
	JC69 ModelID = iota
	K80
	HKY
	TN93
	GTR
	WAG
	HIVB
	BLOSUM
)

// Info describes a model.
type Info struct {
	ID         ModelID
	Name       string
	Alphabet   bio.Alphabet
	ParamNames []string
	Defaults   []float64
	// EqualFreqs models always use equal stationary frequencies.
	EqualFreqs bool
	// Empirical models have fixed exchangeabilities.
	Empirical bool
}

var registry = [...]Info{
	JC69: {ID: JC69, Name: "JC69", Alphabet: bio.DNA, EqualFreqs: true},
	K80: {ID: K80, Name: "K80", Alphabet: bio.DNA, EqualFreqs: true,
		ParamNames: []string{"alpha", "beta"}, Defaults: []float64{2, 1}},
	HKY: {ID: HKY, Name: "HKY", Alphabet: bio.DNA,
		ParamNames: []string{"alpha", "beta"}, Defaults: []float64{2, 1}},
	TN93: {ID: TN93, Name: "TN93", Alphabet: bio.DNA,
		ParamNames: []string{"alpha1", "alpha2", "beta"}, Defaults: []float64{2, 2, 1}},
	GTR: {ID: GTR, Name: "GTR", Alphabet: bio.DNA,
		ParamNames: []string{"r_tc", "r_ta", "r_tg", "r_ca", "r_cg", "r_ag"},
		Defaults:   []float64{1, 1, 1, 1, 1, 1}},
	WAG:    {ID: WAG, Name: "WAG", Alphabet: bio.Protein, Empirical: true},
	HIVB:   {ID: HIVB, Name: "HIVB", Alphabet: bio.Protein, Empirical: true},
	BLOSUM: {ID: BLOSUM, Name: "BLOSUM", Alphabet: bio.Protein, Empirical: true},
}

// Lookup returns a model id by its case-insensitive name. HKY85 is
// accepted as an alias of HKY.
func Lookup(name string) (ModelID, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "HKY85" {
		return HKY, nil
	}
	for _, info := range registry {
		if info.Name == n {
			return info.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown model %q", ErrConfiguration, name)
}

// Info returns the model description.
func (id ModelID) Info() *Info {
	if id < 0 || int(id) >= len(registry) {
		panic(fmt.Sprintf("unknown model id %d", int(id)))
	}
	return &registry[id]
}

func (id ModelID) String() string {
	return id.Info().Name
}

// Alphabet returns the alphabet the model is defined on.
func (id ModelID) Alphabet() bio.Alphabet {
	return id.Info().Alphabet
}

// NParams returns the number of rate parameters.
func (id ModelID) NParams() int {
	return len(id.Info().ParamNames)
}

// NFree returns the number of rate parameters which are optimized.
// The last parameter is the reference rate and stays fixed, since the
// rate matrix is normalized.
func (id ModelID) NFree() int {
	if n := id.NParams(); n > 0 {
		return n - 1
	}
	return 0
}

// Model is a parametrized substitution model.
type Model struct {
	ID     ModelID
	Params []float64
	Freqs  []float64
	// NCat is the number of discrete gamma rate categories, 1 for
	// no rate variation.
	NCat  int
	Alpha float64
	// exch holds the exchangeabilities of empirical models.
	exch []float64
}

// New creates a model. Nil params give defaults. Nil freqs give equal
// frequencies or, for empirical models, the model frequencies. WAG is
// built in, HIVB and BLOSUM require NewFromPAML.
func New(id ModelID, params, freqs []float64) (*Model, error) {
	if id < 0 || int(id) >= len(registry) {
		return nil, fmt.Errorf("%w: unknown model id %d", ErrConfiguration, int(id))
	}
	info := id.Info()
	m := &Model{ID: id, NCat: 1, Alpha: 1}

	switch id {
	case WAG:
		exch, f, err := ReadPAML(strings.NewReader(wagData))
		if err != nil {
			panic(err)
		}
		m.exch = exch
		if freqs == nil {
			freqs = f
		}
	case HIVB, BLOSUM:
		return nil, fmt.Errorf("%w: model %s requires an exchangeability file", ErrConfiguration, id)
	}

	if err := m.setParams(params); err != nil {
		return nil, err
	}
	if err := m.setFreqs(freqs, info); err != nil {
		return nil, err
	}
	return m, nil
}

// NewFromPAML creates an empirical amino acid model reading
// exchangeabilities and frequencies in PAML format. Non-nil freqs
// override the file frequencies.
func NewFromPAML(id ModelID, rd io.Reader, freqs []float64) (*Model, error) {
	info := id.Info()
	if !info.Empirical {
		return nil, fmt.Errorf("%w: model %s is not empirical", ErrConfiguration, id)
	}
	exch, f, err := ReadPAML(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if freqs == nil {
		freqs = f
	}
	m := &Model{ID: id, NCat: 1, Alpha: 1, exch: exch}
	if err := m.setFreqs(freqs, info); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) setParams(params []float64) error {
	info := m.ID.Info()
	if params == nil {
		params = info.Defaults
	}
	if len(params) != len(info.ParamNames) {
		return fmt.Errorf("%w: model %s expects %d parameters, got %d",
			ErrConfiguration, m.ID, len(info.ParamNames), len(params))
	}
	m.Params = append([]float64(nil), params...)
	return nil
}

func (m *Model) setFreqs(freqs []float64, info *Info) error {
	k := info.Alphabet.Size()
	if info.EqualFreqs {
		if freqs != nil {
			log.Warningf("Model %s uses equal frequencies, ignoring given frequencies", m.ID)
		}
		freqs = nil
	}
	if freqs == nil {
		freqs = make([]float64, k)
		for i := range freqs {
			freqs[i] = 1 / float64(k)
		}
	}
	if len(freqs) != k {
		return fmt.Errorf("%w: model %s expects %d frequencies, got %d",
			ErrConfiguration, m.ID, k, len(freqs))
	}
	sum := 0.0
	for _, f := range freqs {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: invalid frequency %v", ErrConfiguration, f)
		}
		sum += f
	}
	if math.Abs(sum-1) > freqTolerance {
		return fmt.Errorf("%w: frequencies sum to %v", ErrConfiguration, sum)
	}
	m.Freqs = make([]float64, k)
	for i, f := range freqs {
		m.Freqs[i] = f / sum
	}
	return nil
}

// SetGamma enables discrete gamma rate variation with ncat
// categories.
func (m *Model) SetGamma(ncat int, alpha float64) error {
	if ncat < 1 {
		return fmt.Errorf("%w: number of gamma categories %d", ErrConfiguration, ncat)
	}
	if ncat > 1 && (alpha < AlphaMin || alpha > AlphaMax) {
		return fmt.Errorf("%w: gamma shape %v out of [%v, %v]", ErrConfiguration, alpha, AlphaMin, AlphaMax)
	}
	m.NCat = ncat
	m.Alpha = alpha
	return nil
}

// Copy returns an independent copy of the model.
func (m *Model) Copy() *Model {
	return &Model{
		ID:     m.ID,
		Params: append([]float64(nil), m.Params...),
		Freqs:  append([]float64(nil), m.Freqs...),
		NCat:   m.NCat,
		Alpha:  m.Alpha,
		exch:   m.exch,
	}
}

// Validate checks parameter and frequency values.
func (m *Model) Validate() error {
	info := m.ID.Info()
	if len(m.Params) != len(info.ParamNames) {
		return fmt.Errorf("%w: model %s expects %d parameters, got %d",
			ErrConfiguration, m.ID, len(info.ParamNames), len(m.Params))
	}
	for i, p := range m.Params {
		if !(p >= RateMin && p <= RateMax) {
			return fmt.Errorf("%w: parameter %s=%v out of [%v, %v]",
				ErrConfiguration, info.ParamNames[i], p, RateMin, RateMax)
		}
	}
	if len(m.Freqs) != info.Alphabet.Size() {
		return fmt.Errorf("%w: wrong number of frequencies", ErrConfiguration)
	}
	sum := 0.0
	for _, f := range m.Freqs {
		if !(f >= 0) {
			return fmt.Errorf("%w: invalid frequency %v", ErrConfiguration, f)
		}
		sum += f
	}
	if math.Abs(sum-1) > freqTolerance {
		return fmt.Errorf("%w: frequencies sum to %v", ErrConfiguration, sum)
	}
	if info.Empirical && m.exch == nil {
		return fmt.Errorf("%w: no exchangeabilities for %s", ErrConfiguration, m.ID)
	}
	if m.NCat < 1 || (m.NCat > 1 && !(m.Alpha >= AlphaMin && m.Alpha <= AlphaMax)) {
		return fmt.Errorf("%w: gamma categories=%d alpha=%v", ErrConfiguration, m.NCat, m.Alpha)
	}
	return nil
}

// Exchangeabilities returns the symmetric exchangeability matrix
// (row-major, zero diagonal).
func (m *Model) Exchangeabilities() []float64 {
	k := m.ID.Alphabet().Size()
	s := make([]float64, k*k)
	set := func(i, j int, v float64) {
		s[i*k+j] = v
		s[j*k+i] = v
	}
	// nucleotide states are ordered T, C, A, G
	const t, c, a, g = 0, 1, 2, 3
	switch m.ID {
	case JC69:
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				set(i, j, 1)
			}
		}
	case K80, HKY:
		alpha, beta := m.Params[0], m.Params[1]
		set(t, c, alpha)
		set(a, g, alpha)
		set(t, a, beta)
		set(t, g, beta)
		set(c, a, beta)
		set(c, g, beta)
	case TN93:
		set(t, c, m.Params[0])
		set(a, g, m.Params[1])
		beta := m.Params[2]
		set(t, a, beta)
		set(t, g, beta)
		set(c, a, beta)
		set(c, g, beta)
	case GTR:
		set(t, c, m.Params[0])
		set(t, a, m.Params[1])
		set(t, g, m.Params[2])
		set(c, a, m.Params[3])
		set(c, g, m.Params[4])
		set(a, g, m.Params[5])
	case WAG, HIVB, BLOSUM:
		copy(s, m.exch)
	default:
		panic(fmt.Sprintf("unknown model id %d", int(m.ID)))
	}
	return s
}

// RateMatrix returns the instantaneous rate matrix (row-major)
// normalized to one expected substitution per unit time.
func (m *Model) RateMatrix() []float64 {
	k := len(m.Freqs)
	q := m.Exchangeabilities()
	scale := 0.0
	for i := 0; i < k; i++ {
		rowSum := 0.0
		for j := 0; j < k; j++ {
			if i != j {
				q[i*k+j] *= m.Freqs[j]
				rowSum += q[i*k+j]
			}
		}
		q[i*k+i] = -rowSum
		scale += m.Freqs[i] * rowSum
	}
	for i := range q {
		q[i] /= scale
	}
	return q
}

// Decompose returns the eigen-decomposition of the rate matrix.
func (m *Model) Decompose() (*EMatrix, error) {
	return NewEMatrix(m.Exchangeabilities(), m.Freqs)
}

// Rates returns rate multipliers and their weights.
func (m *Model) Rates() (rates, weights []float64) {
	if m.NCat <= 1 {
		return []float64{1}, []float64{1}
	}
	rates = dist.GammaRates(m.Alpha, m.NCat)
	weights = make([]float64, m.NCat)
	for i := range weights {
		weights[i] = 1 / float64(m.NCat)
	}
	return
}
