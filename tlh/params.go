package tlh

import (
	"fmt"
	"math"
	"strings"

	"bitbucket.org/Davydov/jati/smodel"
)

// GapMode is the way gaps are treated by the likelihood.
type GapMode int

const (
	// Missing treats gaps as missing data.
	Missing GapMode = iota
	// PIP uses the Poisson Indel Process.
	PIP
)

// ParseGapMode converts "missing" or "pip" into a GapMode.
func ParseGapMode(s string) (GapMode, error) {
	switch strings.ToLower(s) {
	case "missing":
		return Missing, nil
	case "pip":
		return PIP, nil
	}
	return Missing, fmt.Errorf("%w: unknown gap handling %q", smodel.ErrConfiguration, s)
}

func (g GapMode) String() string {
	switch g {
	case Missing:
		return "missing"
	case PIP:
		return "pip"
	}
	return fmt.Sprintf("GapMode(%d)", int(g))
}

const (
	// Bounds for PIP insertion and deletion rates.
	LambdaMin = 1e-6
	LambdaMax = 1e4
	MuMin     = 1e-6
	MuMax     = 1e3
)

// Gap is the gap handling mode with its parameters. Lambda and Mu
// are only used by PIP.
type Gap struct {
	Mode   GapMode
	Lambda float64
	Mu     float64
}

// Params is a full snapshot of the numerical parameters used by an
// evaluator.
type Params struct {
	Model *smodel.Model
	Gap   Gap
}

// Copy returns an independent copy.
func (p Params) Copy() Params {
	return Params{Model: p.Model.Copy(), Gap: p.Gap}
}

// Validate checks the model and gap parameters.
func (p Params) Validate() error {
	if p.Model == nil {
		return fmt.Errorf("%w: no model", smodel.ErrConfiguration)
	}
	if err := p.Model.Validate(); err != nil {
		return err
	}
	if p.Gap.Mode == PIP {
		if !(p.Gap.Lambda > 0) || math.IsInf(p.Gap.Lambda, 0) ||
			!(p.Gap.Mu > 0) || math.IsInf(p.Gap.Mu, 0) {
			return fmt.Errorf("%w: PIP rates must be positive, got lambda=%v mu=%v",
				smodel.ErrConfiguration, p.Gap.Lambda, p.Gap.Mu)
		}
	}
	return nil
}

// Named returns parameter values by name: rate parameters, pi_<state>
// frequencies, gamma_alpha with rate variation, lambda and mu for
// PIP.
func (p Params) Named() map[string]float64 {
	m := p.Model
	res := make(map[string]float64)
	for i, name := range m.ID.Info().ParamNames {
		res[name] = m.Params[i]
	}
	states := m.ID.Alphabet().States()
	for i, f := range m.Freqs {
		res["pi_"+states[i:i+1]] = f
	}
	if m.NCat > 1 {
		res["gamma_alpha"] = m.Alpha
	}
	if p.Gap.Mode == PIP {
		res["lambda"] = p.Gap.Lambda
		res["mu"] = p.Gap.Mu
	}
	return res
}

// SetNamed sets parameters from a map produced by Named.
func (p *Params) SetNamed(values map[string]float64) error {
	named := p.Named()
	for name := range named {
		if _, ok := values[name]; !ok {
			return fmt.Errorf("%w: missing parameter %s", smodel.ErrConfiguration, name)
		}
	}
	m := p.Model
	for i, name := range m.ID.Info().ParamNames {
		m.Params[i] = values[name]
	}
	states := m.ID.Alphabet().States()
	for i := range m.Freqs {
		m.Freqs[i] = values["pi_"+states[i:i+1]]
	}
	if m.NCat > 1 {
		m.Alpha = values["gamma_alpha"]
	}
	if p.Gap.Mode == PIP {
		p.Gap.Lambda = values["lambda"]
		p.Gap.Mu = values["mu"]
	}
	return nil
}
