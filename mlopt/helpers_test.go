package mlopt

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/require"

	"bitbucket.org/Davydov/jati/bio"
	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

func init() {
	logging.SetLevel(logging.WARNING, "mlopt")
	logging.SetLevel(logging.WARNING, "optimize")
	logging.SetLevel(logging.WARNING, "tlh")
}

func parseTree(tst *testing.T, s string) *tree.Tree {
	t, err := tree.ParseNewick(strings.NewReader(s))
	require.NoError(tst, err)
	require.NoError(tst, t.Validate())
	return t
}

// simulate evolves sequences along t under m.
func simulate(tst *testing.T, t *tree.Tree, m *smodel.Model, length int, seed uint64) *bio.Alignment {
	rng := rand.New(rand.NewPCG(seed, 42))
	e, err := m.Decompose()
	require.NoError(tst, err)
	states := m.ID.Alphabet().States()
	k := len(states)
	rates, _ := m.Rates()

	draw := func(p []float64) int {
		u := rng.Float64()
		for i, x := range p {
			u -= x
			if u < 0 {
				return i
			}
		}
		return len(p) - 1
	}

	seqs := make(map[string][]byte)
	for leaf := range t.Terminals() {
		seqs[leaf.Name] = make([]byte, length)
	}
	var evolve func(node *tree.Node, state, col int, rate float64)
	evolve = func(node *tree.Node, state, col int, rate float64) {
		if node.IsTerminal() {
			seqs[node.Name][col] = states[state]
			return
		}
		for _, child := range node.ChildNodes() {
			p := e.P(rate*child.BranchLength, nil)
			evolve(child, draw(p[state*k:state*k+k]), col, rate)
		}
	}
	for col := 0; col < length; col++ {
		rate := rates[rng.IntN(len(rates))]
		evolve(t.Node, draw(m.Freqs), col, rate)
	}

	var ss bio.Sequences
	for leaf := range t.Terminals() {
		ss = append(ss, bio.Sequence{Name: leaf.Name, Sequence: string(seqs[leaf.Name])})
	}
	ali, err := bio.NewAlignmentAs(ss, m.ID.Alphabet())
	require.NoError(tst, err)
	return ali
}

func newCalculator(tst *testing.T, ali *bio.Alignment, workers int) *tlh.Calculator {
	c, err := tlh.New(ali, workers)
	require.NoError(tst, err)
	return c
}

func jc(tst *testing.T) tlh.Params {
	m, err := smodel.New(smodel.JC69, nil, nil)
	require.NoError(tst, err)
	return tlh.Params{Model: m}
}

func hky(tst *testing.T, kappa float64, ncat int, alpha float64) tlh.Params {
	m, err := smodel.New(smodel.HKY, []float64{kappa, 1}, []float64{0.3, 0.2, 0.3, 0.2})
	require.NoError(tst, err)
	require.NoError(tst, m.SetGamma(ncat, alpha))
	return tlh.Params{Model: m}
}

// evalFunc adapts a function to tlh.Evaluator.
type evalFunc func(t *tree.Tree, p tlh.Params) float64

func (f evalFunc) LogLikelihood(t *tree.Tree, p tlh.Params) float64 {
	return f(t, p)
}

const trueTree8 = "((a:0.1,b:0.15):0.05,(c:0.2,(d:0.1,e:0.12):0.08):0.1,((f:0.05,g:0.3):0.1,h:0.2):0.07);"

// wrongTree8 differs from trueTree8 in topology.
const wrongTree8 = "((a:0.1,c:0.1):0.1,(b:0.1,(d:0.1,h:0.1):0.1):0.1,((f:0.1,g:0.1):0.1,e:0.1):0.1);"

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
