package tlh

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/Davydov/jati/bio"
	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tree"
)

const states = "TCAG"

func parse(tst *testing.T, s string) *tree.Tree {
	t, err := tree.ParseNewick(strings.NewReader(s))
	require.NoError(tst, err)
	return t
}

func jcParams(tst *testing.T) Params {
	m, err := smodel.New(smodel.JC69, nil, nil)
	require.NoError(tst, err)
	return Params{Model: m}
}

func columnsAlignment(tst *testing.T, names []string, cols []string) *bio.Alignment {
	seqs := make(bio.Sequences, len(names))
	for i, name := range names {
		var b strings.Builder
		for _, col := range cols {
			b.WriteByte(col[i])
		}
		seqs[i] = bio.Sequence{Name: name, Sequence: b.String()}
	}
	ali, err := bio.NewAlignmentAs(seqs, bio.DNA)
	require.NoError(tst, err)
	return ali
}

// allColumns returns every column over the alphabet for n sequences.
func allColumns(alphabet string, n int) []string {
	cols := []string{""}
	for i := 0; i < n; i++ {
		var next []string
		for _, c := range cols {
			for j := 0; j < len(alphabet); j++ {
				next = append(next, c+alphabet[j:j+1])
			}
		}
		cols = next
	}
	return cols
}

func randomAlignment(tst *testing.T, n, length int, gaps bool) *bio.Alignment {
	rng := rand.New(rand.NewPCG(1, 2))
	seqs := make(bio.Sequences, n)
	for i := range seqs {
		b := make([]byte, length)
		for j := range b {
			b[j] = states[rng.IntN(4)]
			if gaps && rng.Float64() < 0.2 {
				b[j] = '-'
			}
		}
		seqs[i] = bio.Sequence{Name: string(rune('a' + i)), Sequence: string(b)}
	}
	ali, err := bio.NewAlignmentAs(seqs, bio.DNA)
	require.NoError(tst, err)
	return ali
}

func jcP(same bool, t float64) float64 {
	e := math.Exp(-4 * t / 3)
	if same {
		return 0.25 + 0.75*e
	}
	return 0.25 - 0.25*e
}

func TestJCStar(tst *testing.T) {
	t := parse(tst, "(a:0.1,b:0.2,c:0.3);")
	cols := []string{"AAA", "ACG", "TTC", "GAG"}
	ali := columnsAlignment(tst, []string{"a", "b", "c"}, cols)
	c, err := New(ali, 1)
	require.NoError(tst, err)
	p := jcParams(tst)
	require.NoError(tst, c.Check(t, p))

	expected := 0.0
	for _, col := range cols {
		l := 0.0
		for r := 0; r < 4; r++ {
			x := 0.25
			for i, br := range []float64{0.1, 0.2, 0.3} {
				x *= jcP(states[r] == col[i], br)
			}
			l += x
		}
		expected += math.Log(l)
	}
	require.InDelta(tst, expected, c.LogLikelihood(t, p), 1e-10)
}

func TestMissingSumsToOne(tst *testing.T) {
	t := parse(tst, "(a:0.05,b:0.4,c:1.2);")
	p := jcParams(tst)
	require.NoError(tst, p.Model.SetGamma(4, 0.7))
	sum := 0.0
	for _, col := range allColumns(states, 3) {
		ali := columnsAlignment(tst, []string{"a", "b", "c"}, []string{col})
		c, err := New(ali, 1)
		require.NoError(tst, err)
		sum += math.Exp(c.LogLikelihood(t, p))
	}
	require.InDelta(tst, 1, sum, 1e-10)
}

func TestMissingGapIsUninformative(tst *testing.T) {
	t := parse(tst, "(a:0.1,b:0.2,c:0.3);")
	p := jcParams(tst)
	withGap := columnsAlignment(tst, []string{"a", "b", "c"}, []string{"AC-"})
	c1, err := New(withGap, 1)
	require.NoError(tst, err)
	// the gap leaf sums out, leaving a two-leaf JC term
	expected := math.Log(0.25 * jcP(false, 0.3))
	require.InDelta(tst, expected, c1.LogLikelihood(t, p), 1e-10)
}

func TestWorkersIdentical(tst *testing.T) {
	t := parse(tst, "((a:0.1,b:0.2):0.05,c:0.3,(d:0.4,e:0.1):0.2);")
	ali := randomAlignment(tst, 5, 500, true)
	m, err := smodel.New(smodel.HKY, []float64{2.5, 1}, []float64{0.2, 0.3, 0.3, 0.2})
	require.NoError(tst, err)
	require.NoError(tst, m.SetGamma(4, 0.5))
	for _, gap := range []Gap{{Mode: Missing}, {Mode: PIP, Lambda: 10, Mu: 0.1}} {
		p := Params{Model: m, Gap: gap}
		c1, err := New(ali, 1)
		require.NoError(tst, err)
		c4, err := New(ali, 4)
		require.NoError(tst, err)
		l1 := c1.LogLikelihood(t, p)
		require.False(tst, math.IsNaN(l1))
		require.Equal(tst, l1, c4.LogLikelihood(t, p), gap.Mode.String())
	}
}

func TestPIPSumsToOne(tst *testing.T) {
	t := parse(tst, "(a:0.15,b:0.6,c:1.1);")
	var cols []string
	for _, col := range allColumns(states+"-", 3) {
		if col != "---" {
			cols = append(cols, col)
		}
	}
	require.Len(tst, cols, 124)
	ali := columnsAlignment(tst, []string{"a", "b", "c"}, cols)
	c, err := New(ali, 1)
	require.NoError(tst, err)
	require.Equal(tst, 124, c.NPatterns())

	for _, ncat := range []int{1, 4} {
		m, err := smodel.New(smodel.HKY, []float64{3, 1}, []float64{0.1, 0.2, 0.3, 0.4})
		require.NoError(tst, err)
		if ncat > 1 {
			require.NoError(tst, m.SetGamma(ncat, 0.4))
		}
		p := Params{Model: m, Gap: Gap{Mode: PIP, Lambda: 3, Mu: 0.7}}
		s, ok := c.newPIPSetup(t, p)
		require.True(tst, ok)
		w := s.newWorkspace()
		sum := c.pipColumn(s, w, -1)
		for pat := 0; pat < c.NPatterns(); pat++ {
			pc := c.pipColumn(s, w, pat)
			require.True(tst, pc > 0, cols[pat])
			sum += pc
		}
		require.InDelta(tst, 1, sum, 1e-10)
	}
}

func TestPIPLimit(tst *testing.T) {
	t := parse(tst, "((a:0.1,b:0.2):0.05,c:0.3,(d:0.4,e:0.1):0.2);")
	ali := randomAlignment(tst, 5, 100, false)
	c, err := New(ali, 2)
	require.NoError(tst, err)
	p := jcParams(tst)
	missing := c.LogLikelihood(t, p)

	p.Gap = Gap{Mode: PIP, Lambda: 1e-9, Mu: 1e-9}
	cols, length := c.PIPLogLikelihood(t, p)
	require.InDelta(tst, missing, cols, 1e-5)
	lgm, _ := math.Lgamma(101)
	require.InDelta(tst, -lgm-1, length, 1e-5)
	require.InDelta(tst, cols+length, c.LogLikelihood(t, p), 1e-9)
	require.InDelta(tst, missing-lgm-1, c.LogLikelihood(t, p), 1e-5)
}

func TestAllGapColumnsDropped(tst *testing.T) {
	ali := columnsAlignment(tst, []string{"a", "b", "c"}, []string{"AAC", "---", "AAC", "G-T"})
	c, err := New(ali, 1)
	require.NoError(tst, err)
	require.Equal(tst, 3, c.NColumns())
	require.Equal(tst, 2, c.NPatterns())

	_, err = New(columnsAlignment(tst, []string{"a", "b"}, []string{"--"}), 1)
	require.ErrorIs(tst, err, bio.ErrAlignment)
}

func TestCheck(tst *testing.T) {
	ali := columnsAlignment(tst, []string{"a", "b", "c"}, []string{"ACG"})
	c, err := New(ali, 1)
	require.NoError(tst, err)
	p := jcParams(tst)

	require.ErrorIs(tst, c.Check(parse(tst, "(a:1,b:1,d:1);"), p), smodel.ErrConfiguration)
	require.ErrorIs(tst, c.Check(parse(tst, "(a:1,b:1);"), p), smodel.ErrConfiguration)

	wag, err := smodel.New(smodel.WAG, nil, nil)
	require.NoError(tst, err)
	require.ErrorIs(tst, c.Check(parse(tst, "(a:1,b:1,c:1);"), Params{Model: wag}), smodel.ErrConfiguration)

	bad := Params{Model: p.Model, Gap: Gap{Mode: PIP, Lambda: 0, Mu: 1}}
	require.ErrorIs(tst, c.Check(parse(tst, "(a:1,b:1,c:1);"), bad), smodel.ErrConfiguration)
	require.True(tst, math.IsNaN(c.LogLikelihood(parse(tst, "(a:1,b:1,c:1);"), bad)))
}

func TestNamed(tst *testing.T) {
	m, err := smodel.New(smodel.HKY, []float64{2, 1}, []float64{0.1, 0.2, 0.3, 0.4})
	require.NoError(tst, err)
	require.NoError(tst, m.SetGamma(4, 0.5))
	p := Params{Model: m, Gap: Gap{Mode: PIP, Lambda: 2, Mu: 0.5}}
	named := p.Named()
	require.Equal(tst, 0.5, named["gamma_alpha"])
	require.Equal(tst, 0.1, named["pi_T"])
	require.Equal(tst, 2.0, named["lambda"])

	q := p.Copy()
	named["mu"] = 0.25
	named["gamma_alpha"] = 1.5
	require.NoError(tst, q.SetNamed(named))
	require.Equal(tst, 0.25, q.Gap.Mu)
	require.Equal(tst, 1.5, q.Model.Alpha)
	require.Equal(tst, 0.5, p.Model.Alpha)

	delete(named, "lambda")
	require.ErrorIs(tst, q.SetNamed(named), smodel.ErrConfiguration)

	g, err := ParseGapMode("PIP")
	require.NoError(tst, err)
	require.Equal(tst, PIP, g)
	_, err = ParseGapMode("indel")
	require.ErrorIs(tst, err, smodel.ErrConfiguration)
}
