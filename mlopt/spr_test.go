package mlopt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/Davydov/jati/bio"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

func TestSelectBest(tst *testing.T) {
	moves := []SPRMove{
		{Prune: 3, Regraft: 5, LnL: -10},
		{Prune: 1, Regraft: 7, LnL: -10.0005},
		{Prune: 2, Regraft: 4, LnL: -9.9999},
		{Prune: 1, Regraft: 2, LnL: -11},
	}
	i, err := SelectBest(moves, 1e-3)
	require.NoError(tst, err)
	require.Equal(tst, 1, i)

	i, err = SelectBest(moves, 0)
	require.NoError(tst, err)
	require.Equal(tst, 2, i)

	i, err = SelectBest(nil, 1e-3)
	require.NoError(tst, err)
	require.Equal(tst, -1, i)

	moves[0].LnL = math.NaN()
	_, err = SelectBest(moves, 1e-3)
	require.ErrorIs(tst, err, ErrNumericalInstability)
}

func TestSelectBestBelowThreshold(tst *testing.T) {
	const tol = 1e-3
	lnL := -10.002
	moves := []SPRMove{
		{Prune: 3, Regraft: 4, LnL: -10.0008},
		{Prune: 1, Regraft: 2, LnL: -10.0015},
	}
	i, err := SelectBest(moves, tol)
	require.NoError(tst, err)
	require.Equal(tst, 1, i)
	// the lower id wins the tie and is then rejected
	require.False(tst, moves[i].LnL > lnL+tol)
	require.True(tst, moves[0].LnL > lnL+tol)
}

func TestCandidatesOrder(tst *testing.T) {
	t := parseTree(tst, wrongTree8)
	moves := Candidates(t)
	require.NotEmpty(tst, moves)
	for i := 1; i < len(moves); i++ {
		require.True(tst, moves[i-1].less(moves[i]))
	}
	for _, m := range moves {
		nt, err := Apply(t, &SPRMove{Prune: m.Prune, Regraft: m.Regraft, Length: 0.05})
		require.NoError(tst, err)
		require.NoError(tst, nt.Validate())
	}
	_, err := Apply(t, &SPRMove{Prune: 0, Regraft: 1})
	require.ErrorIs(tst, err, ErrTopologyInvariant)
}

// gridBest maximizes the pendant length on a log grid.
func gridBest(eval tlh.Evaluator, t *tree.Tree, p tlh.Params, pendant int) float64 {
	best := math.Inf(-1)
	for x := 1e-6; x <= 10; x *= 1.02 {
		t.Nodes()[pendant].BranchLength = x
		if l := eval.LogLikelihood(t, p); l > best {
			best = l
		}
	}
	return best
}

func TestSPRBruteForce(tst *testing.T) {
	// sites 1 and 2 group a with b
	seqs := bio.Sequences{
		{Name: "a", Sequence: "ACCGTTAGCA"},
		{Name: "b", Sequence: "ACCGTTAGCA"},
		{Name: "c", Sequence: "AAAGTTAGCA"},
		{Name: "d", Sequence: "AAAGTTAGCA"},
	}
	ali, err := bio.NewAlignmentAs(seqs, bio.DNA)
	require.NoError(tst, err)
	c := newCalculator(tst, ali, 1)
	p := jc(tst)
	t := parseTree(tst, "((a:0.1,c:0.1):0.1,b:0.1,d:0.1);")

	var bestTree *tree.Tree
	bestL := math.Inf(-1)
	for _, m := range Candidates(t) {
		nt, err := rearrange(t, m)
		require.NoError(tst, err)
		if l := gridBest(c, nt, p, m.Prune); l > bestL {
			bestL = l
			bestTree = nt
		}
	}
	require.True(tst, bestTree.Splits()["c,d"])

	s := DefaultSettings()
	s.Workers = 2
	move, err := NewSPRSearch(c, s).Search(t, p)
	require.NoError(tst, err)
	require.NotNil(tst, move)
	require.InDelta(tst, bestL, move.LnL, 2e-3)
	nt, err := Apply(t, move)
	require.NoError(tst, err)
	require.True(tst, tree.SameTopology(bestTree, nt))
	require.InDelta(tst, move.LnL, c.LogLikelihood(nt, p), 1e-9)
}

func TestSPRTieBreak(tst *testing.T) {
	t := parseTree(tst, "((a:0.1,b:0.1):0.1,c:0.1,((d:0.1,e:0.1):0.1,f:0.1):0.1);")
	targets := []map[string]bool{
		parseTree(tst, "((a:1,c:1):1,b:1,((d:1,e:1):1,f:1):1);").Splits(),
		parseTree(tst, "((a:1,b:1):1,c:1,((d:1,f:1):1,e:1):1);").Splits(),
	}
	equal := func(s1, s2 map[string]bool) bool {
		if len(s1) != len(s2) {
			return false
		}
		for k := range s1 {
			if !s2[k] {
				return false
			}
		}
		return true
	}
	eval := evalFunc(func(t *tree.Tree, p tlh.Params) float64 {
		s := t.Splits()
		for _, target := range targets {
			if equal(s, target) {
				return -90
			}
		}
		return -100
	})

	var expected *SPRMove
	for _, m := range Candidates(t) {
		nt, err := rearrange(t, m)
		require.NoError(tst, err)
		if eval(nt, tlh.Params{}) == -90 {
			m := m
			expected = &m
			break
		}
	}
	require.NotNil(tst, expected)
	// both targets are reachable
	reached := make([]bool, len(targets))
	for _, m := range Candidates(t) {
		nt, err := rearrange(t, m)
		require.NoError(tst, err)
		for i, target := range targets {
			if equal(nt.Splits(), target) {
				reached[i] = true
			}
		}
	}
	require.Equal(tst, []bool{true, true}, reached)

	s := DefaultSettings()
	s.Workers = 8
	search := NewSPRSearch(eval, s)
	for i := 0; i < 100; i++ {
		move, err := search.Search(t, jc(tst))
		require.NoError(tst, err)
		require.Equal(tst, expected.Prune, move.Prune)
		require.Equal(tst, expected.Regraft, move.Regraft)
		require.Equal(tst, -90.0, move.LnL)
	}
}

func TestSPRNaN(tst *testing.T) {
	t := parseTree(tst, "((a:0.1,b:0.1):0.1,c:0.1,(d:0.1,e:0.1):0.1);")
	eval := evalFunc(func(*tree.Tree, tlh.Params) float64 { return math.NaN() })
	_, err := NewSPRSearch(eval, DefaultSettings()).Search(t, jc(tst))
	require.ErrorIs(tst, err, ErrNumericalInstability)
}
