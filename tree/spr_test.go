package tree

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const tree4 = "((a:0.1,b:0.2):0.3,c:0.4,(d:0.5,e:0.6):0.7);"

func parse(tst *testing.T, s string) *Tree {
	t, err := ParseNewick(bytes.NewBufferString(s))
	require.NoError(tst, err)
	if t.IsRooted() {
		require.NoError(tst, t.Unroot())
	}
	require.NoError(tst, t.Validate())
	return t
}

func TestNewickRoundTrip(tst *testing.T) {
	t := parse(tst, tree4)
	s := t.Newick(-1)
	require.Equal(tst, "((a:0.1,b:0.2):0.3,c:0.4,(d:0.5,e:0.6):0.7);", s)
	t2 := parse(tst, s)
	require.Equal(tst, t.BrString(), t2.BrString())
}

func TestParseErrors(tst *testing.T) {
	for _, s := range []string{"((a,b),c;", "(a,b)),c);", "(a:x,b,c);"} {
		_, err := ParseNewick(bytes.NewBufferString(s))
		require.Error(tst, err, s)
	}
}

func TestRegraftTargets(tst *testing.T) {
	t := parse(tst, tree4)
	// ids: 0 root, 1 (a,b), 2 a, 3 b, 4 c, 5 (d,e), 6 d, 7 e
	require.Equal(tst, "((a#2,b#3)#1,c#4,(d#6,e#7)#5)#0;", t.BrString())
	// a: exclude a, parent 1, sibling b
	require.Equal(tst, []int{4, 5, 6, 7}, t.RegraftTargets(2))
	// (a,b): exclude subtree, root siblings c and (d,e)
	require.Equal(tst, []int{6, 7}, t.RegraftTargets(1))
	// c: exclude siblings 1 and 5
	require.Equal(tst, []int{2, 3, 6, 7}, t.RegraftTargets(4))
	require.Nil(tst, t.RegraftTargets(0))
}

func TestSPRNonRootParent(tst *testing.T) {
	t := parse(tst, tree4)
	l := t.TotalLength()
	require.NoError(tst, t.SPR(2, 6))
	require.NoError(tst, t.Validate())
	require.InDelta(tst, l, t.TotalLength(), 1e-12)

	t.Reindex()
	want := parse(tst, "(b:0.5,c:0.4,((d:0.25,a:0.1):0.25,e:0.6):0.7);")
	require.True(tst, SameTopology(t, want), t.Newick(-1))
	require.Equal(tst, want.Newick(-1), t.Newick(-1))
}

func TestSPRRootParent(tst *testing.T) {
	t := parse(tst, tree4)
	l := t.TotalLength()
	// c hangs from the root, root is replaced by (a,b)
	require.NoError(tst, t.SPR(4, 6))
	require.NoError(tst, t.Validate())
	require.InDelta(tst, l, t.TotalLength(), 1e-12)
	require.Equal(tst, 3, len(t.ChildNodes()))
	want := parse(tst, "(a:1,b:1,(e:1,(d:1,c:1):1):1);")
	require.True(tst, SameTopology(t, want), t.Newick(-1))
}

func TestSPRInvalid(tst *testing.T) {
	t := parse(tst, tree4)
	before := t.Newick(-1)
	for _, m := range [][2]int{{2, 3}, {2, 1}, {1, 2}, {0, 2}, {2, 0}, {2, 100}} {
		err := t.SPR(m[0], m[1])
		require.True(tst, errors.Is(err, ErrInvalidMove), "%v", m)
	}
	require.Equal(tst, before, t.Newick(-1))
}

func TestSPRAllMoves(tst *testing.T) {
	t := parse(tst, tree1)
	n := t.NLeaves()
	for _, p := range t.Edges() {
		for _, r := range t.RegraftTargets(p.Id) {
			c := t.Copy()
			require.NoError(tst, c.SPR(p.Id, r), "prune=%d regraft=%d", p.Id, r)
			require.Equal(tst, n, c.NLeaves())
			require.False(tst, SameTopology(t, c), "prune=%d regraft=%d is a no-op", p.Id, r)
			c.Reindex()
			require.NoError(tst, c.Validate())
		}
	}
}

func TestValidate(tst *testing.T) {
	t := parse(tst, tree4)
	t.Nodes()[2].BranchLength = -1
	require.ErrorIs(tst, t.Validate(), ErrMalformedTree)

	t = parse(tst, tree4)
	t.Nodes()[6].Name = "a"
	require.ErrorIs(tst, t.Validate(), ErrMalformedTree)

	r, err := ParseNewick(bytes.NewBufferString("((a,b),c);"))
	require.NoError(tst, err)
	require.ErrorIs(tst, r.Validate(), ErrMalformedTree)
}

func TestSplits(tst *testing.T) {
	t1 := parse(tst, "((a,b),c,(d,e));")
	t2 := parse(tst, "((d,e),(b,a),c);")
	t3 := parse(tst, "((a,c),b,(d,e));")
	require.True(tst, SameTopology(t1, t2))
	require.False(tst, SameTopology(t1, t3))
	require.Len(tst, t1.Splits(), 2)
}
