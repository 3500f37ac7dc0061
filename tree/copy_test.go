package tree

import (
	"bytes"
	"testing"
)

const (
	tree1 = "((((a001:0.242690,a002:0.268555)#1:0.073424,a003:0.252510):0.198740,((((((a004:0.001000,a005:0.014869):0.045007,a006:0.050606):0.056908,a007:0.166439):0.023217,a008:0.094788):0.429852,a009:0.558116):0.130317,(a010:0.009332,a011:0.024271):0.315124):0.217376):0.464470,a012:0.144369):0.0;"
	tree5 = "((a:0.1,b:0.2):0.05,c:0.3,(d:0.4,e:0.1):0.2);"
)

// TestCopyIndependent checks that copies share no nodes and keep ids,
// so they can be handed to concurrent scoring.
func TestCopyIndependent(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree1))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	orig := t.Newick(-1)
	c := t.Copy()

	tNodes, cNodes := t.Nodes(), c.Nodes()
	if len(tNodes) != len(cNodes) {
		tst.Fatal("Node count differs:", len(tNodes), len(cNodes))
	}
	for i := range tNodes {
		a, b := tNodes[i], cNodes[i]
		if a == b {
			tst.Error("Node pointers match between trees")
		}
		if a.Id != b.Id || a.LeafId != b.LeafId || a.Name != b.Name || a.BranchLength != b.BranchLength {
			tst.Errorf("Node %d differs after copy: %v vs %v", i, a, b)
		}
	}
	if c.Newick(-1) != orig {
		tst.Error("Copied tree differs from the original:", c.Newick(-1))
	}

	for _, node := range c.Edges() {
		node.BranchLength = 2
	}
	if t.Newick(-1) != orig {
		tst.Error("Changing the copy changed the original")
	}
}

func TestCopySPR(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree5))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	t.Reindex()
	orig := t.Newick(-1)
	nodeOrder := len(t.NodeOrder())

	for _, prune := range t.Edges() {
		for _, regraft := range t.RegraftTargets(prune.Id) {
			c := t.Copy()
			if err := c.SPR(prune.Id, regraft); err != nil {
				tst.Errorf("SPR(%d, %d) failed: %v", prune.Id, regraft, err)
				continue
			}
			c.Reindex()
			if err := c.Validate(); err != nil {
				tst.Errorf("SPR(%d, %d) gave an invalid tree: %v", prune.Id, regraft, err)
			}
		}
	}
	if t.Newick(-1) != orig {
		tst.Error("SPR on copies changed the original:", t.Newick(-1))
	}
	if len(t.NodeOrder()) != nodeOrder {
		tst.Error("Node order cache changed")
	}
}
