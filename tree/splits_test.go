package tree

import (
	"bytes"
	"testing"
)

func TestRFDistance(tst *testing.T) {
	parse := func(s string) *Tree {
		t, err := ParseNewick(bytes.NewBufferString(s))
		if err != nil {
			tst.Fatal("Error parsing tree", err)
		}
		return t
	}
	t1 := parse("((a:1,b:1):1,c:1,(d:1,e:1):1);")
	t2 := parse("((b:2,a:2):1,(e:1,d:1):1,c:3);")
	t3 := parse("((a:1,c:1):1,b:1,(d:1,e:1):1);")

	if d := RFDistance(t1, t2); d != 0 {
		tst.Error("Same topologies, got RF distance", d)
	}
	if !SameTopology(t1, t2) {
		tst.Error("Topologies should be the same")
	}
	if d := RFDistance(t1, t3); d != 2 {
		tst.Error("Expected RF distance 2, got", d)
	}
	if SameTopology(t1, t3) {
		tst.Error("Topologies should differ")
	}
}
