/*
Brexp is a simple tool which helps working with trees in newick
format. Its modes are "brlen" to export all the branch lengths by
edge id, "brtree" to export the tree with node id labels, "unroot" to
unroot and validate a tree and "rf" to compute the Robinson-Foulds
distance to another tree. Edge ids are the ones used in jati SPR move
logs.
*/
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/jati/tree"
)

var log = logging.MustGetLogger("brexp")

var (
	app       = kingpin.New("brexp", "newick tree helper")
	mode      = app.Flag("mode", "program mode").Default("brlen").Enum("brlen", "brtree", "unroot", "rf")
	inFile    = app.Arg("tree", "input tree (stdin by default)").ExistingFile()
	otherFile = app.Flag("other", "second tree for the rf mode").ExistingFile()
)

func readTree(fn string) (*tree.Tree, error) {
	var rd io.Reader = os.Stdin
	if fn != "" {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rd = f
	}
	t, err := tree.ParseNewick(rd)
	if err != nil {
		return nil, err
	}
	if t.IsRooted() {
		if err := t.Unroot(); err != nil {
			return nil, err
		}
	}
	t.Reindex()
	return t, nil
}

// brlens writes the branch length of every edge.
func brlens(w io.Writer, t *tree.Tree) {
	for _, node := range t.Edges() {
		fmt.Fprintf(w, "br%d=%f\n", node.Id, node.BranchLength)
	}
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	t, err := readTree(*inFile)
	if err != nil {
		log.Fatal(err)
	}
	switch *mode {
	case "brlen":
		brlens(os.Stdout, t)
	case "brtree":
		fmt.Println(t.BrString())
	case "unroot":
		if err := t.Validate(); err != nil {
			log.Fatal(err)
		}
		fmt.Println(t.Newick(-1))
	case "rf":
		if *otherFile == "" {
			log.Fatal("rf mode requires --other")
		}
		o, err := readTree(*otherFile)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(tree.RFDistance(t, o))
	}
}
