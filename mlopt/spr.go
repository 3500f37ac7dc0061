package mlopt

import (
	"fmt"
	"math"

	"bitbucket.org/Davydov/jati/optimize"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

// SPRMove is a scored subtree prune and regraft rearrangement.
type SPRMove struct {
	Prune   int     `json:"prune"`
	Regraft int     `json:"regraft"`
	LnL     float64 `json:"lnL"`
	// Length is the optimized length of the pendant edge.
	Length float64 `json:"length"`
}

func (m SPRMove) String() string {
	return fmt.Sprintf("SPR(prune=%d, regraft=%d, lnL=%f, length=%g)", m.Prune, m.Regraft, m.LnL, m.Length)
}

// less orders moves by prune and then by regraft edge id.
func (m SPRMove) less(o SPRMove) bool {
	if m.Prune != o.Prune {
		return m.Prune < o.Prune
	}
	return m.Regraft < o.Regraft
}

// SPRSearch scores all SPR moves of a tree and picks the best one.
type SPRSearch struct {
	eval      tlh.Evaluator
	settings  *Settings
	scheduler *Scheduler
}

// NewSPRSearch creates an SPR search scoring candidates on
// settings.Workers goroutines.
func NewSPRSearch(eval tlh.Evaluator, settings *Settings) *SPRSearch {
	return &SPRSearch{
		eval:      eval,
		settings:  settings,
		scheduler: NewScheduler(settings.workers()),
	}
}

// Candidates returns all the valid moves of t ordered by prune and
// then by regraft edge id.
func Candidates(t *tree.Tree) []SPRMove {
	var moves []SPRMove
	for _, node := range t.Edges() {
		for _, r := range t.RegraftTargets(node.Id) {
			moves = append(moves, SPRMove{Prune: node.Id, Regraft: r, LnL: math.NaN()})
		}
	}
	return moves
}

// rearrange returns a copy of t with the move applied. The pendant
// edge keeps its id.
func rearrange(t *tree.Tree, m SPRMove) (*tree.Tree, error) {
	nt := t.Copy()
	if err := nt.SPR(m.Prune, m.Regraft); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTopologyInvariant, err)
	}
	return nt, nil
}

// score sets the log-likelihood and the pendant length of the move.
// t is only read.
func (s *SPRSearch) score(t *tree.Tree, p tlh.Params, m *SPRMove) error {
	nt, err := rearrange(t, *m)
	if err != nil {
		return err
	}
	pendant := nt.Nodes()[m.Prune]
	f := func(x float64) float64 {
		pendant.BranchLength = x
		return s.eval.LogLikelihood(nt, p)
	}
	brent := optimize.NewBrent()
	st := s.settings
	m.Length, m.LnL, _ = brent.Maximize(f, st.MinBranchLength, st.MaxBranchLength, st.clampLength(pendant.BranchLength))
	return nil
}

// Score computes the scores of the moves in parallel.
func (s *SPRSearch) Score(t *tree.Tree, p tlh.Params, moves []SPRMove) error {
	// node caches are filled lazily, so they have to be ready
	// before the workers copy the tree
	t.Nodes()
	t.NodeOrder()
	return s.scheduler.Map(len(moves), func(i int) error {
		return s.score(t, p, &moves[i])
	})
}

// SelectBest returns the index of the chosen move: among the moves
// scoring within tol of the maximum, the one with the lowest prune
// and then regraft edge id. It returns -1 for no moves. The chosen
// move may score up to tol below the maximum, so it can miss the
// acceptance threshold which the top scoring move would pass.
func SelectBest(moves []SPRMove, tol float64) (int, error) {
	best := math.Inf(-1)
	for _, m := range moves {
		if math.IsNaN(m.LnL) {
			return -1, fmt.Errorf("%w: %v", ErrNumericalInstability, m)
		}
		if m.LnL > best {
			best = m.LnL
		}
	}
	sel := -1
	for i, m := range moves {
		if m.LnL >= best-tol && (sel < 0 || m.less(moves[sel])) {
			sel = i
		}
	}
	return sel, nil
}

// Search scores all the moves of t and returns the selected one, or
// nil if there are no candidates. The move is not applied.
func (s *SPRSearch) Search(t *tree.Tree, p tlh.Params) (*SPRMove, error) {
	moves := Candidates(t)
	if len(moves) == 0 {
		return nil, nil
	}
	if err := s.Score(t, p, moves); err != nil {
		return nil, err
	}
	i, err := SelectBest(moves, s.settings.MoveTolerance)
	if err != nil {
		return nil, err
	}
	m := moves[i]
	log.Debugf("Scored %d SPR moves, best %v", len(moves), m)
	return &m, nil
}

// Apply returns a reindexed copy of t with the move applied and the
// pendant length set.
func Apply(t *tree.Tree, m *SPRMove) (*tree.Tree, error) {
	nt, err := rearrange(t, *m)
	if err != nil {
		return nil, err
	}
	nt.Nodes()[m.Prune].BranchLength = m.Length
	nt.Reindex()
	if err := nt.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTopologyInvariant, err)
	}
	return nt, nil
}
