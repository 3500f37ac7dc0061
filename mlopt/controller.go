package mlopt

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"bitbucket.org/Davydov/jati/checkpoint"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

// Controller runs the optimization loop. It is the only owner of the
// random number generator, which is used only before the loop starts.
type Controller struct {
	eval     tlh.Evaluator
	settings *Settings
	rng      *rand.Rand
	cp       *checkpoint.CheckpointIO

	models   *ModelOptimizer
	branches *BranchOptimizer
	spr      *SPRSearch
}

// NewController creates a controller. rng may be nil if starting
// branch lengths are not randomized.
func NewController(eval tlh.Evaluator, settings *Settings, rng *rand.Rand) *Controller {
	return &Controller{
		eval:     eval,
		settings: settings,
		rng:      rng,
		models:   NewModelOptimizer(eval, settings),
		branches: NewBranchOptimizer(eval, settings),
		spr:      NewSPRSearch(eval, settings),
	}
}

// SetCheckpoint enables resuming from a saved state and saving the
// state after iterations, at most as often as the checkpoint allows,
// and at the end of the run.
func (c *Controller) SetCheckpoint(cp *checkpoint.CheckpointIO) {
	c.cp = cp
}

// Run optimizes the tree and parameters. The arguments are not
// modified. On error the result holds the last valid state and the
// phase which failed; configuration errors give a nil result.
func (c *Controller) Run(t *tree.Tree, p tlh.Params) (*Result, error) {
	state, trace, final, err := c.init(t, p)
	if err != nil {
		return nil, err
	}
	res := &Result{
		State:     state,
		StartLnL:  state.LnL,
		Trace:     trace,
		Converged: final != nil && *final,
		Phase:     PhaseInit,
	}
	if final != nil {
		res.Phase = PhaseTerminated
		return res, nil
	}
	log.Noticef("Starting lnL=%f", state.LnL)

	for state.Iter < c.settings.MaxIterations {
		st, rec, err := c.iterate(res, state)
		if err != nil {
			log.Errorf("Iteration %d, phase %v: %v", state.Iter+1, res.Phase, err)
			return res, err
		}
		state = st
		res.State = state
		res.Trace = append(res.Trace, *rec)
		res.Converged = math.Abs(state.Delta) < c.settings.Epsilon
		log.Noticef("Iteration %d: lnL=%f, delta=%g", state.Iter, state.LnL, state.Delta)
		if c.cp != nil && c.cp.Old() {
			if err := c.save(res, false); err != nil {
				log.Warningf("Checkpoint not saved: %v", err)
			}
		}
		if res.Converged {
			break
		}
	}
	res.Phase = PhaseTerminated
	if !res.Converged {
		log.Warningf("Not converged after %d iterations (delta=%g)", state.Iter, state.Delta)
	}
	if err := c.save(res, true); err != nil {
		log.Warningf("Checkpoint not saved: %v", err)
	}
	return res, nil
}

// init validates the input and creates the starting state. If a
// checkpoint is found, the state and the trace are restored from it;
// final is not nil for a finished run and tells if it converged.
func (c *Controller) init(t *tree.Tree, p tlh.Params) (state *State, trace []IterationRecord, final *bool, err error) {
	s := c.settings
	if err := s.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := p.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if s.Randomize && c.rng == nil {
		return nil, nil, nil, fmt.Errorf("%w: no random number generator", ErrConfiguration)
	}

	state = &State{Tree: t.Copy(), Params: p.Copy()}
	state.Tree.Reindex()
	for _, node := range state.Tree.Edges() {
		node.BranchLength = s.clampLength(node.BranchLength)
	}
	if s.Randomize {
		// exponential lengths with mean 0.1 by inversion
		d := distuv.Exponential{Rate: 10}
		for _, node := range state.Tree.Edges() {
			node.BranchLength = s.clampLength(d.Quantile(c.rng.Float64()))
		}
		c.randomizeParams(state)
	}

	if c.cp != nil {
		data, err := c.cp.Load()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading checkpoint: %w", err)
		}
		if data != nil {
			if err := c.restore(state, &trace, data); err != nil {
				return nil, nil, nil, err
			}
			// a finished run is extended if more iterations are allowed
			if data.Final && (data.Converged || data.Iter >= s.MaxIterations) {
				final = &data.Converged
			}
		}
	}

	state.LnL = c.eval.LogLikelihood(state.Tree, state.Params)
	if !finite(state.LnL) {
		return nil, nil, nil, fmt.Errorf("%w: starting lnL=%v", ErrNumericalInstability, state.LnL)
	}
	return state, trace, final, nil
}

// randomizeParams draws free model parameters uniformly within their
// bounds. The starting parameters are kept if the drawn ones give no
// finite log-likelihood.
func (c *Controller) randomizeParams(state *State) {
	mp := newModelProblem(c.eval, state.Tree, state.Params, c.settings.EstimateFreqs)
	if len(mp.parameters) == 0 {
		return
	}
	mp.parameters.Randomize(c.rng)
	p := mp.params(mp.x)
	if err := p.Validate(); err != nil || !finite(c.eval.LogLikelihood(state.Tree, p)) {
		log.Warning("Random model parameters rejected, using the starting values")
		return
	}
	state.Params = p
	log.Debugf("Random starting parameters: %v", mp.parameters.ValuesString())
}

// iterate performs one full iteration starting from st. st itself
// is never modified.
func (c *Controller) iterate(res *Result, st *State) (*State, *IterationRecord, error) {
	prev := st.LnL

	res.Phase = PhaseModel
	params, lnL, err := c.models.Optimize(st.Tree, st.Params)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Model parameters: lnL=%f", lnL)
	cur := &State{Tree: st.Tree, Params: params, LnL: lnL, Iter: st.Iter}

	res.Phase = PhaseTopology
	move, err := c.spr.Search(cur.Tree, cur.Params)
	if err != nil {
		return nil, nil, err
	}
	var applied *SPRMove
	if move != nil && move.LnL > cur.LnL+c.settings.MoveTolerance {
		nt, err := Apply(cur.Tree, move)
		if err != nil {
			return nil, nil, err
		}
		l := c.eval.LogLikelihood(nt, cur.Params)
		if !finite(l) {
			return nil, nil, fmt.Errorf("%w: lnL=%v after %v", ErrNumericalInstability, l, move)
		}
		log.Infof("Applied %v: lnL=%f", move, l)
		cur = &State{Tree: nt, Params: cur.Params, LnL: l, Iter: cur.Iter}
		applied = move
	} else if move != nil {
		log.Infof("No improving SPR move (best %v)", move)
	}

	res.Phase = PhaseBranch
	bt := cur.Tree.Copy()
	lnL, err = c.branches.Optimize(bt, cur.Params, cur.LnL)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Branch lengths: lnL=%f", lnL)
	cur = &State{Tree: bt, Params: cur.Params, LnL: lnL, Iter: cur.Iter}

	res.Phase = PhaseCheck
	cur.Iter++
	cur.Delta = cur.LnL - prev
	rec := &IterationRecord{
		Iteration:  cur.Iter,
		LnL:        cur.LnL,
		Delta:      cur.Delta,
		Parameters: cur.Params.Named(),
		Move:       applied,
		Tree:       cur.Tree.Newick(-1),
	}
	return cur, rec, nil
}

// save stores the result in the checkpoint database.
func (c *Controller) save(res *Result, final bool) error {
	if c.cp == nil {
		return nil
	}
	trace, err := json.Marshal(res.Trace)
	if err != nil {
		return err
	}
	st := res.State
	return c.cp.Save(&checkpoint.CheckpointData{
		Tree:       st.Tree.Newick(-1),
		Parameters: st.Params.Named(),
		Likelihood: st.LnL,
		Delta:      st.Delta,
		Iter:       st.Iter,
		Converged:  res.Converged,
		Final:      final,
		Trace:      trace,
	})
}

// restore replaces the state tree and parameters with the checkpoint.
func (c *Controller) restore(state *State, trace *[]IterationRecord, data *checkpoint.CheckpointData) error {
	t, err := tree.ParseNewick(strings.NewReader(data.Tree))
	if err != nil {
		return fmt.Errorf("%w: checkpoint tree: %w", ErrConfiguration, err)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: checkpoint tree: %w", ErrConfiguration, err)
	}
	if err := state.Params.SetNamed(data.Parameters); err != nil {
		return err
	}
	if err := state.Params.Validate(); err != nil {
		return err
	}
	if len(data.Trace) > 0 {
		if err := json.Unmarshal(data.Trace, trace); err != nil {
			return fmt.Errorf("checkpoint trace: %w", err)
		}
	}
	state.Tree = t
	state.Iter = data.Iter
	state.Delta = data.Delta
	log.Noticef("Resuming from iteration %d", data.Iter)
	return nil
}
