// Package exhaustive is a depth-first branch-and-bound optimizer for small models.
// It proves optimality by enumeration and serves as a reference for other backends.
package exhaustive

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

const (
	// Name is the backend name used in configuration
	Name = "exhaustive"
	// DefaultMaxVars caps the model size accepted by the search
	DefaultMaxVars = 48

	checkEvery = 1024
)

// Optimizer enumerates assignments with constraint and objective pruning
type Optimizer struct {
	maxVars int
}

// NewOptimizer creates an exhaustive optimizer. maxVars <= 0 selects DefaultMaxVars.
func NewOptimizer(maxVars int) *Optimizer {
	if maxVars <= 0 {
		maxVars = DefaultMaxVars
	}
	return &Optimizer{maxVars: maxVars}
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// Name returns the backend name
func (o *Optimizer) Name() string {
	return Name
}

// Solve searches the whole assignment space unless the time budget runs out first.
// Models with more than maxVars variables are rejected as MODEL_INVALID.
func (o *Optimizer) Solve(
	ctx context.Context,
	model *optimization.Model,
	params optimization.Params,
) (*optimization.Response, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName(Name)
	start := time.Now()

	if model.NumVars() > o.maxVars {
		logger.Info("Model too large for exhaustive search", "variables", model.NumVars(), "maxVars", o.maxVars)
		return &optimization.Response{Status: entities.StatusModelInvalid, WallTime: time.Since(start)}, nil
	}

	solveCtx, cancel := optimization.WithTimeLimit(ctx, params)
	defer cancel()

	s := newSearch(solveCtx, model)
	s.dfs(0)

	resp := &optimization.Response{WallTime: time.Since(start)}
	switch {
	case s.found && !s.stopped:
		resp.Status = entities.StatusOptimal
	case s.found:
		resp.Status = entities.StatusFeasible
	case s.stopped:
		resp.Status = entities.StatusUnknown
	default:
		resp.Status = entities.StatusInfeasible
	}
	if s.found {
		resp.Values = s.best
		resp.Objective = s.bestObjective
	}

	logger.V(1).Info("Search finished", "status", resp.Status, "nodes", s.nodes, "wallTime", resp.WallTime)
	return resp, nil
}

type search struct {
	ctx      context.Context
	model    *optimization.Model
	values   []bool
	assigned []bool
	// occurrences lists, per variable index, the constraints mentioning it
	occurrences [][]*optimization.Constraint

	found         bool
	best          []bool
	bestObjective int64
	nodes         int
	stopped       bool
}

func newSearch(ctx context.Context, model *optimization.Model) *search {
	n := model.NumVars()
	s := &search{
		ctx:         ctx,
		model:       model,
		values:      make([]bool, n),
		assigned:    make([]bool, n),
		occurrences: make([][]*optimization.Constraint, n),
	}
	for _, c := range model.Constraints() {
		seen := make(map[optimization.BoolVar]bool)
		for _, lit := range append(append([]optimization.Literal(nil), c.Lits...), c.Enforcement...) {
			if seen[lit.Var] || int(lit.Var) < 1 || int(lit.Var) > n {
				continue
			}
			seen[lit.Var] = true
			s.occurrences[lit.Var-1] = append(s.occurrences[lit.Var-1], c)
		}
	}
	return s
}

func (s *search) dfs(index int) {
	if s.stopped {
		return
	}
	s.nodes++
	if s.nodes%checkEvery == 0 && s.ctx.Err() != nil {
		s.stopped = true
		return
	}

	if s.found && s.optimisticObjective() <= s.bestObjective {
		return
	}

	if index == len(s.values) {
		objective := s.model.Evaluate(s.values)
		if !s.found || objective > s.bestObjective {
			s.found = true
			s.best = make([]bool, len(s.values))
			copy(s.best, s.values)
			s.bestObjective = objective
		}
		return
	}

	s.assigned[index] = true
	for _, value := range []bool{true, false} {
		s.values[index] = value
		if s.consistent(index) {
			s.dfs(index + 1)
		}
	}
	s.assigned[index] = false
	s.values[index] = false
}

// consistent checks the constraints touching variable index against the partial assignment
func (s *search) consistent(index int) bool {
	for _, c := range s.occurrences[index] {
		if !s.mayHold(c) {
			return false
		}
	}
	return true
}

// mayHold reports whether some completion of the partial assignment satisfies c
func (s *search) mayHold(c *optimization.Constraint) bool {
	for _, lit := range c.Enforcement {
		if !s.isAssigned(lit.Var) {
			return true
		}
		if !lit.Eval(s.values) {
			return true
		}
	}

	trueCount, open := 0, 0
	for _, lit := range c.Lits {
		switch {
		case !s.isAssigned(lit.Var):
			open++
		case lit.Eval(s.values):
			trueCount++
		}
	}
	if c.Op == optimization.GreaterOrEqual {
		return trueCount+open >= c.Bound
	}
	return trueCount <= c.Bound
}

func (s *search) isAssigned(v optimization.BoolVar) bool {
	return s.assigned[v-1]
}

// optimisticObjective bounds the objective reachable from the partial assignment
func (s *search) optimisticObjective() int64 {
	var total int64
	for _, term := range s.model.Objective() {
		switch {
		case !s.isAssigned(term.Lit.Var):
			if term.Weight > 0 {
				total += term.Weight
			}
		case term.Lit.Eval(s.values):
			total += term.Weight
		}
	}
	return total
}
