// Package pbsat solves optimization models with the gophersat pseudo-boolean solver.
package pbsat

import (
	"context"
	"fmt"
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// Name is the backend name used in configuration
const Name = "pbsat"

// Optimizer adapts gophersat to optimization.Optimizer
type Optimizer struct{}

// NewOptimizer creates a gophersat-backed optimizer
func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// Name returns the backend name
func (o *Optimizer) Name() string {
	return Name
}

type outcome struct {
	status solver.Status
	values []bool
	err    error
}

// Solve runs gophersat until it proves optimality or the time budget runs out.
// gophersat cannot be interrupted, so on expiry the best model streamed so far is
// reported as FEASIBLE and the abandoned search finishes in the background.
func (o *Optimizer) Solve(
	ctx context.Context,
	model *optimization.Model,
	params optimization.Params,
) (*optimization.Response, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName(Name)
	start := time.Now()

	enc, err := encode(model)
	if err != nil {
		logger.Error(err, "Model could not be encoded")
		return &optimization.Response{
			Status:   entities.StatusModelInvalid,
			WallTime: time.Since(start),
		}, nil
	}
	if enc.infeasible {
		logger.V(1).Info("Unconditional constraint can never hold", "constraint", enc.culprit)
		return &optimization.Response{
			Status:   entities.StatusInfeasible,
			WallTime: time.Since(start),
		}, nil
	}
	if params.Workers > 1 {
		logger.V(1).Info("Parallelism hint ignored by sequential backend", "workers", params.Workers)
	}

	solveCtx, cancel := optimization.WithTimeLimit(ctx, params)
	defer cancel()

	results := make(chan solver.Result)
	done := make(chan outcome, 1)
	go run(enc, model.NumVars(), results, done)

	var best []bool
	for {
		select {
		case res, ok := <-results:
			if !ok {
				// Optimal has returned and its outcome follows on done
				return o.finish(logger, model, <-done, time.Since(start))
			}
			if res.Status == solver.Sat {
				best = res.Model
			}
		case out := <-done:
			return o.finish(logger, model, out, time.Since(start))
		case <-solveCtx.Done():
			go drain(results, done)
			wall := time.Since(start)
			logger.V(1).Info("Time budget expired",
				"haveModel", best != nil,
				"variables", model.NumVars(),
				"constraints", len(model.Constraints()),
				"wallTime", wall)
			if best == nil {
				return &optimization.Response{Status: entities.StatusUnknown, WallTime: wall}, nil
			}
			return response(model, entities.StatusFeasible, best, wall), nil
		}
	}
}

// finish converts the outcome of a completed search
func (o *Optimizer) finish(
	logger logr.Logger,
	model *optimization.Model,
	out outcome,
	wall time.Duration,
) (*optimization.Response, error) {
	if out.err != nil {
		return nil, out.err
	}
	logger.V(1).Info("Solve finished",
		"status", out.status,
		"variables", model.NumVars(),
		"constraints", len(model.Constraints()),
		"wallTime", wall)

	switch out.status {
	case solver.Sat:
		return response(model, entities.StatusOptimal, out.values, wall), nil
	case solver.Unsat:
		return &optimization.Response{Status: entities.StatusInfeasible, WallTime: wall}, nil
	default:
		return &optimization.Response{Status: entities.StatusUnknown, WallTime: wall}, nil
	}
}

// response copies assignment into a full-width value vector and scores it
func response(model *optimization.Model, status entities.SolveStatus, assignment []bool, wall time.Duration) *optimization.Response {
	values := make([]bool, model.NumVars())
	copy(values, assignment)
	return &optimization.Response{
		Status:    status,
		Objective: model.Evaluate(values),
		Values:    values,
		WallTime:  wall,
	}
}

// drain consumes the models of an abandoned search so it can run to completion
func drain(results <-chan solver.Result, done <-chan outcome) {
	for {
		select {
		case _, ok := <-results:
			if !ok {
				return
			}
		case <-done:
			return
		}
	}
}

// run drives gophersat and converts a panic inside it into ErrSolverFailure.
// Every intermediate model is streamed on results, which Optimal closes.
func run(enc *encoding, numVars int, results chan solver.Result, done chan<- outcome) {
	defer func() {
		if r := recover(); r != nil {
			done <- outcome{err: fmt.Errorf("gophersat panicked: %v: %w", r, entities.ErrSolverFailure)}
		}
	}()

	s := solver.New(enc.problem(numVars))
	result := s.Optimal(results, nil)

	out := outcome{status: result.Status}
	if result.Status == solver.Sat {
		out.values = result.Model
	}
	done <- out
}
