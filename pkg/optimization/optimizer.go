package optimization

import (
	"context"
	"time"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

const (
	// DefaultTimeLimit bounds a single solve
	DefaultTimeLimit = 2 * time.Second
	// DefaultWorkers is the search parallelism hint handed to backends
	DefaultWorkers = 8
)

// Params are the performance knobs passed to an optimizer
type Params struct {
	TimeLimit time.Duration
	Workers   int
}

// DefaultParams returns the default solve parameters
func DefaultParams() Params {
	return Params{TimeLimit: DefaultTimeLimit, Workers: DefaultWorkers}
}

// Response is what an optimizer returns for a model
type Response struct {
	Status    entities.SolveStatus
	Objective int64
	// Values holds one entry per variable, indexed by variable-1.
	// It is nil unless Status carries a solution.
	Values   []bool
	WallTime time.Duration
}

// Value returns the value assigned to v
func (r *Response) Value(v BoolVar) bool {
	return v.Lit().Eval(r.Values)
}

// Optimizer solves a model. A returned error means the optimizer itself failed;
// infeasibility and timeouts are reported through Response.Status.
type Optimizer interface {
	Name() string
	Solve(ctx context.Context, model *Model, params Params) (*Response, error)
}

// WithTimeLimit derives the solve context from params
func WithTimeLimit(ctx context.Context, params Params) (context.Context, context.CancelFunc) {
	if params.TimeLimit <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, params.TimeLimit)
}
