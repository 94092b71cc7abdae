package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
)

// Allocator solves one requirement set
type Allocator interface {
	Allocate(ctx context.Context, set *dto.RequirementSet) (*entities.Solution, error)
}

// Source produces the requirement sets of one run, e.g. a file or the upstream pipeline
type Source interface {
	Load(ctx context.Context) ([]*dto.RequirementSet, error)
}

// BatchOrchestrator solves every requirement set of a run in order and stores the
// solutions
type BatchOrchestrator struct {
	allocator    Allocator
	solutionRepo repositories.SolutionRepository
}

// NewBatchOrchestrator creates a batch orchestrator. solutionRepo may be nil.
func NewBatchOrchestrator(allocator Allocator, solutionRepo repositories.SolutionRepository) *BatchOrchestrator {
	return &BatchOrchestrator{
		allocator:    allocator,
		solutionRepo: solutionRepo,
	}
}

// BatchResult holds the solutions of a run, in input order
type BatchResult struct {
	Solutions []*entities.Solution
	StartedAt time.Time
	Elapsed   time.Duration
}

// RunFromSource loads the sets from source and solves them
func (o *BatchOrchestrator) RunFromSource(ctx context.Context, source Source) (*BatchResult, error) {
	sets, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load requirement sets: %w", err)
	}
	return o.RunBatch(ctx, sets)
}

// RunBatch solves each set with one optimizer call. It stops at the first error and
// returns the solutions produced so far alongside it.
func (o *BatchOrchestrator) RunBatch(ctx context.Context, sets []*dto.RequirementSet) (*BatchResult, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("no requirement sets provided")
	}

	logger := logr.FromContextOrDiscard(ctx).WithName("batch")
	result := &BatchResult{
		Solutions: make([]*entities.Solution, 0, len(sets)),
		StartedAt: time.Now(),
	}
	defer func() { result.Elapsed = time.Since(result.StartedAt) }()

	for i, set := range sets {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch interrupted before set %d: %w", i, err)
		}

		solution, err := o.allocator.Allocate(ctx, set)
		if err != nil {
			return result, fmt.Errorf("requirement set %d: %w", i, err)
		}

		if o.solutionRepo != nil {
			if err := o.solutionRepo.SaveSolution(ctx, solution); err != nil {
				return result, fmt.Errorf("failed to store solution of set %d: %w", i, err)
			}
		}

		logger.V(1).Info("Requirement set solved", "index", i, "runID", solution.RunID, "status", solution.Detail.String())
		result.Solutions = append(result.Solutions, solution)
	}

	return result, nil
}

// Satisfied returns the total satisfied requirements across the batch
func (r *BatchResult) Satisfied() int {
	total := 0
	for _, s := range r.Solutions {
		total += s.TotalSatisfied
	}
	return total
}

// GetSummary returns a formatted summary of the batch
func (r *BatchResult) GetSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch Summary (%d requirement sets):\n", len(r.Solutions))
	for i, s := range r.Solutions {
		fmt.Fprintf(&b, "  [%d] %s %s: %d/%d requirements satisfied, %d items used\n",
			i, s.StatusLabel(), s.Detail, s.TotalSatisfied, len(s.Requirements), s.TotalItems)
	}
	fmt.Fprintf(&b, "  Total satisfied: %d", r.Satisfied())
	return b.String()
}
