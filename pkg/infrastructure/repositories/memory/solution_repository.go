package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
)

// SolutionRepository keeps solutions in memory, newest last
type SolutionRepository struct {
	solutions []*entities.Solution
	byRunID   map[string]int
	mutex     sync.RWMutex
}

// NewSolutionRepository creates an empty in-memory solution repository
func NewSolutionRepository() *SolutionRepository {
	return &SolutionRepository{
		byRunID: make(map[string]int),
	}
}

var _ repositories.SolutionRepository = (*SolutionRepository)(nil)

// SaveSolution stores a solution, replacing any earlier one with the same run id
func (r *SolutionRepository) SaveSolution(ctx context.Context, solution *entities.Solution) error {
	if solution.RunID == "" {
		return fmt.Errorf("solution has no run id")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if index, exists := r.byRunID[solution.RunID]; exists {
		r.solutions[index] = solution
		return nil
	}
	r.byRunID[solution.RunID] = len(r.solutions)
	r.solutions = append(r.solutions, solution)
	return nil
}

// GetSolution returns the solution for a run id
func (r *SolutionRepository) GetSolution(ctx context.Context, runID string) (*entities.Solution, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	index, exists := r.byRunID[runID]
	if !exists {
		return nil, fmt.Errorf("solution %s: %w", runID, repositories.ErrNotFound)
	}
	return r.solutions[index], nil
}

// ListSolutions returns up to limit solutions, newest first. A non-positive limit returns all.
func (r *SolutionRepository) ListSolutions(ctx context.Context, limit int) ([]*entities.Solution, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if limit <= 0 || limit > len(r.solutions) {
		limit = len(r.solutions)
	}
	result := make([]*entities.Solution, 0, limit)
	for i := len(r.solutions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, r.solutions[i])
	}
	return result, nil
}
