package repositories

import (
	"context"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

// SolutionRepository persists allocation solutions by run id
type SolutionRepository interface {
	SaveSolution(ctx context.Context, solution *entities.Solution) error
	GetSolution(ctx context.Context, runID string) (*entities.Solution, error)
	ListSolutions(ctx context.Context, limit int) ([]*entities.Solution, error)
}
