package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
)

const table = "grouping_solutions"

const schema = `CREATE TABLE IF NOT EXISTS grouping_solutions (
	run_id          TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	detail          TEXT NOT NULL,
	total_satisfied INTEGER NOT NULL,
	total_items     INTEGER NOT NULL,
	objective       BIGINT NOT NULL,
	payload         JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
)`

// SolutionRepository keeps one row per run. The full solution is stored as JSONB;
// the summary columns exist for querying.
type SolutionRepository struct {
	db DB
	sb squirrel.StatementBuilderType
}

// NewSolutionRepository creates a repository on db
func NewSolutionRepository(db DB) *SolutionRepository {
	return &SolutionRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ repositories.SolutionRepository = (*SolutionRepository)(nil)

// EnsureSchema creates the solutions table when missing
func (r *SolutionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}
	return nil
}

func (r *SolutionRepository) upsertQuery(solution *entities.Solution) (string, []any, error) {
	payload, err := json.Marshal(solution)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode solution: %w", err)
	}
	return r.sb.Insert(table).
		Columns("run_id", "status", "detail", "total_satisfied", "total_items", "objective", "payload", "created_at").
		Values(
			solution.RunID,
			solution.StatusLabel(),
			solution.Detail.String(),
			solution.TotalSatisfied,
			solution.TotalItems,
			solution.Objective,
			payload,
			solution.CreatedAt,
		).
		Suffix(`ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			detail = EXCLUDED.detail,
			total_satisfied = EXCLUDED.total_satisfied,
			total_items = EXCLUDED.total_items,
			objective = EXCLUDED.objective,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`).
		ToSql()
}

// SaveSolution inserts or replaces the solution for its run id
func (r *SolutionRepository) SaveSolution(ctx context.Context, solution *entities.Solution) error {
	if solution.RunID == "" {
		return fmt.Errorf("solution has no run id")
	}

	sql, args, err := r.upsertQuery(solution)
	if err != nil {
		return fmt.Errorf("failed to build save solution query: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error saving solution %s: %w", solution.RunID, err)
	}
	return nil
}

// GetSolution returns the solution for a run id
func (r *SolutionRepository) GetSolution(ctx context.Context, runID string) (*entities.Solution, error) {
	sql, args, err := r.sb.Select("payload").
		From(table).
		Where(squirrel.Eq{"run_id": runID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get solution query: %w", err)
	}

	var payload []byte
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("solution %s: %w", runID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("error getting solution %s: %w", runID, err)
	}
	return decodeSolution(payload)
}

// ListSolutions returns up to limit solutions, newest first. A non-positive limit returns all.
func (r *SolutionRepository) ListSolutions(ctx context.Context, limit int) ([]*entities.Solution, error) {
	query := r.sb.Select("payload").From(table).OrderBy("created_at DESC", "run_id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list solutions query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying solutions: %w", err)
	}
	defer rows.Close()

	solutions := []*entities.Solution{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("error scanning solution row: %w", err)
		}
		solution, err := decodeSolution(payload)
		if err != nil {
			return nil, err
		}
		solutions = append(solutions, solution)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating solution rows: %w", err)
	}
	return solutions, nil
}

func decodeSolution(payload []byte) (*entities.Solution, error) {
	var solution entities.Solution
	if err := json.Unmarshal(payload, &solution); err != nil {
		return nil, fmt.Errorf("failed to decode stored solution: %w", err)
	}
	return &solution, nil
}
