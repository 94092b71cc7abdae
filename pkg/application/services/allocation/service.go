// Package allocation allocates matched items to prioritised requirements.
//
// One call to Service.Allocate runs the whole pipeline on a fresh model: the
// normalizer fills a catalog with the item pool, the resolver turns every result into
// a requirement with candidate groups, the builder emits the boolean model, the
// objective composer adds the lexicographic objective, the optimizer solves it and the
// decoder turns the assignment into a solution.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/events"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/memory"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// Service runs allocations. It holds no per-run state and is safe for concurrent use
// as long as its optimizer and event store are.
type Service struct {
	optimizer  optimization.Optimizer
	params     optimization.Params
	eventStore events.EventStore
	newCatalog func(expected int) repositories.ItemRepository
	newRunID   func() string
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithParams sets the solve parameters
func WithParams(params optimization.Params) Option {
	return func(s *Service) { s.params = params }
}

// WithEventStore publishes lifecycle events to store
func WithEventStore(store events.EventStore) Option {
	return func(s *Service) { s.eventStore = store }
}

// WithCatalogFactory replaces the in-memory catalog
func WithCatalogFactory(factory func(expected int) repositories.ItemRepository) Option {
	return func(s *Service) { s.newCatalog = factory }
}

// WithRunIDGenerator replaces the random run ids
func WithRunIDGenerator(generate func() string) Option {
	return func(s *Service) { s.newRunID = generate }
}

// WithClock replaces time.Now for solution timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an allocation service solving with optimizer
func NewService(optimizer optimization.Optimizer, opts ...Option) *Service {
	s := &Service{
		optimizer: optimizer,
		params:    optimization.DefaultParams(),
		newCatalog: func(expected int) repositories.ItemRepository {
			return memory.NewItemRepository(expected)
		},
		newRunID: func() string { return uuid.NewString() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the optimizer name
func (s *Service) Backend() string {
	return s.optimizer.Name()
}

// Allocate solves one requirement set. Malformed input is reported as an InputError
// before any model is built; an infeasible or undecided solve is a solution with
// status no_solution, never an error. Optimizer crashes wrap ErrSolverFailure.
func (s *Service) Allocate(ctx context.Context, set *dto.RequirementSet) (*entities.Solution, error) {
	runID := s.newRunID()
	logger := logr.FromContextOrDiscard(ctx).WithName("allocation").WithValues("runID", runID)
	start := time.Now()

	if set == nil {
		err := entities.NewInputError(-1, "requirement set", fmt.Errorf("missing: %w", entities.ErrMalformedInput))
		s.publish(logger, events.NewAllocationFailedEvent(runID, "input", err))
		return nil, err
	}
	s.publish(logger, events.NewAllocationStartedEvent(runID, len(set.Results), len(set.AllSelectedCourses)))

	catalog := s.newCatalog(len(set.AllSelectedCourses))
	if err := Normalize(set.AllSelectedCourses, catalog); err != nil {
		return nil, s.fail(logger, runID, "input", err)
	}
	requirements, err := ResolveRequirements(set.Results, catalog)
	if err != nil {
		return nil, s.fail(logger, runID, "input", err)
	}

	am, err := BuildModel(catalog, requirements)
	if err != nil {
		return nil, s.fail(logger, runID, "model", err)
	}
	objective, err := ComposeObjective(am)
	if err != nil {
		return nil, s.fail(logger, runID, "objective", err)
	}

	numConstraints := len(am.Model.Constraints())
	s.publish(logger, events.NewAllocationModelBuiltEvent(runID, am.Model.NumVars(), numConstraints, len(objective.Tiers)))
	logger.V(1).Info("Model built",
		"items", len(am.Items),
		"requirements", len(requirements),
		"variables", am.Model.NumVars(),
		"constraints", numConstraints,
		"tiers", len(objective.Tiers),
		"multiplier", objective.Multiplier)

	resp, err := s.optimizer.Solve(logr.NewContext(ctx, logger), am.Model, s.params)
	if err != nil {
		if !errors.Is(err, entities.ErrSolverFailure) {
			err = fmt.Errorf("%w: %w", entities.ErrSolverFailure, err)
		}
		return nil, s.fail(logger, runID, "solve", fmt.Errorf("optimizer %s: %w", s.optimizer.Name(), err))
	}

	solution := Decode(am, resp)
	solution.RunID = runID
	solution.CreatedAt = s.now()

	s.publish(logger, events.NewAllocationSolvedEvent(s.optimizer.Name(), solution))
	logger.Info("Allocation finished",
		"status", solution.StatusLabel(),
		"detail", solution.Detail.String(),
		"satisfied", solution.TotalSatisfied,
		"requirements", len(requirements),
		"items", solution.TotalItems,
		"elapsed", time.Since(start))

	return solution, nil
}

func (s *Service) fail(logger logr.Logger, runID, stage string, err error) error {
	logger.V(1).Info("Allocation failed", "stage", stage, "error", err.Error())
	s.publish(logger, events.NewAllocationFailedEvent(runID, stage, err))
	return err
}

func (s *Service) publish(logger logr.Logger, event events.Event) {
	if s.eventStore == nil {
		return
	}
	if err := s.eventStore.AppendEvent(event.StreamID(), event); err != nil {
		logger.Error(err, "Failed to publish event", "type", event.Type())
	}
}
