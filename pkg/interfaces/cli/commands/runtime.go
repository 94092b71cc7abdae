package commands

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/application/services/allocation"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/config"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/events"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/metrics"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/memory"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/postgres"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/solvers/exhaustive"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/solvers/pbsat"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// runtime is the set of collaborators shared by the commands
type runtime struct {
	service  *allocation.Service
	events   *events.InMemoryEventStore
	recorder *metrics.Recorder
	// store is nil when solutions are not kept
	store repositories.SolutionRepository
	close func()
}

// NewOptimizer returns the backend named in the solver configuration
func NewOptimizer(solver config.SolverConfig) (optimization.Optimizer, error) {
	switch solver.Backend {
	case config.BackendPBSat:
		return pbsat.NewOptimizer(), nil
	case config.BackendExhaustive:
		return exhaustive.NewOptimizer(solver.MaxVars), nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", solver.Backend)
	}
}

// OpenStore returns the configured solution store and a function releasing it.
// The none driver returns a nil store.
func OpenStore(ctx context.Context, store config.StoreConfig) (repositories.SolutionRepository, func(), error) {
	switch store.Driver {
	case config.StoreNone:
		return nil, func() {}, nil
	case config.StoreMemory:
		return memory.NewSolutionRepository(), func() {}, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, store.DSN)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewSolutionRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", store.Driver)
	}
}

func newRuntime(ctx context.Context, cfg *config.Config, logger logr.Logger) (*runtime, error) {
	optimizer, err := NewOptimizer(cfg.Solver)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	eventStore := events.NewInMemoryEventStore(logger)
	recorder := metrics.NewRecorder()
	if err := recorder.Subscribe(eventStore); err != nil {
		closeStore()
		return nil, err
	}

	service := allocation.NewService(optimizer,
		allocation.WithParams(cfg.Solver.Params()),
		allocation.WithEventStore(eventStore),
	)

	logger.V(1).Info("Runtime ready",
		"backend", optimizer.Name(),
		"timeLimit", cfg.Solver.TimeLimit,
		"workers", cfg.Solver.Workers,
		"store", cfg.Store.Driver)

	return &runtime{
		service:  service,
		events:   eventStore,
		recorder: recorder,
		store:    store,
		close: func() {
			if err := recorder.Unsubscribe(eventStore); err != nil {
				logger.Error(err, "Failed to detach metrics recorder")
			}
			closeStore()
		},
	}, nil
}
