package commands

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/config"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/memory"
	"github.com/mrodz/mql-grouping-engine/pkg/interfaces/api"
)

// ServeCommand runs the HTTP API
type ServeCommand struct {
	config *config.Config
}

// NewServeCommand creates a serve command
func NewServeCommand(cfg *config.Config) *ServeCommand {
	return &ServeCommand{config: cfg}
}

// Execute serves until ctx is cancelled or the process is signalled
func (c *ServeCommand) Execute(ctx context.Context) error {
	logger := logr.FromContextOrDiscard(ctx)
	if !logger.V(1).Enabled() {
		gin.SetMode(gin.ReleaseMode)
	}

	rt, err := newRuntime(ctx, c.config, logger)
	if err != nil {
		return err
	}

	// the API always keeps solutions so they can be fetched by run id
	var store repositories.SolutionRepository = rt.store
	if store == nil {
		store = memory.NewSolutionRepository()
	}

	handler := api.NewAllocationHandler(rt.service, store, rt.events, c.config.Output.EchoQuery, logger)
	router := api.NewRouter(handler, rt.recorder.Handler(), logger)

	server := api.NewServer(api.ServerConfig{
		Addr:            c.config.Server.Addr,
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
	}, router, logger, rt.close)

	return server.Run(ctx)
}
