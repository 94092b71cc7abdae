// Package api exposes allocation over HTTP
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/application/services/orchestration"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/events"
)

const defaultListLimit = 20

// AllocationHandler serves allocation requests and stored solutions
type AllocationHandler struct {
	allocator    orchestration.Allocator
	solutionRepo repositories.SolutionRepository
	eventStore   events.EventStore
	echoQuery    bool
	logger       logr.Logger
}

// NewAllocationHandler creates a handler. eventStore holds the lifecycle events of
// every run, keyed by run id. echoQuery sets the default for the echo_query
// request parameter.
func NewAllocationHandler(
	allocator orchestration.Allocator,
	solutionRepo repositories.SolutionRepository,
	eventStore events.EventStore,
	echoQuery bool,
	logger logr.Logger,
) *AllocationHandler {
	return &AllocationHandler{
		allocator:    allocator,
		solutionRepo: solutionRepo,
		eventStore:   eventStore,
		echoQuery:    echoQuery,
		logger:       logger.WithName("api"),
	}
}

// Allocate solves the requirement set in the request body
func (h *AllocationHandler) Allocate(ctx *gin.Context) {
	var set dto.RequirementSet
	if err := ctx.ShouldBindJSON(&set); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrorCodeInvalidInput, err.Error()))
		return
	}

	echo, err := h.echoParam(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrorCodeInvalidInput, err.Error()))
		return
	}

	solution, err := h.allocator.Allocate(logr.NewContext(ctx.Request.Context(), h.logger), &set)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	if err := h.solutionRepo.SaveSolution(ctx.Request.Context(), solution); err != nil {
		h.logger.Error(err, "Failed to store solution", "runID", solution.RunID)
		h.handleError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSolutionOutput(solution, echo))
}

// GetSolution returns a stored solution by run id
func (h *AllocationHandler) GetSolution(ctx *gin.Context) {
	echo, err := h.echoParam(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrorCodeInvalidInput, err.Error()))
		return
	}

	solution, err := h.solutionRepo.GetSolution(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSolutionOutput(solution, echo))
}

// ListSolutions returns the most recent solutions
func (h *AllocationHandler) ListSolutions(ctx *gin.Context) {
	limit := defaultListLimit
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrorCodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	solutions, err := h.solutionRepo.ListSolutions(ctx.Request.Context(), limit)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	outputs := make([]*dto.SolutionOutput, len(solutions))
	for i, solution := range solutions {
		outputs[i] = dto.NewSolutionOutput(solution, false)
	}
	ctx.JSON(http.StatusOK, outputs)
}

// GetSolutionEvents returns the lifecycle events of one run, starting at the
// version given by the from parameter
func (h *AllocationHandler) GetSolutionEvents(ctx *gin.Context) {
	from, ok := h.intParam(ctx, "from", 1)
	if !ok {
		return
	}

	runID := ctx.Param("id")
	stream, err := h.eventStore.ReadEvents(runID, from)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	if len(stream) == 0 && from <= 1 {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrorCodeNotFound, "no events for run "+runID))
		return
	}
	ctx.JSON(http.StatusOK, eventOutputs(stream))
}

// ListEvents returns the events of every run from the position given by the
// from parameter, in append order
func (h *AllocationHandler) ListEvents(ctx *gin.Context) {
	from, ok := h.intParam(ctx, "from", 0)
	if !ok {
		return
	}

	all, err := h.eventStore.ReadAllEvents(from)
	if err != nil {
		h.handleError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, eventOutputs(all))
}

// Health reports liveness
func (h *AllocationHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// intParam reads a non-negative integer query parameter, writing a 400 when it is malformed
func (h *AllocationHandler) intParam(ctx *gin.Context, name string, fallback int) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrorCodeInvalidInput, name+" must be a non-negative integer"))
		return 0, false
	}
	return parsed, true
}

func eventOutputs(stream []events.Event) []*dto.EventOutput {
	outputs := make([]*dto.EventOutput, len(stream))
	for i, event := range stream {
		outputs[i] = &dto.EventOutput{
			Type:      event.Type(),
			RunID:     event.StreamID(),
			Version:   event.Version(),
			Timestamp: event.Timestamp(),
			Data:      event.Data(),
		}
	}
	return outputs
}

func (h *AllocationHandler) echoParam(ctx *gin.Context) (bool, error) {
	raw := ctx.Query("echo_query")
	if raw == "" {
		return h.echoQuery, nil
	}
	echo, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("echo_query must be a boolean")
	}
	return echo, nil
}

// handleError maps domain errors to status codes
func (h *AllocationHandler) handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrMalformedInput),
		errors.Is(err, entities.ErrInvertedQuantity),
		errors.Is(err, entities.ErrUnknownItemShape):
		ctx.JSON(http.StatusBadRequest, dto.NewInputErrorResponse(err))
	case errors.Is(err, repositories.ErrNotFound):
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrorCodeNotFound, err.Error()))
	case errors.Is(err, entities.ErrSolverFailure), errors.Is(err, entities.ErrObjectiveOverflow):
		h.logger.Error(err, "Allocation failed")
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrorCodeSolverFailure, err.Error()))
	default:
		h.logger.Error(err, "Request failed")
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrorCodeInternal, "internal error"))
	}
}
