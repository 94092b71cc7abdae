package events

import (
	"time"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

const (
	AllocationStartedEvent    = "allocation.started"
	AllocationModelBuiltEvent = "allocation.model.built"
	AllocationSolvedEvent     = "allocation.solved"
	AllocationFailedEvent     = "allocation.failed"
)

// AllLifecycleEvents lists every allocation event type
var AllLifecycleEvents = []string{
	AllocationStartedEvent,
	AllocationModelBuiltEvent,
	AllocationSolvedEvent,
	AllocationFailedEvent,
}

type AllocationStarted struct {
	Requirements int `json:"requirements"`
	Items        int `json:"items"`
}

type AllocationModelBuilt struct {
	Variables   int `json:"variables"`
	Constraints int `json:"constraints"`
	Tiers       int `json:"tiers"`
}

type AllocationSolved struct {
	Backend        string               `json:"backend"`
	Status         entities.SolveStatus `json:"status"`
	TotalSatisfied int                  `json:"total_satisfied"`
	TotalItems     int                  `json:"total_items"`
	Objective      int64                `json:"objective"`
	WallTime       time.Duration        `json:"wall_time"`
}

type AllocationFailed struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

func NewAllocationStartedEvent(runID string, requirements, items int) Event {
	return NewEvent(AllocationStartedEvent, runID, AllocationStarted{
		Requirements: requirements,
		Items:        items,
	})
}

func NewAllocationModelBuiltEvent(runID string, variables, constraints, tiers int) Event {
	return NewEvent(AllocationModelBuiltEvent, runID, AllocationModelBuilt{
		Variables:   variables,
		Constraints: constraints,
		Tiers:       tiers,
	})
}

func NewAllocationSolvedEvent(backend string, solution *entities.Solution) Event {
	return NewEvent(AllocationSolvedEvent, solution.RunID, AllocationSolved{
		Backend:        backend,
		Status:         solution.Detail,
		TotalSatisfied: solution.TotalSatisfied,
		TotalItems:     solution.TotalItems,
		Objective:      solution.Objective,
		WallTime:       solution.WallTime,
	})
}

func NewAllocationFailedEvent(runID, stage string, err error) Event {
	return NewEvent(AllocationFailedEvent, runID, AllocationFailed{
		Stage: stage,
		Error: err.Error(),
	})
}
