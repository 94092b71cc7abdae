package events

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

func TestInMemoryEventStore_AppendAndRead(t *testing.T) {
	store := NewInMemoryEventStore(logr.Discard())

	require.NoError(t, store.AppendEvent("run-1", NewAllocationStartedEvent("run-1", 3, 10)))
	require.NoError(t, store.AppendEvent("run-2", NewAllocationStartedEvent("run-2", 1, 2)))
	require.NoError(t, store.AppendEvent("run-1", NewAllocationModelBuiltEvent("run-1", 40, 25, 2)))

	stream, err := store.ReadEvents("run-1", 0)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, 1, stream[0].Version())
	assert.Equal(t, 2, stream[1].Version())
	assert.Equal(t, AllocationModelBuiltEvent, stream[1].Type())
	assert.Equal(t, AllocationModelBuilt{Variables: 40, Constraints: 25, Tiers: 2}, stream[1].Data())

	tail, err := store.ReadEvents("run-1", 2)
	require.NoError(t, err)
	assert.Len(t, tail, 1)

	missing, err := store.ReadEvents("nope", 1)
	require.NoError(t, err)
	assert.Empty(t, missing)

	all, err := store.ReadAllEvents(1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-2", all[0].StreamID())
}

func TestInMemoryEventStore_SubscribersAreNotifiedSynchronously(t *testing.T) {
	store := NewInMemoryEventStore(logr.Discard())

	var seen []string
	handler := &HandlerFunc{
		Types: []string{AllocationSolvedEvent},
		Fn: func(e Event) error {
			seen = append(seen, e.StreamID())
			return nil
		},
	}
	require.NoError(t, store.Subscribe([]string{AllocationSolvedEvent}, handler))

	solution := &entities.Solution{RunID: "run-9", Detail: entities.StatusOptimal, TotalSatisfied: 2}
	require.NoError(t, store.AppendEvent("run-9", NewAllocationSolvedEvent("pbsat", solution)))
	require.NoError(t, store.AppendEvent("run-9", NewAllocationStartedEvent("run-9", 1, 1)))

	assert.Equal(t, []string{"run-9"}, seen)

	require.NoError(t, store.Unsubscribe(handler))
	require.NoError(t, store.AppendEvent("run-10", NewAllocationSolvedEvent("pbsat", &entities.Solution{RunID: "run-10"})))
	assert.Len(t, seen, 1)
}

func TestInMemoryEventStore_HandlerErrorsDoNotFailAppend(t *testing.T) {
	store := NewInMemoryEventStore(logr.Discard())
	handler := &HandlerFunc{
		Types: []string{AllocationFailedEvent},
		Fn:    func(Event) error { return errors.New("boom") },
	}
	require.NoError(t, store.Subscribe([]string{AllocationFailedEvent}, handler))

	err := store.AppendEvent("run-1", NewAllocationFailedEvent("run-1", "solve", errors.New("solver crashed")))
	require.NoError(t, err)

	events, err := store.ReadEvents("run-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AllocationFailed{Stage: "solve", Error: "solver crashed"}, events[0].Data())
}
