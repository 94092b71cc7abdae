package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	testinghelpers "github.com/mrodz/mql-grouping-engine/pkg/application/services/testing"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.Output.Format = config.FormatJSON
	return cfg
}

func writeSets(t *testing.T, sets ...*dto.RequirementSet) string {
	t.Helper()
	data, err := json.Marshal(sets)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "sets.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestAllocateCommand_FromFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "grouping.prom")
	input := writeSets(t, testinghelpers.ContestedCourse(), testinghelpers.CourseOrPlacement())

	var stdout bytes.Buffer
	require.NoError(t, NewAllocateCommand(cfg, input, nil, &stdout, false).Execute(context.Background()))

	var outputs []map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &outputs))
	require.Len(t, outputs, 2)
	assert.Equal(t, "ok", outputs[0]["status"])
	assert.EqualValues(t, 1, outputs[0]["total_satisfied"])

	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `grouping_allocations_total{backend="pbsat",status="OPTIMAL"} 2`)
}

func TestAllocateCommand_FromStdinWithExhaustiveBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Solver.Backend = config.BackendExhaustive
	cfg.Store.Driver = config.StoreNone
	data, err := json.Marshal(testinghelpers.TierTradeOff())
	require.NoError(t, err)

	var stdout bytes.Buffer
	cmd := NewAllocateCommand(cfg, "-", bytes.NewReader(data), &stdout, false)
	require.NoError(t, cmd.Execute(context.Background()))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.EqualValues(t, 1, out["total_satisfied"])
	assert.Len(t, out["selected_courses"], 3)
}

func TestAllocateCommand_Upstream(t *testing.T) {
	data, err := json.Marshal([]*dto.RequirementSet{testinghelpers.OptionalRequirement()})
	require.NoError(t, err)
	query := filepath.Join(t.TempDir(), "test.mql")
	require.NoError(t, os.WriteFile(query, data, 0o644))

	cfg := testConfig(t)
	cfg.Upstream.Compiler = "cat"
	cfg.Upstream.Matcher = "cat"
	cfg.Upstream.QueryFile = query
	cfg.Output.Format = config.FormatText

	var stdout bytes.Buffer
	require.NoError(t, NewAllocateCommand(cfg, "", nil, &stdout, false).Execute(context.Background()))
	assert.Contains(t, stdout.String(), "Optional electives")
}

func TestAllocateCommand_PartialBatch(t *testing.T) {
	broken := testinghelpers.ContestedCourse()
	broken.Results[0].Requirement.Priority = nil
	input := writeSets(t, testinghelpers.SharedBaseIdentity(), broken)

	var stdout bytes.Buffer
	err := NewAllocateCommand(testConfig(t), input, nil, &stdout, false).Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirement set 1")

	// the first set is still reported
	assert.Contains(t, stdout.String(), `"status": "ok"`)
}

func TestAllocateCommand_ValidateInputs(t *testing.T) {
	cfg := testConfig(t)
	err := NewAllocateCommand(cfg, "", nil, &bytes.Buffer{}, false).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "validation error"))

	cfg.Upstream.QueryFile = "q.mql"
	err = NewAllocateCommand(cfg, "sets.json", nil, &bytes.Buffer{}, false).Execute(context.Background())
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestNewOptimizer(t *testing.T) {
	optimizer, err := NewOptimizer(config.SolverConfig{Backend: config.BackendExhaustive})
	require.NoError(t, err)
	assert.Equal(t, "exhaustive", optimizer.Name())

	_, err = NewOptimizer(config.SolverConfig{Backend: "gurobi"})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	store, closeStore, err := OpenStore(context.Background(), config.StoreConfig{Driver: config.StoreNone})
	require.NoError(t, err)
	assert.Nil(t, store)
	closeStore()

	store, closeStore, err = OpenStore(context.Background(), config.StoreConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	assert.NotNil(t, store)
	closeStore()

	_, _, err = OpenStore(context.Background(), config.StoreConfig{Driver: "sqlite"})
	assert.Error(t, err)
}
