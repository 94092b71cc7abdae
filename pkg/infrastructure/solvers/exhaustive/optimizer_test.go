package exhaustive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

func TestOptimizer_PicksBestAssignment(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	c := m.NewBoolVar("c")
	m.AddLessOrEqual("pick_two", optimization.Lits(a, b, c), 2)
	m.Maximize([]optimization.WeightedLiteral{
		{Lit: a.Lit(), Weight: 5},
		{Lit: b.Lit(), Weight: 3},
		{Lit: c.Lit(), Weight: 4},
	})

	resp, err := NewOptimizer(0).Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, int64(9), resp.Objective)
	assert.True(t, resp.Value(a))
	assert.False(t, resp.Value(b))
	assert.True(t, resp.Value(c))
	assert.Empty(t, m.Violations(resp.Values))
}

func TestOptimizer_EnforcementLiterals(t *testing.T) {
	m := optimization.NewModel()
	x := m.NewBoolVar("x")
	y := m.NewBoolVar("y")
	s := m.NewBoolVar("s")
	m.AddLessOrEqual("only_one", optimization.Lits(x, y), 1)
	m.AddGreaterOrEqual("s_needs_two", optimization.Lits(x, y), 2).OnlyEnforceIf(s.Lit())
	m.Maximize([]optimization.WeightedLiteral{
		{Lit: s.Lit(), Weight: 100},
		{Lit: x.Lit(), Weight: 1},
	})

	resp, err := NewOptimizer(0).Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	// s can never hold, so the best is x alone
	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, int64(1), resp.Objective)
	assert.False(t, resp.Value(s))
}

func TestOptimizer_Infeasible(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	m.AddGreaterOrEqual("need_a", optimization.Lits(a), 1)
	m.AddLessOrEqual("forbid_a", optimization.Lits(a), 0)

	resp, err := NewOptimizer(0).Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusInfeasible, resp.Status)
	assert.Nil(t, resp.Values)
}

func TestOptimizer_RejectsLargeModels(t *testing.T) {
	m := optimization.NewModel()
	for i := 0; i < 5; i++ {
		m.NewBoolVar("v")
	}

	resp, err := NewOptimizer(4).Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusModelInvalid, resp.Status)
}

func TestOptimizer_EmptyModel(t *testing.T) {
	resp, err := NewOptimizer(0).Solve(context.Background(), optimization.NewModel(), optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, int64(0), resp.Objective)
	assert.NotNil(t, resp.Values)
	assert.Empty(t, resp.Values)
}

func TestOptimizer_CancelledContext(t *testing.T) {
	m := optimization.NewModel()
	var terms []optimization.WeightedLiteral
	for i := 0; i < 30; i++ {
		v := m.NewBoolVar("v")
		// alternating signs defeat the objective bound, forcing a long search
		w := int64(i + 1)
		if i%2 == 1 {
			w = -w
		}
		terms = append(terms, optimization.WeightedLiteral{Lit: v.Lit(), Weight: w})
	}
	m.Maximize(terms)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewOptimizer(0).Solve(ctx, m, optimization.Params{TimeLimit: time.Second})
	require.NoError(t, err)
	assert.Contains(t, []entities.SolveStatus{entities.StatusFeasible, entities.StatusOptimal}, resp.Status)
	assert.NotNil(t, resp.Values)
}
