package pbsat

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/solvers/exhaustive"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

func TestOptimizer_Name(t *testing.T) {
	assert.Equal(t, "pbsat", NewOptimizer().Name())
}

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

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, int64(9), resp.Objective)
	assert.Equal(t, []bool{true, false, true}, resp.Values)
}

func TestOptimizer_NegativeWeights(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddGreaterOrEqual("one_of", optimization.Lits(a, b), 1)
	m.Maximize([]optimization.WeightedLiteral{
		{Lit: a.Lit(), Weight: -2},
		{Lit: b.Lit(), Weight: -1},
	})

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, int64(-1), resp.Objective)
	assert.False(t, resp.Value(a))
	assert.True(t, resp.Value(b))
}

func TestOptimizer_UnconditionalInfeasibility(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	m.AddGreaterOrEqual("need_two_of_one", optimization.Lits(a), 2)

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInfeasible, resp.Status)
	assert.Nil(t, resp.Values)
}

func TestOptimizer_ConflictingConstraints(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddGreaterOrEqual("need_both", optimization.Lits(a, b), 2)
	m.AddLessOrEqual("at_most_one", optimization.Lits(a, b), 1)

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusInfeasible, resp.Status)
}

func TestOptimizer_UnusedVariablesAreReported(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	m.NewBoolVar("unused")
	m.Maximize([]optimization.WeightedLiteral{{Lit: a.Lit(), Weight: 1}})

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)
	assert.Len(t, resp.Values, 2)
	assert.True(t, resp.Value(a))
}

func TestOptimizer_RepeatedLiterals(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	// a counts twice, so a alone reaches the bound
	m.AddGreaterOrEqual("a_twice", []optimization.Literal{a.Lit(), a.Lit(), b.Lit()}, 2)
	m.AddLessOrEqual("not_both", []optimization.Literal{a.Lit(), b.Lit(), b.Lit()}, 1)
	m.Maximize([]optimization.WeightedLiteral{
		{Lit: b.Lit(), Weight: 3},
		{Lit: a.Lit(), Weight: 1},
		{Lit: a.Lit(), Weight: 1},
	})

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, int64(2), resp.Objective)
	assert.Equal(t, []bool{true, false}, resp.Values)
	assert.Empty(t, m.Violations(resp.Values))
}

func TestOptimizer_ComplementaryLiterals(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	// a or not(a) always contributes one, so b is forced
	m.AddGreaterOrEqual("tautology_plus_b", []optimization.Literal{a.Lit(), a.Not(), b.Lit()}, 2)
	m.Maximize([]optimization.WeightedLiteral{
		{Lit: b.Lit(), Weight: -1},
		{Lit: a.Not(), Weight: 2},
		{Lit: a.Lit(), Weight: 1},
	})

	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, entities.StatusOptimal, resp.Status)
	assert.Equal(t, []bool{false, true}, resp.Values)
	assert.Equal(t, int64(1), resp.Objective)
}

func TestMerge(t *testing.T) {
	lits, weights, bound := merge([]weighted{
		{lit: 1, weight: 1},
		{lit: 2, weight: 1},
		{lit: 1, weight: 1},
		{lit: -2, weight: 3},
		{lit: 3, weight: 1},
		{lit: -3, weight: 1},
	}, 4)

	assert.Equal(t, []int{1, -2}, lits)
	assert.Equal(t, []int{2, 2}, weights)
	assert.Equal(t, 2, bound)
}

// A model too hard to prove within the budget returns its best model so far.
func TestOptimizer_TimeLimitReturnsFeasible(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m := optimization.NewModel()
	vars := make([]optimization.BoolVar, 120)
	for i := range vars {
		vars[i] = m.NewBoolVar("v")
	}
	for i := 0; i < 300; i++ {
		var lits []optimization.Literal
		for _, j := range rng.Perm(len(vars))[:6] {
			lits = append(lits, vars[j].Lit())
		}
		m.AddLessOrEqual("sparse", lits, 2)
	}
	var terms []optimization.WeightedLiteral
	for _, v := range vars {
		terms = append(terms, optimization.WeightedLiteral{Lit: v.Lit(), Weight: int64(1 + rng.Intn(100))})
	}
	m.Maximize(terms)

	limit := 50 * time.Millisecond
	started := time.Now()
	resp, err := NewOptimizer().Solve(context.Background(), m, optimization.Params{TimeLimit: limit, Workers: 1})
	elapsed := time.Since(started)
	require.NoError(t, err)

	assert.Less(t, elapsed, limit+time.Second)
	assert.Equal(t, entities.StatusFeasible, resp.Status)
	require.Len(t, resp.Values, len(vars))
	assert.Empty(t, m.Violations(resp.Values))
	assert.Equal(t, m.Evaluate(resp.Values), resp.Objective)
}

func TestOptimizer_CancelledBeforeFirstModel(t *testing.T) {
	m := optimization.NewModel()
	a := m.NewBoolVar("a")
	m.Maximize([]optimization.WeightedLiteral{{Lit: a.Lit(), Weight: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewOptimizer().Solve(ctx, m, optimization.DefaultParams())
	require.NoError(t, err)
	// either the tiny search won the race or nothing was found in time
	assert.Contains(t, []entities.SolveStatus{entities.StatusOptimal, entities.StatusFeasible, entities.StatusUnknown}, resp.Status)
}

func TestEncode_UnknownVariable(t *testing.T) {
	m := optimization.NewModel()
	m.NewBoolVar("a")
	m.AddGreaterOrEqual("ghost", []optimization.Literal{optimization.BoolVar(9).Lit()}, 1)

	_, err := encode(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

// Random models must reach the same optimum as the enumerating reference backend.
func TestOptimizer_MatchesExhaustive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	reference := exhaustive.NewOptimizer(0)
	optimizer := NewOptimizer()

	for round := 0; round < 25; round++ {
		m := randomModel(rng, 8+rng.Intn(6))

		want, err := reference.Solve(context.Background(), m, optimization.DefaultParams())
		require.NoError(t, err)
		got, err := optimizer.Solve(context.Background(), m, optimization.DefaultParams())
		require.NoError(t, err)

		require.Equal(t, want.Status, got.Status, "round %d", round)
		if want.Status == entities.StatusOptimal {
			assert.Equal(t, want.Objective, got.Objective, "round %d", round)
			assert.Empty(t, m.Violations(got.Values), "round %d", round)
		}
	}
}

func randomModel(rng *rand.Rand, n int) *optimization.Model {
	m := optimization.NewModel()
	vars := make([]optimization.BoolVar, n)
	for i := range vars {
		vars[i] = m.NewBoolVar("v")
	}

	pick := func() []optimization.Literal {
		var lits []optimization.Literal
		for _, v := range vars {
			if rng.Intn(3) == 0 {
				lits = append(lits, v.Lit())
			}
		}
		if len(lits) == 0 {
			lits = append(lits, vars[rng.Intn(n)].Lit())
		}
		return lits
	}

	for i := 0; i < n/2; i++ {
		lits := pick()
		switch rng.Intn(3) {
		case 0:
			m.AddLessOrEqual("le", lits, rng.Intn(len(lits)+1))
		case 1:
			m.AddGreaterOrEqual("ge", lits, rng.Intn(len(lits)+1))
		default:
			c := m.AddGreaterOrEqual("cond", lits, 1+rng.Intn(len(lits)))
			if e, ok := outside(vars, lits); ok {
				c.OnlyEnforceIf(e.Lit())
			}
		}
	}

	var terms []optimization.WeightedLiteral
	for _, v := range vars {
		terms = append(terms, optimization.WeightedLiteral{Lit: v.Lit(), Weight: int64(rng.Intn(21) - 10)})
	}
	m.Maximize(terms)
	return m
}

// outside returns the first variable not mentioned by lits
func outside(vars []optimization.BoolVar, lits []optimization.Literal) (optimization.BoolVar, bool) {
	used := make(map[optimization.BoolVar]bool, len(lits))
	for _, lit := range lits {
		used[lit.Var] = true
	}
	for _, v := range vars {
		if !used[v] {
			return v, true
		}
	}
	return 0, false
}
