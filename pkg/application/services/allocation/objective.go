package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

var maxObjective = decimal.NewFromInt(math.MaxInt64)

// Objective is the scalar objective composed for one model. Satisfying one more
// requirement in a tier outweighs any outcome in all lower tiers, and any
// satisfaction outweighs the item tie-break.
type Objective struct {
	// Tiers holds the distinct priorities, highest first
	Tiers []int
	// TierWeights maps a priority to its positional weight
	TierWeights map[int]int64
	// Base exceeds the number of requirements
	Base int64
	// Multiplier scales the lexicographic term above the tie-break span
	Multiplier int64
	// ItemWeight rewards each assigned item
	ItemWeight int64
	Terms      []optimization.WeightedLiteral
}

// ComposeObjective builds the lexicographic objective of am and sets it on the model.
// Weights are recomputed from the requirement count on every call.
func ComposeObjective(am *AllocationModel) (*Objective, error) {
	requirements := am.Requirements
	tiers := lo.Uniq(lo.Map(requirements, func(r *entities.Requirement, _ int) int {
		return r.Priority
	}))
	sort.Sort(sort.Reverse(sort.IntSlice(tiers)))

	placements := lo.CountBy(am.Items, func(item *entities.Item) bool { return item.IsPlacement() })
	assignable := 0
	for r := range requirements {
		assignable += len(am.Candidates(r))
	}
	if assignable > len(am.Items) {
		assignable = len(am.Items)
	}

	base := decimal.NewFromInt(int64(len(requirements) + 1))
	itemWeight := decimal.NewFromInt(int64(placements + 1))
	// strictly above the span of itemWeight*assigned - placements
	multiplier := itemWeight.Mul(decimal.NewFromInt(int64(assignable))).
		Add(decimal.NewFromInt(int64(placements + 1)))

	tierWeights := make(map[int]decimal.Decimal, len(tiers))
	for i, priority := range tiers {
		tierWeights[priority] = base.Pow(decimal.NewFromInt(int64(len(tiers) - 1 - i)))
	}

	// largest reachable objective: every requirement satisfied and every item assigned
	total := itemWeight.Mul(decimal.NewFromInt(int64(assignable)))
	for _, req := range requirements {
		total = total.Add(multiplier.Mul(tierWeights[req.Priority]))
	}
	if total.GreaterThan(maxObjective) {
		return nil, fmt.Errorf("%d requirements in %d tiers need weights up to %s: %w",
			len(requirements), len(tiers), total.String(), entities.ErrObjectiveOverflow)
	}

	obj := &Objective{
		Tiers:       tiers,
		TierWeights: make(map[int]int64, len(tiers)),
		Base:        base.IntPart(),
		Multiplier:  multiplier.IntPart(),
		ItemWeight:  itemWeight.IntPart(),
	}
	for priority, weight := range tierWeights {
		obj.TierWeights[priority] = weight.IntPart()
	}

	for r, req := range requirements {
		obj.Terms = append(obj.Terms, optimization.WeightedLiteral{
			Lit:    am.Satisfied(r).Lit(),
			Weight: multiplier.Mul(tierWeights[req.Priority]).IntPart(),
		})
		for _, y := range am.AssignmentVars(r) {
			obj.Terms = append(obj.Terms, optimization.WeightedLiteral{Lit: y.Lit(), Weight: obj.ItemWeight})
		}
	}
	for _, item := range am.Items {
		if item.IsPlacement() {
			x, _ := am.Selection(item.Key)
			obj.Terms = append(obj.Terms, optimization.WeightedLiteral{Lit: x.Lit(), Weight: -1})
		}
	}

	am.Model.Maximize(obj.Terms)
	return obj, nil
}

// Score evaluates the objective for satisfied counts per priority, assigned items and
// placements used. It mirrors the model's objective for a decoded solution.
func (o *Objective) Score(satisfiedByPriority map[int]int, assigned, placementsUsed int) int64 {
	var score int64
	for priority, count := range satisfiedByPriority {
		score += int64(count) * o.Multiplier * o.TierWeights[priority]
	}
	return score + int64(assigned)*o.ItemWeight - int64(placementsUsed)
}
