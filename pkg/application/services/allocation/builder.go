package allocation

import (
	"fmt"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// AllocationModel is the boolean model of one requirement set together with the
// variables the decoder reads back
type AllocationModel struct {
	Model        *optimization.Model
	Items        []*entities.Item
	Requirements []*entities.Requirement

	selection  map[entities.ItemKey]optimization.BoolVar
	candidates [][]entities.ItemKey
	assignment []map[entities.ItemKey]optimization.BoolVar
	satisfied  []optimization.BoolVar
}

// Selection returns the variable that is true iff the item is used at all
func (m *AllocationModel) Selection(key entities.ItemKey) (optimization.BoolVar, bool) {
	v, ok := m.selection[key]
	return v, ok
}

// Assignment returns the variable that is true iff key is credited to requirement r
func (m *AllocationModel) Assignment(r int, key entities.ItemKey) (optimization.BoolVar, bool) {
	if r < 0 || r >= len(m.assignment) {
		return 0, false
	}
	v, ok := m.assignment[r][key]
	return v, ok
}

// Candidates returns the candidate keys of requirement r in resolution order
func (m *AllocationModel) Candidates(r int) []entities.ItemKey {
	return m.candidates[r]
}

// Satisfied returns the satisfaction flag of requirement r
func (m *AllocationModel) Satisfied(r int) optimization.BoolVar {
	return m.satisfied[r]
}

// AssignmentVars returns every assignment variable of requirement r in candidate order
func (m *AllocationModel) AssignmentVars(r int) []optimization.BoolVar {
	vars := make([]optimization.BoolVar, len(m.candidates[r]))
	for i, key := range m.candidates[r] {
		vars[i] = m.assignment[r][key]
	}
	return vars
}

// BuildModel emits the variables and structural constraints of an allocation.
// Every candidate must already be in the catalog; bounds are validated before any
// variable is created.
func BuildModel(
	catalog repositories.ItemRepository,
	requirements []*entities.Requirement,
) (*AllocationModel, error) {
	for _, req := range requirements {
		if err := req.Quantity.Validate(); err != nil {
			return nil, entities.NewInputError(req.Index, "requirement.query.quantity", err)
		}
		for g, group := range req.Groups {
			if group.Limit < 0 {
				return nil, entities.NewInputError(req.Index, fmt.Sprintf("group[%d]", g),
					fmt.Errorf("negative limit %d: %w", group.Limit, entities.ErrMalformedInput))
			}
			for _, key := range group.Candidates {
				if !catalog.Has(key) {
					return nil, entities.NewInputError(req.Index, fmt.Sprintf("group[%d]", g),
						fmt.Errorf("candidate %s is not in the catalog: %w", key, entities.ErrMalformedInput))
				}
			}
		}
	}

	am := &AllocationModel{
		Model:        optimization.NewModel(),
		Items:        catalog.GetAllItems(),
		Requirements: requirements,
		selection:    make(map[entities.ItemKey]optimization.BoolVar, catalog.Len()),
		candidates:   make([][]entities.ItemKey, len(requirements)),
		assignment:   make([]map[entities.ItemKey]optimization.BoolVar, len(requirements)),
		satisfied:    make([]optimization.BoolVar, len(requirements)),
	}
	m := am.Model

	for _, item := range am.Items {
		am.selection[item.Key] = m.NewBoolVar("x_" + item.Key.String())
	}

	// assignment variables, linked to their item's selection
	usedBy := make(map[entities.ItemKey][]optimization.BoolVar)
	for r, req := range requirements {
		am.candidates[r] = req.Candidates()
		am.assignment[r] = make(map[entities.ItemKey]optimization.BoolVar, len(am.candidates[r]))
		for _, key := range am.candidates[r] {
			y := m.NewBoolVar(fmt.Sprintf("y_r%d_%s", r, key))
			am.assignment[r][key] = y
			usedBy[key] = append(usedBy[key], y)
			m.AddImplication(fmt.Sprintf("link_r%d_%s", r, key), y.Lit(), am.selection[key].Lit())
		}
	}

	for r, req := range requirements {
		am.satisfied[r] = m.NewBoolVar(fmt.Sprintf("sat_r%d", r))
		addQuantityConstraints(am, r, req)
		addGroupConstraints(am, r, req)
	}

	addDoubleCountingConstraints(am, catalog, usedBy)

	return am, nil
}

// addQuantityConstraints bounds the assigned count of requirement r and ties it to the
// satisfaction flag. An unsatisfied requirement may keep partial progress below min.
func addQuantityConstraints(am *AllocationModel, r int, req *entities.Requirement) {
	m := am.Model
	s := am.satisfied[r]
	ys := optimization.Lits(am.AssignmentVars(r)...)
	floor, ceiling := req.Quantity.Min, req.Quantity.Max

	if len(ys) == 0 {
		// nothing can be assigned, so the flag is decided by the floor alone
		if floor == 0 {
			m.AddGreaterOrEqual(fmt.Sprintf("sat_r%d_fixed", r), optimization.Lits(s), 1)
		} else {
			m.AddLessOrEqual(fmt.Sprintf("sat_r%d_fixed", r), optimization.Lits(s), 0)
		}
		return
	}

	m.AddLessOrEqual(fmt.Sprintf("max_r%d", r), ys, ceiling)
	m.AddGreaterOrEqual(fmt.Sprintf("min_r%d", r), ys, floor).OnlyEnforceIf(s.Lit())
	below := floor - 1
	if floor == 0 {
		below = 0
	}
	m.AddLessOrEqual(fmt.Sprintf("below_min_r%d", r), ys, below).OnlyEnforceIf(s.Not())
}

func addGroupConstraints(am *AllocationModel, r int, req *entities.Requirement) {
	for g, group := range req.Groups {
		if len(group.Candidates) == 0 {
			continue
		}
		lits := make([]optimization.Literal, 0, len(group.Candidates))
		seen := make(map[entities.ItemKey]bool, len(group.Candidates))
		for _, key := range group.Candidates {
			if seen[key] {
				continue
			}
			seen[key] = true
			lits = append(lits, am.assignment[r][key].Lit())
		}
		am.Model.AddLessOrEqual(fmt.Sprintf("group_r%d_g%d", r, g), lits, group.Limit)
	}
}

// addDoubleCountingConstraints credits every item, and every base identity of course
// items, to at most one requirement. A selected item must be credited somewhere.
func addDoubleCountingConstraints(
	am *AllocationModel,
	catalog repositories.ItemRepository,
	usedBy map[entities.ItemKey][]optimization.BoolVar,
) {
	m := am.Model
	byBase := make(map[entities.BaseIdentity][]optimization.BoolVar)
	var bases []entities.BaseIdentity

	for _, item := range am.Items {
		x := am.selection[item.Key]
		ys := usedBy[item.Key]

		use := append([]optimization.Literal{x.Not()}, optimization.Lits(ys...)...)
		m.AddGreaterOrEqual("used_"+item.Key.String(), use, 1)

		if len(ys) > 0 {
			m.AddLessOrEqual("once_"+item.Key.String(), optimization.Lits(ys...), 1)
		}

		base, ok := catalog.BaseIdentity(item.Key)
		if !ok || len(ys) == 0 {
			continue
		}
		if _, seen := byBase[base]; !seen {
			bases = append(bases, base)
		}
		byBase[base] = append(byBase[base], ys...)
	}

	for _, base := range bases {
		m.AddLessOrEqual("base_"+string(base), optimization.Lits(byBase[base]...), 1)
	}
}
