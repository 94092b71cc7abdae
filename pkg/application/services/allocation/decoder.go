package allocation

import (
	"github.com/samber/lo"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// Decode reads a solved assignment back into a solution. Responses without an
// assignment yield a solution carrying only the status.
func Decode(am *AllocationModel, resp *optimization.Response) *entities.Solution {
	solution := &entities.Solution{
		Detail:   resp.Status,
		WallTime: resp.WallTime,
	}
	if !resp.Status.HasSolution() || resp.Values == nil {
		if resp.Status.HasSolution() {
			// an optimizer claiming a solution without values has none to report
			solution.Detail = entities.StatusUnknown
		}
		return solution
	}

	for _, item := range am.Items {
		x, _ := am.Selection(item.Key)
		if !resp.Value(x) {
			continue
		}
		if item.IsPlacement() {
			solution.SelectedPlacements = append(solution.SelectedPlacements, item.Key)
		} else {
			solution.SelectedCourses = append(solution.SelectedCourses, item.Key)
		}
	}
	solution.SelectedCourses = nonNil(solution.SelectedCourses)
	solution.SelectedPlacements = nonNil(solution.SelectedPlacements)
	solution.TotalItems = len(solution.SelectedCourses) + len(solution.SelectedPlacements)

	solution.Requirements = make([]entities.RequirementReport, len(am.Requirements))
	for r, req := range am.Requirements {
		selected := lo.Filter(am.Candidates(r), func(key entities.ItemKey, _ int) bool {
			y, _ := am.Assignment(r, key)
			return resp.Value(y)
		})
		report := entities.RequirementReport{
			Index:       req.Index,
			Description: req.Description,
			Priority:    req.Priority,
			Bounds:      req.Quantity,
			Satisfied:   resp.Value(am.Satisfied(r)),
			Selected:    nonNil(selected),
			Query:       req.Query,
		}
		if report.Satisfied {
			solution.TotalSatisfied++
		}
		solution.Requirements[r] = report
	}
	solution.Objective = resp.Objective

	return solution
}

func nonNil(keys []entities.ItemKey) []entities.ItemKey {
	if keys == nil {
		return []entities.ItemKey{}
	}
	return keys
}
