package dto

import (
	"encoding/json"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

const (
	StatusOK         = "ok"
	StatusNoSolution = "no_solution"
)

// SolutionOutput is the wire form of a solution. A no_solution output carries only
// its status fields.
type SolutionOutput struct {
	RunID              string              `json:"run_id,omitempty"`
	Status             string              `json:"status"`
	StatusDetail       string              `json:"status_detail"`
	TotalSatisfied     int                 `json:"total_satisfied"`
	TotalCourses       int                 `json:"total_courses"`
	SelectedCourses    []string            `json:"selected_courses"`
	SelectedPlacements []string            `json:"selected_placements"`
	PerRequirement     []RequirementOutput `json:"per_requirement"`
}

// RequirementOutput is the wire form of one requirement report
type RequirementOutput struct {
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Satisfied   bool            `json:"satisfied"`
	Selected    []string        `json:"selected"`
	Query       json.RawMessage `json:"query,omitempty"`
}

// NewSolutionOutput converts a solution. Queries are echoed only when echoQuery is set.
func NewSolutionOutput(solution *entities.Solution, echoQuery bool) *SolutionOutput {
	out := &SolutionOutput{
		RunID:        solution.RunID,
		Status:       solution.StatusLabel(),
		StatusDetail: solution.Detail.String(),
	}
	if !solution.OK() {
		return out
	}

	out.TotalSatisfied = solution.TotalSatisfied
	out.TotalCourses = solution.TotalItems
	out.SelectedCourses = keyStrings(solution.SelectedCourses)
	out.SelectedPlacements = keyStrings(solution.SelectedPlacements)
	out.PerRequirement = make([]RequirementOutput, 0, len(solution.Requirements))
	for _, report := range solution.Requirements {
		req := RequirementOutput{
			Description: report.Description,
			Priority:    report.Priority,
			Satisfied:   report.Satisfied,
			Selected:    keyStrings(report.Selected),
		}
		if echoQuery && len(report.Query) > 0 {
			req.Query = report.Query
		}
		out.PerRequirement = append(out.PerRequirement, req)
	}
	return out
}

func (o SolutionOutput) MarshalJSON() ([]byte, error) {
	if o.Status != StatusOK {
		return json.Marshal(struct {
			RunID        string `json:"run_id,omitempty"`
			Status       string `json:"status"`
			StatusDetail string `json:"status_detail"`
		}{o.RunID, o.Status, o.StatusDetail})
	}
	type plain SolutionOutput
	return json.Marshal(plain(o))
}

func keyStrings(keys []entities.ItemKey) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}
