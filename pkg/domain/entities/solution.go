package entities

import (
	"encoding/json"
	"time"
)

// SolveStatus is the outcome reported by the optimizer
type SolveStatus int

const (
	StatusUnknown SolveStatus = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
	StatusModelInvalid
)

// String method for SolveStatus enum
func (s SolveStatus) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusModelInvalid:
		return "MODEL_INVALID"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name
func (s SolveStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name. Unrecognised names decode as UNKNOWN.
func (s *SolveStatus) UnmarshalText(text []byte) error {
	*s = ParseSolveStatus(string(text))
	return nil
}

// ParseSolveStatus is the inverse of String
func ParseSolveStatus(name string) SolveStatus {
	for _, status := range []SolveStatus{StatusOptimal, StatusFeasible, StatusInfeasible, StatusModelInvalid} {
		if status.String() == name {
			return status
		}
	}
	return StatusUnknown
}

// HasSolution reports whether the status carries a usable assignment
func (s SolveStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// RequirementReport describes how one requirement fared in a solution
type RequirementReport struct {
	Index       int
	Description string
	Priority    int
	Bounds      QuantityBounds
	Satisfied   bool
	Selected    []ItemKey
	Query       json.RawMessage
}

// Assigned returns the number of items credited to the requirement
func (r RequirementReport) Assigned() int {
	return len(r.Selected)
}

// Solution is the result of one allocation run. When Detail carries no solution the
// report fields are left empty.
type Solution struct {
	RunID              string
	Detail             SolveStatus
	TotalSatisfied     int
	TotalItems         int
	SelectedCourses    []ItemKey
	SelectedPlacements []ItemKey
	Requirements       []RequirementReport
	Objective          int64
	WallTime           time.Duration
	CreatedAt          time.Time
}

// OK reports whether the solution carries an assignment
func (s *Solution) OK() bool {
	return s.Detail.HasSolution()
}

// StatusLabel returns "ok" or "no_solution"
func (s *Solution) StatusLabel() string {
	if s.OK() {
		return "ok"
	}
	return "no_solution"
}
