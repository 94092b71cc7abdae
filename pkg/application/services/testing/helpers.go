package testing

import (
	"encoding/json"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
)

// Course builds a course entry. The first code is canonical.
func Course(codes ...string) dto.ItemEntry {
	return dto.ItemEntry{Item: &dto.RawItem{Codes: codes}}
}

// SeasonalCourse builds a course entry offered in the given season
func SeasonalCourse(season string, codes ...string) dto.ItemEntry {
	return dto.ItemEntry{Item: &dto.RawItem{Codes: codes, SeasonCodes: []string{season}}}
}

// Placement builds a filled placement credit entry
func Placement(id, description string) dto.ItemEntry {
	fid := dto.FlexibleID(id)
	filled := true
	return dto.ItemEntry{Item: &dto.RawItem{ID: &fid, Filled: &filled, Description: &description}}
}

// Group nests entries the way the matcher emits alternative sets
func Group(entries ...dto.ItemEntry) dto.ItemEntry {
	return dto.ItemEntry{Group: entries}
}

// Single is {"Single": n}
func Single(n int) *dto.Quantity {
	return &dto.Quantity{Single: &n}
}

// Many is {"Many": {"from": from, "to": to}}
func Many(from, to int) *dto.Quantity {
	return &dto.Quantity{Many: &dto.RangeSpec{From: from, To: to}}
}

// Requirement builds a result whose query has the given quantity and whose
// selectedCourses are the candidates, one group per entry
func Requirement(description string, priority int, quantity *dto.Quantity, candidates ...dto.ItemEntry) dto.RequirementResult {
	return dto.RequirementResult{
		Requirement: &dto.RequirementSpec{
			Description: description,
			Priority:    &priority,
			Query:       mustQuery(quantity, nil),
		},
		SelectedCourses: candidates,
	}
}

// WithGroupQuantities sets one selector per group; nil entries leave a group uncapped
func WithGroupQuantities(result dto.RequirementResult, quantities ...*dto.Quantity) dto.RequirementResult {
	var q struct {
		Quantity *dto.Quantity `json:"quantity"`
	}
	if err := json.Unmarshal(result.Requirement.Query, &q); err != nil {
		panic(err)
	}
	spec := *result.Requirement
	spec.Query = mustQuery(q.Quantity, quantities)
	result.Requirement = &spec
	return result
}

// Set builds a requirement set from the pool and results
func Set(pool []dto.ItemEntry, results ...dto.RequirementResult) *dto.RequirementSet {
	return &dto.RequirementSet{AllSelectedCourses: pool, Results: results}
}

// Pool is a convenience for building the allSelectedCourses list
func Pool(entries ...dto.ItemEntry) []dto.ItemEntry {
	return entries
}

func mustQuery(quantity *dto.Quantity, groups []*dto.Quantity) json.RawMessage {
	type subQuery struct {
		Quantity *dto.Quantity `json:"quantity"`
	}
	type selector struct {
		Query *subQuery `json:"Query,omitempty"`
	}
	query := struct {
		Quantity *dto.Quantity `json:"quantity"`
		Selector []selector    `json:"selector"`
	}{Quantity: quantity, Selector: []selector{}}
	for _, g := range groups {
		if g == nil {
			query.Selector = append(query.Selector, selector{})
			continue
		}
		query.Selector = append(query.Selector, selector{Query: &subQuery{Quantity: g}})
	}
	data, err := json.Marshal(query)
	if err != nil {
		panic(err)
	}
	return data
}

// SharedBaseIdentity is one requirement needing exactly one of two cross-listed
// variants of the same course
func SharedBaseIdentity() *dto.RequirementSet {
	a := Course("CPSC 365", "MATH 365")
	b := Course("MATH 365", "CPSC 365")
	return Set(Pool(a, b),
		Requirement("Algorithms", 1, Single(1), a, b),
	)
}

// ContestedCourse has two requirements competing for the only MATH2260: the
// priority 2 requirement needs it alone, the priority 1 requirement needs it with MATH2250
func ContestedCourse() *dto.RequirementSet {
	m2250 := Course("MATH2250")
	m2260 := Course("MATH2260")
	return Set(Pool(m2250, m2260),
		Requirement("Calculus sequence", 1, Single(2), m2250, m2260),
		Requirement("Multivariable", 2, Single(1), m2260),
	)
}

// OptionalRequirement has a requirement with no floor
func OptionalRequirement() *dto.RequirementSet {
	elective := Course("CPSC 480")
	return Set(Pool(elective),
		Requirement("Optional electives", 1, Many(0, 2), elective),
	)
}

// CourseOrPlacement offers a course and a placement for a requirement needing one item
func CourseOrPlacement() *dto.RequirementSet {
	course := Course("MATH 1120")
	placement := Placement("ap-calc-bc", "AP Calculus BC")
	return Set(Pool(placement, course),
		Requirement("Calculus II", 1, Single(1), placement, course),
	)
}

// TierTradeOff forces a choice between one high priority requirement and three
// lower priority ones sharing the same single course
func TierTradeOff() *dto.RequirementSet {
	a := Course("PHYS 200")
	b := Course("PHYS 201")
	c := Course("PHYS 202")
	return Set(Pool(a, b, c),
		Requirement("Physics core", 5, Single(3), a, b, c),
		Requirement("Lab A", 1, Single(1), a),
		Requirement("Lab B", 1, Single(1), b),
		Requirement("Lab C", 1, Single(1), c),
	)
}
