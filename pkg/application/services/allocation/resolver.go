package allocation

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
)

// ResolveRequirements turns every result of the set into a requirement with resolved
// candidate groups. Candidates missing from the catalog are registered on the way.
func ResolveRequirements(
	results []dto.RequirementResult,
	catalog repositories.ItemRepository,
) ([]*entities.Requirement, error) {
	requirements := make([]*entities.Requirement, 0, len(results))
	for i, result := range results {
		req, err := resolveRequirement(i, result, catalog)
		if err != nil {
			return nil, err
		}
		requirements = append(requirements, req)
	}
	return requirements, nil
}

func resolveRequirement(
	index int,
	result dto.RequirementResult,
	catalog repositories.ItemRepository,
) (*entities.Requirement, error) {
	spec := result.Requirement
	if spec == nil {
		return nil, entities.NewInputError(index, "requirement", fmt.Errorf("missing: %w", entities.ErrMalformedInput))
	}
	if spec.Priority == nil {
		return nil, entities.NewInputError(index, "requirement.priority", fmt.Errorf("missing: %w", entities.ErrMalformedInput))
	}

	query, err := dto.ParseQuery(spec.Query)
	if err != nil {
		return nil, entities.NewInputError(index, "requirement.query", err)
	}
	bounds, err := query.Quantity.Bounds()
	if err != nil {
		return nil, entities.NewInputError(index, "requirement.query.quantity", err)
	}

	req := &entities.Requirement{
		Index:       index,
		Description: spec.Description,
		Priority:    *spec.Priority,
		Quantity:    bounds,
		Groups:      make([]entities.CandidateGroup, 0, len(result.SelectedCourses)),
		Query:       spec.Query,
	}

	for j, entry := range result.SelectedCourses {
		keys, err := registerEntry(entry, catalog)
		if err != nil {
			return nil, entities.NewInputError(index, fmt.Sprintf("selectedCourses[%d]", j), err)
		}
		keys = lo.Uniq(keys)

		limit, err := groupLimit(query, j, len(keys))
		if err != nil {
			return nil, entities.NewInputError(index, fmt.Sprintf("requirement.query.selector[%d]", j), err)
		}
		req.Groups = append(req.Groups, entities.CandidateGroup{Limit: limit, Candidates: keys})
	}

	return req, nil
}

// groupLimit is the upper bound of the selector's own quantity, or the group size
// when the selector has none
func groupLimit(query *dto.Query, j, size int) (int, error) {
	quantity, err := query.GroupQuantity(j)
	if err != nil {
		return 0, err
	}
	if quantity == nil {
		return size, nil
	}
	bounds, err := quantity.Bounds()
	if err != nil {
		return 0, err
	}
	return bounds.Max, nil
}
