package allocation

import (
	"fmt"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
)

// NormalizeItem classifies a raw matcher item. An item carrying id, filled and
// description is a placement credit; one with codes is a course offering.
func NormalizeItem(raw dto.RawItem) (*entities.Item, error) {
	if raw.ID != nil && raw.Filled != nil && raw.Description != nil {
		return entities.NewPlacementItem(entities.PlacementCredit{
			ID:          raw.ID.String(),
			Filled:      *raw.Filled,
			Description: *raw.Description,
		})
	}
	if len(raw.Codes) > 0 {
		return entities.NewCourseItem(entities.CourseOffering{
			Codes:       raw.Codes,
			SeasonCodes: raw.SeasonCodes,
		})
	}
	return nil, fmt.Errorf("item has neither codes nor an id/filled/description triple: %w", entities.ErrUnknownItemShape)
}

// Normalize registers every item of the pool in the catalog. The first occurrence
// of a key is kept as its representative.
func Normalize(entries []dto.ItemEntry, catalog repositories.ItemRepository) error {
	for i, entry := range entries {
		if _, err := registerEntry(entry, catalog); err != nil {
			return entities.NewInputError(-1, fmt.Sprintf("allSelectedCourses[%d]", i), err)
		}
	}
	return nil
}

// registerEntry flattens entry, registers unseen items and returns the keys in order
func registerEntry(entry dto.ItemEntry, catalog repositories.ItemRepository) ([]entities.ItemKey, error) {
	raws := entry.Flatten()
	keys := make([]entities.ItemKey, 0, len(raws))
	for _, raw := range raws {
		item, err := NormalizeItem(raw)
		if err != nil {
			return nil, err
		}
		stored, _ := catalog.Register(item)
		keys = append(keys, stored.Key)
	}
	return keys, nil
}
