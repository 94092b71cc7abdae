package entities

import (
	"fmt"
	"strings"
)

// ItemKind distinguishes the two kinds of fulfillment items
type ItemKind int

const (
	CourseItem ItemKind = iota
	PlacementItem
)

// String method for ItemKind enum
func (k ItemKind) String() string {
	switch k {
	case CourseItem:
		return "Course"
	case PlacementItem:
		return "Placement"
	default:
		return "Unknown"
	}
}

const placementKeyPrefix = "placement:"

// ItemKey is the canonical identity of an item. The kind is part of the key, so
// course codes and placement ids never collide.
type ItemKey struct {
	Kind ItemKind
	ID   string
}

// CourseKey returns the key of a course offering with the given primary code
func CourseKey(code string) ItemKey {
	return ItemKey{Kind: CourseItem, ID: normalizeCode(code)}
}

// PlacementKey returns the key of a placement credit
func PlacementKey(id string) ItemKey {
	return ItemKey{Kind: PlacementItem, ID: strings.TrimSpace(id)}
}

// String renders course keys as their code and placement keys as "placement:<id>"
func (k ItemKey) String() string {
	if k.Kind == PlacementItem {
		return placementKeyPrefix + k.ID
	}
	return k.ID
}

// BaseIdentity is the season-independent identity shared by cross-listed variants
// of the same underlying course. The catalog assigns it, see
// repositories.ItemRepository.BaseIdentity.
type BaseIdentity string

// CourseOffering is a course as emitted by the matcher. Codes[0] is canonical.
type CourseOffering struct {
	Codes       []string
	SeasonCodes []string
}

// PlacementCredit is a granted credit placement
type PlacementCredit struct {
	ID          string
	Filled      bool
	Description string
}

// Item is a fulfillment item: exactly one of Course or Placement is set, matching Kind
type Item struct {
	Key       ItemKey
	Kind      ItemKind
	Course    *CourseOffering
	Placement *PlacementCredit
}

// NewCourseItem creates a validated course item
func NewCourseItem(offering CourseOffering) (*Item, error) {
	if len(offering.Codes) == 0 {
		return nil, fmt.Errorf("course offering has no codes: %w", ErrUnknownItemShape)
	}
	codes := make([]string, 0, len(offering.Codes))
	for _, code := range offering.Codes {
		code = normalizeCode(code)
		if code == "" {
			return nil, fmt.Errorf("course offering has an empty code: %w", ErrMalformedInput)
		}
		codes = append(codes, code)
	}
	offering.Codes = codes

	return &Item{
		Key:    CourseKey(codes[0]),
		Kind:   CourseItem,
		Course: &offering,
	}, nil
}

// NewPlacementItem creates a validated placement item
func NewPlacementItem(placement PlacementCredit) (*Item, error) {
	placement.ID = strings.TrimSpace(placement.ID)
	if placement.ID == "" {
		return nil, fmt.Errorf("placement credit has an empty id: %w", ErrMalformedInput)
	}
	return &Item{
		Key:       PlacementKey(placement.ID),
		Kind:      PlacementItem,
		Placement: &placement,
	}, nil
}

// IsPlacement reports whether the item is a placement credit
func (i *Item) IsPlacement() bool {
	return i.Kind == PlacementItem
}

// normalizeCode trims and collapses inner whitespace so "MATH  2250 " keys as "MATH 2250"
func normalizeCode(code string) string {
	return strings.Join(strings.Fields(code), " ")
}
