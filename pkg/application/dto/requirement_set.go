package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

// RequirementSet is one object emitted by the matcher: the pool of matched items
// and, per requirement, the candidates it accepts
type RequirementSet struct {
	AllSelectedCourses []ItemEntry         `json:"allSelectedCourses"`
	Results            []RequirementResult `json:"results"`
}

// RequirementResult pairs a compiled requirement with its matched candidates
type RequirementResult struct {
	Requirement     *RequirementSpec `json:"requirement"`
	SelectedCourses []ItemEntry      `json:"selectedCourses"`
}

// RequirementSpec is the compiled requirement. Query is kept raw so it can be echoed.
type RequirementSpec struct {
	Description string          `json:"description"`
	Priority    *int            `json:"priority"`
	Query       json.RawMessage `json:"query"`
}

// Query is the part of the compiled query the allocator reads
type Query struct {
	Quantity *Quantity         `json:"quantity"`
	Selector []json.RawMessage `json:"selector"`
}

// ParseQuery decodes the raw compiled query
func ParseQuery(raw json.RawMessage) (*Query, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("query is missing: %w", entities.ErrMalformedInput)
	}
	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("query: %v: %w", err, entities.ErrMalformedInput)
	}
	return &q, nil
}

type selectorQuery struct {
	Query *struct {
		Quantity *Quantity `json:"quantity"`
	} `json:"Query"`
}

// GroupQuantity returns the quantity attached to selector entry j, if any.
// Entries that are not sub-queries carry no quantity.
func (q *Query) GroupQuantity(j int) (*Quantity, error) {
	if j < 0 || j >= len(q.Selector) {
		return nil, nil
	}
	raw := bytes.TrimSpace(q.Selector[j])
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var sel selectorQuery
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, fmt.Errorf("selector[%d]: %v: %w", j, err, entities.ErrMalformedInput)
	}
	if sel.Query == nil {
		return nil, nil
	}
	return sel.Query.Quantity, nil
}

// Quantity is either {"Single": n} or {"Many": {"from": a, "to": b}}
type Quantity struct {
	Single *int       `json:"Single,omitempty"`
	Many   *RangeSpec `json:"Many,omitempty"`
}

// RangeSpec is an inclusive range of counts
type RangeSpec struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Bounds converts the quantity to validated bounds
func (q *Quantity) Bounds() (entities.QuantityBounds, error) {
	var bounds entities.QuantityBounds
	switch {
	case q == nil:
		return bounds, fmt.Errorf("quantity is missing: %w", entities.ErrMalformedInput)
	case q.Single != nil && q.Many != nil:
		return bounds, fmt.Errorf("quantity sets both Single and Many: %w", entities.ErrMalformedInput)
	case q.Single != nil:
		bounds = entities.ExactQuantity(*q.Single)
	case q.Many != nil:
		bounds = entities.RangeQuantity(q.Many.From, q.Many.To)
	default:
		return bounds, fmt.Errorf("quantity sets neither Single nor Many: %w", entities.ErrMalformedInput)
	}
	if err := bounds.Validate(); err != nil {
		return bounds, err
	}
	return bounds, nil
}

// ItemEntry is a single item or a group of entries, as the matcher nests them
type ItemEntry struct {
	Item  *RawItem
	Group []ItemEntry
}

func (e *ItemEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		e.Item = nil
		return json.Unmarshal(trimmed, &e.Group)
	}
	var item RawItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return err
	}
	e.Item, e.Group = &item, nil
	return nil
}

func (e ItemEntry) MarshalJSON() ([]byte, error) {
	if e.Item != nil {
		return json.Marshal(e.Item)
	}
	if e.Group == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.Group)
}

// Flatten returns the items of the entry depth-first, in order
func (e ItemEntry) Flatten() []RawItem {
	if e.Item != nil {
		return []RawItem{*e.Item}
	}
	var items []RawItem
	for _, child := range e.Group {
		items = append(items, child.Flatten()...)
	}
	return items
}

// RawItem is an item as emitted by the matcher. Presence of fields decides its kind,
// so every field is optional here.
type RawItem struct {
	Codes       []string    `json:"codes,omitempty"`
	SeasonCodes []string    `json:"season_codes,omitempty"`
	ID          *FlexibleID `json:"id,omitempty"`
	Filled      *bool       `json:"filled,omitempty"`
	Description *string     `json:"description,omitempty"`
}

// FlexibleID accepts JSON strings and numbers
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string {
	return strings.TrimSpace(string(f))
}
