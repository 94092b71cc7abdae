package entities

import (
	"encoding/json"
	"fmt"
)

// QuantityBounds bounds the number of items credited to a requirement or group
type QuantityBounds struct {
	Min int
	Max int
}

// ExactQuantity returns bounds requiring exactly n items
func ExactQuantity(n int) QuantityBounds {
	return QuantityBounds{Min: n, Max: n}
}

// RangeQuantity returns bounds requiring between from and to items
func RangeQuantity(from, to int) QuantityBounds {
	return QuantityBounds{Min: from, Max: to}
}

// Validate rejects negative and inverted bounds
func (q QuantityBounds) Validate() error {
	if q.Min < 0 || q.Max < 0 {
		return fmt.Errorf("quantity cannot be negative, got [%d, %d]: %w", q.Min, q.Max, ErrMalformedInput)
	}
	if q.Min > q.Max {
		return fmt.Errorf("min %d exceeds max %d: %w", q.Min, q.Max, ErrInvertedQuantity)
	}
	return nil
}

// Contains reports whether n lies within the bounds
func (q QuantityBounds) Contains(n int) bool {
	return n >= q.Min && n <= q.Max
}

func (q QuantityBounds) String() string {
	if q.Min == q.Max {
		return fmt.Sprintf("%d", q.Min)
	}
	return fmt.Sprintf("%d-%d", q.Min, q.Max)
}

// CandidateGroup is one alternative set inside a requirement. At most Limit of its
// candidates may count toward the requirement.
type CandidateGroup struct {
	Limit      int
	Candidates []ItemKey
}

// Requirement is a rule demanding a bounded number of items from its candidate groups
type Requirement struct {
	Index       int
	Description string
	Priority    int
	Quantity    QuantityBounds
	Groups      []CandidateGroup
	// Query is the compiled query as received, echoed back in reports
	Query json.RawMessage
}

// Candidates returns the union of all group candidates in first-seen order
func (r *Requirement) Candidates() []ItemKey {
	seen := make(map[ItemKey]bool)
	var candidates []ItemKey
	for _, group := range r.Groups {
		for _, key := range group.Candidates {
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, key)
		}
	}
	return candidates
}
