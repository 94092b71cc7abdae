package entities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantityBounds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bounds  QuantityBounds
		wantErr error
	}{
		{name: "exact", bounds: ExactQuantity(2)},
		{name: "range", bounds: RangeQuantity(1, 3)},
		{name: "zero_min", bounds: RangeQuantity(0, 2)},
		{name: "inverted", bounds: RangeQuantity(3, 1), wantErr: ErrInvertedQuantity},
		{name: "negative", bounds: RangeQuantity(-1, 1), wantErr: ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestQuantityBounds_Contains(t *testing.T) {
	q := RangeQuantity(1, 2)
	assert.False(t, q.Contains(0))
	assert.True(t, q.Contains(1))
	assert.True(t, q.Contains(2))
	assert.False(t, q.Contains(3))
	assert.Equal(t, "1-2", q.String())
	assert.Equal(t, "2", ExactQuantity(2).String())
}

func TestRequirement_Candidates(t *testing.T) {
	req := Requirement{
		Groups: []CandidateGroup{
			{Limit: 1, Candidates: []ItemKey{CourseKey("A"), CourseKey("B")}},
			{Limit: 2, Candidates: []ItemKey{CourseKey("B"), PlacementKey("P1"), CourseKey("C")}},
		},
	}

	assert.Equal(t,
		[]ItemKey{CourseKey("A"), CourseKey("B"), PlacementKey("P1"), CourseKey("C")},
		req.Candidates())
}

func TestInputError(t *testing.T) {
	err := NewInputError(3, "query.quantity", ErrInvertedQuantity)
	assert.ErrorIs(t, err, ErrInvertedQuantity)
	assert.Contains(t, err.Error(), "requirement 3")

	var inputErr *InputError
	assert.True(t, errors.As(err, &inputErr))
	assert.Equal(t, 3, inputErr.Requirement)

	setErr := NewInputError(-1, "results", ErrMalformedInput)
	assert.NotContains(t, setErr.Error(), "requirement")
}

func TestSolution_StatusLabel(t *testing.T) {
	for status, want := range map[SolveStatus]string{
		StatusOptimal:      "ok",
		StatusFeasible:     "ok",
		StatusInfeasible:   "no_solution",
		StatusUnknown:      "no_solution",
		StatusModelInvalid: "no_solution",
	} {
		s := &Solution{Detail: status}
		assert.Equal(t, want, s.StatusLabel(), status.String())
	}
}
