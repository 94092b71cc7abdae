package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks input that is missing required fields or has the wrong shape
	ErrMalformedInput = errors.New("malformed input")
	// ErrInvertedQuantity marks a quantity whose minimum exceeds its maximum
	ErrInvertedQuantity = errors.New("inverted quantity bounds")
	// ErrUnknownItemShape marks an item that is neither a course nor a placement
	ErrUnknownItemShape = errors.New("unknown item shape")
	// ErrSolverFailure marks a crash or unavailability of the optimizer
	ErrSolverFailure = errors.New("solver failure")
	// ErrObjectiveOverflow marks an objective whose weights do not fit in int64
	ErrObjectiveOverflow = errors.New("objective weights overflow int64")
)

// InputError reports malformed input together with the offending requirement
type InputError struct {
	// Requirement is the index into results, or -1 for set-level problems
	Requirement int
	Field       string
	Err         error
}

func (e *InputError) Error() string {
	if e.Requirement < 0 {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("requirement %d: invalid %s: %v", e.Requirement, e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError wraps err with the requirement index and field it concerns
func NewInputError(requirement int, field string, err error) *InputError {
	return &InputError{Requirement: requirement, Field: field, Err: err}
}
