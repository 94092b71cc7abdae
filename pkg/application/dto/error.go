package dto

import (
	"errors"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

// ErrorCode classifies API errors
type ErrorCode string

const (
	ErrorCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeSolverFailure ErrorCode = "SOLVER_FAILURE"
	ErrorCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetail describes one API error
type ErrorDetail struct {
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Requirement *int      `json:"requirement,omitempty"`
	Field       string    `json:"field,omitempty"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// NewErrorResponse wraps an error detail
func NewErrorResponse(code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{Error: &ErrorDetail{Code: code, Message: message}}
}

// NewInputErrorResponse reports err, copying the requirement index and field of an
// InputError when err carries one
func NewInputErrorResponse(err error) *ErrorResponse {
	resp := NewErrorResponse(ErrorCodeInvalidInput, err.Error())
	var inputErr *entities.InputError
	if errors.As(err, &inputErr) {
		resp.Error.Field = inputErr.Field
		if inputErr.Requirement >= 0 {
			index := inputErr.Requirement
			resp.Error.Requirement = &index
		}
	}
	return resp
}
