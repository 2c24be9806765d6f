package errors

import (
	"fmt"
	"strings"
)

// Machine-readable codes carried in AppError.Code.
const (
	CodeNodeNotFound      = "NODE_NOT_FOUND"
	CodeEdgeNotFound      = "EDGE_NOT_FOUND"
	CodeDanglingReference = "DANGLING_REFERENCE"
	CodeInvalidPagination = "INVALID_PAGINATION"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeFieldValidation   = "FIELD_VALIDATION_ERROR"
	CodeBackendFailure    = "BACKEND_FAILURE"
	CodeCircuitOpen       = "CIRCUIT_OPEN"
)

// Sentinels for errors.Is comparisons.
var (
	ErrNodeNotFound      = &AppError{Type: ErrorTypeNotFound, Code: CodeNodeNotFound}
	ErrEdgeNotFound      = &AppError{Type: ErrorTypeNotFound, Code: CodeEdgeNotFound}
	ErrDanglingReference = &AppError{Type: ErrorTypeDanglingReference, Code: CodeDanglingReference}
	ErrInvalidPagination = &AppError{Type: ErrorTypeValidation, Code: CodeInvalidPagination}
)

// NodeNotFound reports a missing node by id.
func NodeNotFound(id string) *AppError {
	return NewNotFoundError(fmt.Sprintf("node %q", id)).
		WithCode(CodeNodeNotFound).
		WithDetails(map[string]interface{}{"nodeId": id})
}

// EdgeNotFound reports a missing edge. role may be empty.
func EdgeNotFound(fromID, toID, role string) *AppError {
	details := map[string]interface{}{"fromId": fromID, "toId": toID}
	resource := fmt.Sprintf("edge %s -> %s", fromID, toID)
	if role != "" {
		details["role"] = role
		resource = fmt.Sprintf("edge %s -[%s]-> %s", fromID, role, toID)
	}
	return NewNotFoundError(resource).WithCode(CodeEdgeNotFound).WithDetails(details)
}

// InvalidPagination reports a rejected skip/take value under the strict policy.
func InvalidPagination(field, value, reason string) *AppError {
	return NewValidationError(fmt.Sprintf("invalid %s %q: %s", field, value, reason)).
		WithCode(CodeInvalidPagination).
		WithDetails(map[string]interface{}{"field": field, "value": value})
}

// FieldError is a single field failure within ValidationErrors.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates field failures before they are turned into one AppError.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make([]FieldError, 0)}
}

// Add records a failure for field.
func (v *ValidationErrors) Add(field, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// ToMap groups messages by field.
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)
	for _, err := range v.Errors {
		result[err.Field] = append(result[err.Field], err.Message)
	}
	return result
}

// AsAppError returns nil when nothing failed, otherwise a VALIDATION AppError
// listing every field.
func (v *ValidationErrors) AsAppError() error {
	if !v.HasErrors() {
		return nil
	}
	fields := make(map[string]interface{}, len(v.Errors))
	for field, msgs := range v.ToMap() {
		fields[field] = msgs
	}
	return NewValidationError(v.Error()).
		WithCode(CodeFieldValidation).
		WithDetails(map[string]interface{}{"fields": fields})
}
