package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeEmptyInput             ErrorType = "EMPTY_INPUT"
	ErrorTypeValidation             ErrorType = "VALIDATION_ERROR"
	ErrorTypeInsufficientInput      ErrorType = "INSUFFICIENT_INPUT"
	ErrorTypeUnconfigured           ErrorType = "UNCONFIGURED"
	ErrorTypeCredentialsExhausted   ErrorType = "CREDENTIALS_EXHAUSTED"
	ErrorTypeSynthesisUnavailable   ErrorType = "SYNTHESIS_UNAVAILABLE"
	ErrorTypeSynthesisRejectedInput ErrorType = "SYNTHESIS_REJECTED_INPUT"
	ErrorTypeMalformedJSON          ErrorType = "MALFORMED_JSON"
	ErrorTypeSchemaViolation        ErrorType = "SCHEMA_VIOLATION"
	ErrorTypeNoImageProduced        ErrorType = "NO_IMAGE_PRODUCED"
	ErrorTypeNotFound               ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeInternal               ErrorType = "INTERNAL_ERROR"
)

// FieldViolation is one failed check found while validating a model response.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v FieldViolation) String() string {
	if v.Field == "" {
		return v.Reason
	}
	return v.Field + ": " + v.Reason
}

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType        `json:"type"`
	Message       string           `json:"message"`
	StatusCode    int              `json:"statusCode"`
	ErrorCode     string           `json:"errorCode"`
	IsOperational bool             `json:"isOperational"`
	Recovery      string           `json:"recoverySuggestion,omitempty"`
	Violations    []FieldViolation `json:"violations,omitempty"`
	Err           error            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsRetryable determines if the operation that caused the error should be retried
// by the caller at a later point.
func (e *AppError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeCredentialsExhausted, ErrorTypeSynthesisUnavailable:
		return true
	default:
		return false
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the ErrorType of the first AppError in err's chain, or "" when there is none.
func KindOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ""
}

// NewEmptyInputError creates an error for requests that carry nothing to synthesize from (400)
func NewEmptyInputError(message string) *AppError {
	return &AppError{
		Type:          ErrorTypeEmptyInput,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     string(ErrorTypeEmptyInput),
		IsOperational: true,
		Recovery:      "Add at least one ingredient and try again.",
	}
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewInsufficientInputError creates an error for ingredient lists that cannot anchor a dish (400)
func NewInsufficientInputError(message string, errorCode string) *AppError {
	return &AppError{
		Type:          ErrorTypeInsufficientInput,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Add a protein, vegetable or grain, or list at least three ingredients.",
	}
}

// NewUnconfiguredError reports a deployment with no model credentials (503)
func NewUnconfiguredError() *AppError {
	return &AppError{
		Type:          ErrorTypeUnconfigured,
		Message:       "Culinary intelligence nodes are currently unconfigured.",
		StatusCode:    http.StatusServiceUnavailable,
		ErrorCode:     string(ErrorTypeUnconfigured),
		IsOperational: false,
		Recovery:      "Set API_KEY (and optionally API_KEY_SECONDARY) for the service.",
	}
}

// NewCredentialsExhaustedError reports that every credential failed recoverably (503)
func NewCredentialsExhaustedError(attempts int, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeCredentialsExhausted,
		Message:       fmt.Sprintf("all %d credentials failed", attempts),
		StatusCode:    http.StatusServiceUnavailable,
		ErrorCode:     string(ErrorTypeCredentialsExhausted),
		IsOperational: true,
		Recovery:      "Wait a moment or provide a new API credential.",
		Err:           err,
	}
}

// NewSynthesisUnavailableError is the caller-facing form of CREDENTIALS_EXHAUSTED (503)
func NewSynthesisUnavailableError(err error) *AppError {
	return &AppError{
		Type:          ErrorTypeSynthesisUnavailable,
		Message:       "The intelligence core is currently congested. Please try again shortly.",
		StatusCode:    http.StatusServiceUnavailable,
		ErrorCode:     string(ErrorTypeSynthesisUnavailable),
		IsOperational: true,
		Recovery:      "Wait a moment or provide a new API credential.",
		Err:           err,
	}
}

// NewSynthesisRejectedInputError is the caller-facing form of a fatal model error (422)
func NewSynthesisRejectedInputError(err error) *AppError {
	return &AppError{
		Type:          ErrorTypeSynthesisRejectedInput,
		Message:       "The model refused this request.",
		StatusCode:    http.StatusUnprocessableEntity,
		ErrorCode:     string(ErrorTypeSynthesisRejectedInput),
		IsOperational: true,
		Recovery:      "Adjust the ingredients or preferences and try again.",
		Err:           err,
	}
}

// NewMalformedJSONError reports model output that does not decode. Only the length of the
// offending text is kept.
func NewMalformedJSONError(length int, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeMalformedJSON,
		Message:       fmt.Sprintf("model returned malformed JSON (%d bytes)", length),
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     string(ErrorTypeMalformedJSON),
		IsOperational: true,
		Recovery:      "Try generating the recipe again.",
		Err:           err,
	}
}

// NewSchemaViolationError reports every violated field of a decoded recipe (502)
func NewSchemaViolationError(violations []FieldViolation) *AppError {
	reasons := make([]string, len(violations))
	for i, v := range violations {
		reasons[i] = v.String()
	}
	return &AppError{
		Type:          ErrorTypeSchemaViolation,
		Message:       "Data Integrity Error: " + strings.Join(reasons, " | "),
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     string(ErrorTypeSchemaViolation),
		IsOperational: true,
		Recovery:      "Try generating the recipe again.",
		Violations:    violations,
	}
}

// NewNoImageProducedError reports an image response without image data (502)
func NewNoImageProducedError() *AppError {
	return &AppError{
		Type:          ErrorTypeNoImageProduced,
		Message:       "the model returned no image",
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     string(ErrorTypeNoImageProduced),
		IsOperational: true,
		Recovery:      "Try a more descriptive image prompt.",
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeNotFound,
		Message:       message,
		StatusCode:    http.StatusNotFound,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewInternalError wraps an unexpected failure (500)
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInternal,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     "INTERNAL",
		IsOperational: false,
		Err:           err,
	}
}

// NewJobsUnconfiguredError reports that background image jobs need Redis (503)
func NewJobsUnconfiguredError() *AppError {
	return &AppError{
		Type:          ErrorTypeUnconfigured,
		Message:       "Background image jobs are not configured.",
		StatusCode:    http.StatusServiceUnavailable,
		ErrorCode:     "IMAGE_JOBS_UNCONFIGURED",
		IsOperational: false,
		Recovery:      "Set REDIS_URL and run the worker, or use the synchronous image endpoint.",
	}
}
