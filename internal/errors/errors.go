// FilePath: internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDatabase    ErrorType = "database"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeAuthorize   ErrorType = "authorization"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "service_unavailable"
)

// APIError represents a structured API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	// Key is the translation key shown to the user, Placeholders fill it.
	Key          string            `json:"translation_key,omitempty"`
	Placeholders map[string]string `json:"translation_placeholders,omitempty"`
	// UpstreamStatus is the HTTP status returned by the Energy Tracker API, if any.
	UpstreamStatus int   `json:"upstream_status,omitempty"`
	err            error // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal error to errors.Is / errors.As
func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithKey sets the translation key and placeholders and refreshes the message
// from the default locale.
func (e *APIError) WithKey(key string, placeholders map[string]string) *APIError {
	e.Key = key
	e.Placeholders = placeholders
	if msg := Localize(DefaultLocale, key, placeholders); msg != "" {
		e.Message = msg
	}
	return e
}

// WithUpstreamStatus records the HTTP status the upstream API answered with
func (e *APIError) WithUpstreamStatus(status int) *APIError {
	e.UpstreamStatus = status
	return e
}

// Localized returns a copy of the error with its message rendered in the given locale
func (e *APIError) Localized(locale string) *APIError {
	cp := *e
	if e.Key != "" {
		if msg := Localize(locale, e.Key, e.Placeholders); msg != "" {
			cp.Message = msg
		}
	}
	return &cp
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeValidation,
		Message: msg,
		Code:    http.StatusBadRequest,
		err:     err,
	}
}

// NewDatabaseError creates a new database error
func NewDatabaseError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeDatabase,
		Message: msg,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// NewAuthError creates a new authentication error
func NewAuthError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeAuth,
		Message: msg,
		Code:    http.StatusUnauthorized,
		err:     err,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthorize,
		Message: msg,
		Code:    http.StatusForbidden,
		err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: msg,
		Code:    http.StatusNotFound,
		err:     err,
	}
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeRateLimit,
		Message: msg,
		Code:    http.StatusTooManyRequests,
		err:     err,
	}
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeUnavailable,
		Message: msg,
		Code:    http.StatusServiceUnavailable,
		err:     err,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeInternal,
		Message: msg,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// As returns the APIError in err's chain, if any
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	if apiErr, ok := As(err); ok {
		return apiErr.Type == t
	}
	return false
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsAuth checks if an error is an authentication or authorization error
func IsAuth(err error) bool {
	return isType(err, ErrorTypeAuth) || isType(err, ErrorTypeAuthorize)
}

// IsUnavailable checks if an error is a ServiceUnavailable error
func IsUnavailable(err error) bool {
	return isType(err, ErrorTypeUnavailable)
}

// IsTransient reports errors the caller may retry later
func IsTransient(err error) bool {
	return IsUnavailable(err) || isType(err, ErrorTypeRateLimit)
}
