package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies an AppError for clients and logs.
type ErrorType string

const (
	// Request errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"

	// Domain outcomes surfaced to the user
	ErrorTypeAuthorizationDenied ErrorType = "AUTHORIZATION_DENIED"
	ErrorTypeAnalysis            ErrorType = "ANALYSIS"
	ErrorTypeNoContent           ErrorType = "NO_CONTENT"

	// Infrastructure errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeDatabase    ErrorType = "DATABASE"
	ErrorTypeStorage     ErrorType = "STORAGE"
	ErrorTypeExternal    ErrorType = "EXTERNAL"
)

// ReasonUsageLimitExceeded is the only reason the ledger denies a request.
const ReasonUsageLimitExceeded = "usage_limit_exceeded"

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails merges details into the error
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 24
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return sb.String()
}

func newError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error. It is also returned for
// records that exist but belong to another account.
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newError(ErrorTypeForbidden, http.StatusForbidden, message)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return newError(ErrorTypeRateLimit, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window))
}

// NewAuthorizationDeniedError reports that the account has no quota left.
// Clients render it as an upgrade prompt; usage carries the counters shown
// alongside it.
func NewAuthorizationDeniedError(reason string, usage map[string]interface{}) *AppError {
	if reason == "" {
		reason = ReasonUsageLimitExceeded
	}
	err := newError(ErrorTypeAuthorizationDenied, http.StatusPaymentRequired,
		"usage limit reached, upgrade your plan or configure your own API key")
	err.Code = reason
	if usage != nil {
		err.WithDetails(usage)
	}
	return err
}

// NewAnalysisError reports a vendor response that could not be turned into
// structured content.
func NewAnalysisError(message string, cause error) *AppError {
	err := newError(ErrorTypeAnalysis, http.StatusUnprocessableEntity, message)
	err.Cause = cause
	return err
}

// NewAnalysisTransportError reports a failure to reach the analysis vendor.
func NewAnalysisTransportError(cause error) *AppError {
	err := newError(ErrorTypeAnalysis, http.StatusBadGateway, "analysis service request failed")
	err.Code = "analysis_transport"
	err.Cause = cause
	return err
}

// NewNoContentError reports an export request with nothing to render.
func NewNoContentError() *AppError {
	return newError(ErrorTypeNoContent, http.StatusUnprocessableEntity,
		"project has no analyzed whiteboard content to export")
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service))
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	e := newError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation))
	e.Cause = err
	return e
}

// NewStorageError creates an object storage error
func NewStorageError(operation string, err error) *AppError {
	e := newError(ErrorTypeStorage, http.StatusInternalServerError,
		fmt.Sprintf("storage operation '%s' failed", operation))
	e.Cause = err
	return e
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	e := newError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service))
	e.Cause = err
	return e
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool            { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool          { return IsType(err, ErrorTypeValidation) }
func IsConflict(err error) bool            { return IsType(err, ErrorTypeConflict) }
func IsUnauthorized(err error) bool        { return IsType(err, ErrorTypeUnauthorized) }
func IsForbidden(err error) bool           { return IsType(err, ErrorTypeForbidden) }
func IsAuthorizationDenied(err error) bool { return IsType(err, ErrorTypeAuthorizationDenied) }
func IsAnalysis(err error) bool            { return IsType(err, ErrorTypeAnalysis) }
func IsNoContent(err error) bool           { return IsType(err, ErrorTypeNoContent) }

// Wrap adds context to an error. Non-AppErrors become internal errors.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
