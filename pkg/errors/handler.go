package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler turns errors into HTTP responses at the request boundary.
// With debug set, stack traces and raw messages of unclassified errors are
// returned to the client.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes err as a structured JSON error.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	status, body := h.classify(err)
	body.RequestID = requestIDFrom(r)

	fields := []zap.Field{
		zap.String("error_type", body.Type),
		zap.Int("status", status),
	}
	if body.Code != "" {
		fields = append(fields, zap.String("error_code", body.Code))
	}
	if appErr := GetAppError(err); appErr == nil {
		fields = append(fields, zap.Error(err))
	} else if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	h.log(r, status, body.Message, fields...)
	h.write(w, status, body)
}

// HandleStatus writes a bare status with message, for responses that have
// no underlying error such as unknown routes.
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := ErrorResponse{
		Error:     true,
		Type:      string(typeForStatus(status)),
		Message:   message,
		RequestID: requestIDFrom(r),
	}
	h.log(r, status, message)
	h.write(w, status, body)
}

// Middleware recovers panics raised below it and reports them as internal errors.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// classify maps err to a status and a response body. Errors outside the
// AppError taxonomy are reported as internal without leaking their text.
func (h *ErrorHandler) classify(err error) (int, ErrorResponse) {
	appErr := GetAppError(err)
	if appErr == nil {
		body := ErrorResponse{
			Error:   true,
			Type:    string(ErrorTypeInternal),
			Message: "an internal error occurred",
		}
		if h.debug {
			body.Message = err.Error()
		}
		return http.StatusInternalServerError, body
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := ErrorResponse{
		Error:   true,
		Type:    string(appErr.Type),
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}
	if h.debug && appErr.StackTrace != "" {
		details := make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			details[k] = v
		}
		details["stack_trace"] = appErr.StackTrace
		body.Details = details
	}
	return status, body
}

func (h *ErrorHandler) log(r *http.Request, status int, msg string, fields ...zap.Field) {
	level := zapcore.InfoLevel
	switch {
	case status >= 500:
		level = zapcore.ErrorLevel
	case status >= 400:
		level = zapcore.WarnLevel
	}
	if ce := h.logger.Check(level, msg); ce != nil {
		ce.Write(append(fields,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r)),
		)...)
	}
}

func (h *ErrorHandler) write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

func requestIDFrom(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

var statusTypes = map[int]ErrorType{
	http.StatusBadRequest:            ErrorTypeValidation,
	http.StatusRequestEntityTooLarge: ErrorTypeValidation,
	http.StatusUnauthorized:          ErrorTypeUnauthorized,
	http.StatusPaymentRequired:       ErrorTypeAuthorizationDenied,
	http.StatusForbidden:             ErrorTypeForbidden,
	http.StatusNotFound:              ErrorTypeNotFound,
	http.StatusMethodNotAllowed:      ErrorTypeNotFound,
	http.StatusConflict:              ErrorTypeConflict,
	http.StatusTooManyRequests:       ErrorTypeRateLimit,
	http.StatusBadGateway:            ErrorTypeExternal,
	http.StatusServiceUnavailable:    ErrorTypeUnavailable,
}

func typeForStatus(status int) ErrorType {
	if t, ok := statusTypes[status]; ok {
		return t
	}
	return ErrorTypeInternal
}
