package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// AppError is the error type returned by every fallible operation in the module.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// HTTPStatus is the status the status server answers with.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is, or wraps, an AppError carrying code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// --- Constructors ---

// UnknownStage reports class names missing from the stage registry.
func UnknownStage(names ...string) *AppError {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &AppError{
		Code:       ErrCodeUnknownStage,
		Message:    fmt.Sprintf("stage class not registered: %s", strings.Join(sorted, ", ")),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"classes": sorted},
	}
}

// DuplicateStage reports a stage name registered twice.
func DuplicateStage(name string) *AppError {
	return &AppError{
		Code:       ErrCodeDuplicateStage,
		Message:    fmt.Sprintf("stage %q already exists", name),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"stage": name},
	}
}

// InvalidConfig reports a malformed configuration.
func InvalidConfig(message string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidConfig,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// InvalidParams reports stage parameters the stage rejected.
func InvalidParams(stage string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidParams,
		Message:    fmt.Sprintf("stage %q rejected its parameters", stage),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"stage": stage},
		Cause:      cause,
	}
}

// InvalidGraph reports a structural problem with the stage graph.
func InvalidGraph(message string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidGraph,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// OpenFailed reports a stage whose Open returned an error.
func OpenFailed(stage string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeOpenFailed,
		Message:    fmt.Sprintf("stage %q failed to open", stage),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"stage": stage},
		Cause:      cause,
	}
}

// PipelineRunning reports an operation only allowed while idle.
func PipelineRunning(op string) *AppError {
	return &AppError{
		Code:       ErrCodePipelineRunning,
		Message:    fmt.Sprintf("cannot %s while the pipeline is running", op),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"operation": op},
	}
}

// PipelineIdle reports an operation only allowed while running.
func PipelineIdle(op string) *AppError {
	return &AppError{
		Code:       ErrCodePipelineIdle,
		Message:    fmt.Sprintf("cannot %s while the pipeline is idle", op),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"operation": op},
	}
}

// NotFound reports a missing stage, link or other resource.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s %q not found", resource, id),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    "an unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}
