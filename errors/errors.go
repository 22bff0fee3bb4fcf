package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
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

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
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

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Resolution ---

// Resolution creates an AppError for a static resolution failure.
func Resolution(code ErrorCode, message string) *AppError {
	return &AppError{
		Code: code, Message: message,
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
	}
}

// Cycle creates an AppError for a dependency cycle. chain is the rendered
// cycle, first and last element equal.
func Cycle(chain []string) *AppError {
	return Resolution(ErrCodeCycle, fmt.Sprintf("dependency cycle: %s", joinChain(chain))).
		WithDetail("cycle", chain)
}

// MissingProvider creates an AppError for a type nothing provides.
func MissingProvider(typ string, chain []string) *AppError {
	err := Resolution(ErrCodeMissingProvider, fmt.Sprintf("no provider for %s", typ)).
		WithDetail("type", typ)
	if len(chain) > 0 {
		err.WithDetail("chain", chain)
	}
	return err
}

// Conflict creates an AppError for an ambiguous type.
func Conflict(typ string, qualifiers []string, chain []string) *AppError {
	err := Resolution(ErrCodeConflict, fmt.Sprintf("%d providers for %s and no hint or binding selects one", len(qualifiers), typ)).
		WithDetails(map[string]any{"type": typ, "candidates": qualifiers})
	if len(chain) > 0 {
		err.WithDetail("chain", chain)
	}
	return err
}

// --- Execution ---

// ConstructionFailed creates an AppError for a provider that failed at run time.
func ConstructionFailed(key string, step int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConstructionFailed, Message: fmt.Sprintf("constructing %s failed", key),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"key": key, "step": step}, Cause: cause,
	}
}

// --- Requests ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Unavailable creates a new AppError for an engine that has not scanned yet.
func Unavailable(reason string) *AppError {
	return &AppError{
		Code: ErrCodeUnavailable, Message: reason,
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Wrap returns err as an AppError. AppErrors anywhere in the chain are
// returned as is; anything else becomes an internal error.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func joinChain(chain []string) string {
	out := ""
	for i, s := range chain {
		if i > 0 {
			out += " -> "
		}
		out += s
	}
	return out
}
