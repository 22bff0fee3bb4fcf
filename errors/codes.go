package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resolution errors
const (
	// ErrCodeCycle indicates a dependency cycle in the reachable graph.
	ErrCodeCycle ErrorCode = "CYCLE"
	// ErrCodeMissingProvider indicates no provider satisfies a required type.
	ErrCodeMissingProvider ErrorCode = "MISSING_PROVIDER"
	// ErrCodeConflict indicates several providers satisfy a type and nothing picks one.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeOwnershipConflict indicates an exclusive value is moved into more than one consumer.
	ErrCodeOwnershipConflict ErrorCode = "OWNERSHIP_CONFLICT"
	// ErrCodeUnadaptable indicates no conversion exists between two wrapper forms.
	ErrCodeUnadaptable ErrorCode = "UNADAPTABLE"
)

// Execution errors
const (
	// ErrCodeConstructionFailed indicates a provider failed while a plan was executing.
	ErrCodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
)

// Request errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeUnavailable indicates the engine has no scan loaded yet.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeUnavailable: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
// Resolution failures never are: the same snapshot always fails the same way.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// IsResolutionCode reports whether code is one of the static resolution failures.
func IsResolutionCode(code ErrorCode) bool {
	switch code {
	case ErrCodeCycle, ErrCodeMissingProvider, ErrCodeConflict, ErrCodeOwnershipConflict, ErrCodeUnadaptable:
		return true
	}
	return false
}
