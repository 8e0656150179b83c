package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryContractRead is a reverted or failed contract call
	CategoryContractRead ErrorCategory = "contract_read"
	// CategoryMissingReference is a lookup of an entity that does not exist yet
	CategoryMissingReference ErrorCategory = "missing_reference"
	// CategoryInvariant is a broken internal consistency rule
	CategoryInvariant ErrorCategory = "invariant"
	// CategoryStore represents persistent store errors
	CategoryStore ErrorCategory = "store"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryDecode represents raw log decoding errors
	CategoryDecode ErrorCategory = "decode"
	// CategoryConfig represents configuration errors
	CategoryConfig ErrorCategory = "config"
	// CategoryTransport represents RPC transport errors
	CategoryTransport ErrorCategory = "transport"
)

// Sentinels usable with errors.Is
var (
	ErrInvariant        = stderrors.New("invariant violation")
	ErrMissingReference = stderrors.New("missing reference")
)

// CategorizedError represents an error with a category and a stable code
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Is lets invariant and missing-reference errors match their sentinels
func (e *CategorizedError) Is(target error) bool {
	switch target {
	case ErrInvariant:
		return e.Category == CategoryInvariant
	case ErrMissingReference:
		return e.Category == CategoryMissingReference
	}
	return false
}

// NewContractReadError creates an error for a failed contract call
func NewContractReadError(contract, method string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryContractRead,
		Code:     "CONTRACT_READ_FAILED",
		Message:  fmt.Sprintf("call %s on %s failed", method, contract),
		Cause:    cause,
		Details: map[string]interface{}{
			"contract": contract,
			"method":   method,
		},
	}
}

// NewMissingReferenceError creates an error for an absent entity
func NewMissingReferenceError(kind, id string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryMissingReference,
		Code:     "MISSING_REFERENCE",
		Message:  fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]interface{}{
			"kind": kind,
			"id":   id,
		},
	}
}

// NewInvariantError creates an error for a broken consistency rule
func NewInvariantError(format string, args ...interface{}) *CategorizedError {
	return &CategorizedError{
		Category: CategoryInvariant,
		Code:     "INVARIANT_VIOLATION",
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewStoreError creates a persistent store error
func NewStoreError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryStore,
		Code:     "STORE_ERROR",
		Message:  fmt.Sprintf("store error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryCache,
		Code:     "CACHE_ERROR",
		Message:  fmt.Sprintf("cache error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewDecodeError creates a log decoding error
func NewDecodeError(event string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryDecode,
		Code:     "DECODE_ERROR",
		Message:  fmt.Sprintf("cannot decode %s", event),
		Cause:    cause,
		Details: map[string]interface{}{
			"event": event,
		},
	}
}

// NewConfigError creates a configuration error
func NewConfigError(field, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryConfig,
		Code:     "INVALID_CONFIG",
		Message:  fmt.Sprintf("invalid %s: %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewTransportError creates an RPC transport error
func NewTransportError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryTransport,
		Code:     "TRANSPORT_ERROR",
		Message:  fmt.Sprintf("rpc error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize returns the first CategorizedError in err's chain, or nil
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}
	return nil
}

// IsRetryable determines if an error is retryable.
// Contract reads are deterministic for a given block and are never retried.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryStore, CategoryCache, CategoryTransport:
		return true
	default:
		return false
	}
}

// IsInvariant reports whether err is an invariant violation
func IsInvariant(err error) bool {
	return stderrors.Is(err, ErrInvariant)
}

// IsMissingReference reports whether err is a missing-reference error
func IsMissingReference(err error) bool {
	return stderrors.Is(err, ErrMissingReference)
}
