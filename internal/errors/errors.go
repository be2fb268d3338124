package errors

import (
	stderrors "errors"
	"fmt"
)

// DocError is the structured error type for docrag.
// It carries enough context for logging, retry decisions and CLI presentation.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_202_CACHE_CORRUPT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches another DocError by code, so errors.Is(err, errors.New(code, "", nil)) works.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a DocError. Category, severity and the retryable flag are derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error, reusing its message.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error (invalid chunking parameters, unknown provider, ...).
func ConfigError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a file access error.
func IOError(message string, cause error) *DocError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *DocError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DocError {
	return New(ErrCodeInternal, message, cause)
}

// EmbeddingUnavailable reports a systemic failure of the embedding capability.
func EmbeddingUnavailable(message string, cause error) *DocError {
	return New(ErrCodeEmbeddingUnavailable, message, cause).
		WithSuggestion("Retrieval is temporarily unavailable. Check the embedding service and try again.")
}

// EmbeddingTimeout reports an embedding call that exceeded its deadline.
func EmbeddingTimeout(message string, cause error) *DocError {
	return New(ErrCodeEmbeddingTimeout, message, cause).
		WithSuggestion("Retrieval is temporarily unavailable. The embedding service did not answer in time.")
}

// EmbeddingItemFailure reports an isolated per-text embedding failure.
func EmbeddingItemFailure(message string, cause error) *DocError {
	return New(ErrCodeEmbeddingItemFailed, message, cause)
}

// CacheCorrupt reports a cache entry that exists but cannot be parsed.
func CacheCorrupt(message string, cause error) *DocError {
	return New(ErrCodeCacheCorrupt, message, cause)
}

// IndexStateError reports a vector index state machine violation, such as add before train.
func IndexStateError(message string) *DocError {
	return New(ErrCodeIndexState, message, nil)
}

// DimensionMismatch reports a vector whose length differs from the index dimension.
func DimensionMismatch(expected, got int) *DocError {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got), nil).
		WithDetail("expected", fmt.Sprint(expected)).
		WithDetail("got", fmt.Sprint(got))
}

// As finds the first DocError in err's chain.
func As(err error) (*DocError, bool) {
	var de *DocError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any DocError in err's chain has the given code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &DocError{Code: code})
}

// IsEmbeddingUnavailable reports whether err is a systemic embedding failure,
// timeouts included.
func IsEmbeddingUnavailable(err error) bool {
	return HasCode(err, ErrCodeEmbeddingUnavailable) || HasCode(err, ErrCodeEmbeddingTimeout)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return HasCode(err, ErrCodeConfigInvalid)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if de, ok := As(err); ok {
		return de.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if de, ok := As(err); ok {
		return de.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a DocError.
func GetCode(err error) string {
	if de, ok := As(err); ok {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a DocError.
func GetCategory(err error) Category {
	if de, ok := As(err); ok {
		return de.Category
	}
	return ""
}
