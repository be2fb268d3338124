package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocError_Error_ReturnsFormattedMessage(t *testing.T) {
	// Given: a cache corruption error
	err := New(ErrCodeCacheCorrupt, "documents.json is truncated", nil)

	// When: formatting the error
	msg := err.Error()

	// Then: code and message are both present
	assert.Equal(t, "[ERR_202_CACHE_CORRUPT] documents.json is truncated", msg)
}

func TestDocError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an error wrapping a sentinel
	sentinel := errors.New("connection refused")
	err := EmbeddingUnavailable("embedding service unreachable", sentinel)

	// Then: the sentinel is reachable through the chain
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, sentinel, errors.Unwrap(err))
}

func TestNew_DerivesCategorySeverityRetryable(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeCacheCorrupt, CategoryIO, SeverityWarning, false},
		{ErrCodeEmbeddingUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeEmbeddingTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeDimensionMismatch, CategoryValidation, SeverityError, false},
		{ErrCodeIndexState, CategoryInternal, SeverityFatal, false},
		{ErrCodeEmbeddingItemFailed, CategoryInternal, SeverityWarning, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_ReusesMessage(t *testing.T) {
	// Given: a plain error
	cause := errors.New("disk full")

	// When: wrapping it as a cache write error
	err := Wrap(ErrCodeCacheWrite, cause)

	// Then: the message is carried over and the cause preserved
	assert.Equal(t, "disk full", err.Message)
	assert.True(t, errors.Is(err, cause))
}

func TestHasCode_FindsCodeThroughFmtWrapping(t *testing.T) {
	// Given: a DocError wrapped twice with fmt.Errorf
	inner := EmbeddingUnavailable("rate limited", nil)
	outer := fmt.Errorf("ingest report.pdf: %w", fmt.Errorf("embed batch 3: %w", inner))

	// Then: code helpers see through the chain
	assert.True(t, IsEmbeddingUnavailable(outer))
	assert.True(t, IsRetryable(outer))
	assert.Equal(t, ErrCodeEmbeddingUnavailable, GetCode(outer))
	assert.Equal(t, CategoryNetwork, GetCategory(outer))
	assert.False(t, HasCode(outer, ErrCodeCacheCorrupt))
}

func TestIs_MatchesByCode(t *testing.T) {
	// Given: two distinct errors with the same code
	a := New(ErrCodeDimensionMismatch, "first", nil)
	b := DimensionMismatch(1536, 768)

	// Then: errors.Is treats them as equal
	assert.True(t, errors.Is(b, a))
}

func TestDimensionMismatch_RecordsDetails(t *testing.T) {
	err := DimensionMismatch(4, 3)

	assert.Equal(t, "4", err.Details["expected"])
	assert.Equal(t, "3", err.Details["got"])
	assert.Contains(t, err.Message, "expected 4, got 3")
}

func TestIndexStateError_IsFatal(t *testing.T) {
	err := IndexStateError("add called before train")

	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
}

func TestEmbeddingUnavailable_HasUserFacingSuggestion(t *testing.T) {
	err := EmbeddingUnavailable("breaker open", ErrCircuitOpen)

	assert.Contains(t, err.Suggestion, "temporarily unavailable")
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestHelpers_PlainErrors(t *testing.T) {
	// Given: a non-DocError
	err := errors.New("plain")

	// Then: helpers return zero values
	_, ok := As(err)
	assert.False(t, ok)
	assert.Empty(t, GetCode(err))
	assert.Empty(t, GetCategory(err))
	assert.False(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.False(t, IsConfig(err))
}

func TestAs_ReturnsOutermostDocError(t *testing.T) {
	// Given: a config error wrapping a validation error
	inner := ValidationError("chunk overlap must be smaller than chunk size", nil)
	outer := ConfigError("invalid chunking section", inner)

	// When: extracting
	de, ok := As(outer)

	// Then: the outer error is returned
	require.True(t, ok)
	assert.Equal(t, ErrCodeConfigInvalid, de.Code)
	assert.True(t, HasCode(outer, ErrCodeInvalidInput))
}

func TestIsEmbeddingUnavailable_IncludesTimeout(t *testing.T) {
	err := fmt.Errorf("query: %w", EmbeddingTimeout("deadline exceeded", nil))

	assert.True(t, IsEmbeddingUnavailable(err))
	assert.True(t, IsRetryable(err))
}
