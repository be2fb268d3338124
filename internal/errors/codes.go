// Package errors provides structured error handling for docrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and cache errors
//   - 3XX: Embedding service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk and cache errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates embedding service errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates a contract violation; abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// IO and cache errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCacheCorrupt = "ERR_202_CACHE_CORRUPT"
	ErrCodeCacheWrite   = "ERR_203_CACHE_WRITE"
	ErrCodeCatalog      = "ERR_204_CATALOG"

	// Embedding service errors (300-399)
	ErrCodeEmbeddingUnavailable = "ERR_301_EMBEDDING_UNAVAILABLE"
	ErrCodeEmbeddingTimeout     = "ERR_302_EMBEDDING_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput        = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch   = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeUnsupportedDocument = "ERR_403_UNSUPPORTED_DOCUMENT"
	ErrCodeDocumentNotFound    = "ERR_404_DOCUMENT_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeEmbeddingItemFailed = "ERR_502_EMBEDDING_ITEM_FAILED"
	ErrCodeIndexState          = "ERR_503_INDEX_STATE"
	ErrCodeIndexFailed         = "ERR_504_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_301_..." -> '3'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexState:
		return SeverityFatal
	case ErrCodeCacheCorrupt, ErrCodeEmbeddingItemFailed, ErrCodeCatalog:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingUnavailable, ErrCodeEmbeddingTimeout:
		return true
	default:
		return false
	}
}
