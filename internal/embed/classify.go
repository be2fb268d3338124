package embed

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/Aman-CERP/docrag/internal/errors"
)

// statusPattern recovers HTTP status codes from provider errors that only
// carry them in the message (the OpenAI client formats them this way).
var statusPattern = regexp.MustCompile(`status(?: code)?:? (\d{3})`)

// Classify maps a provider error onto the two failure classes the adapter
// distinguishes. Systemic failures (timeouts, cancellation, transport errors,
// 429 and 5xx responses other than 500, an open circuit) become
// EmbeddingUnavailable or EmbeddingTimeout. Everything else, including a
// plain 500, is an EmbeddingItemFailure scoped to the texts of that call:
// Ollama answers 500 when one input exceeds the model context.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if de, ok := errors.As(err); ok {
		switch de.Code {
		case errors.ErrCodeEmbeddingUnavailable, errors.ErrCodeEmbeddingTimeout, errors.ErrCodeEmbeddingItemFailed:
			return err
		}
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.EmbeddingTimeout("embedding request timed out", err)
	case stderrors.Is(err, context.Canceled):
		return errors.EmbeddingUnavailable("embedding request cancelled", err)
	case stderrors.Is(err, errors.ErrCircuitOpen):
		return errors.EmbeddingUnavailable("embedding service is failing, circuit open", err)
	}

	var statusErr *HTTPStatusError
	if stderrors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode, err)
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return classifyStatus(code, err)
		}
	}

	var netErr net.Error
	var urlErr *url.Error
	if stderrors.As(err, &netErr) || stderrors.As(err, &urlErr) {
		return errors.EmbeddingUnavailable("embedding service unreachable", err)
	}

	return errors.EmbeddingItemFailure(err.Error(), err)
}

func classifyStatus(code int, err error) error {
	if code == http.StatusTooManyRequests || (code >= 500 && code != http.StatusInternalServerError) {
		return errors.EmbeddingUnavailable(
			"embedding service returned "+strconv.Itoa(code), err).
			WithDetail("status", strconv.Itoa(code))
	}
	return errors.EmbeddingItemFailure(err.Error(), err).
		WithDetail("status", strconv.Itoa(code))
}

// isSystemic reports whether a classified error from a single-text call
// should abort the operation.
func isSystemic(err error) bool {
	return errors.IsEmbeddingUnavailable(err)
}

// isAbort reports whether a failed batch must not fall back to per-item
// calls: the deadline passed, the caller cancelled or the circuit is open.
func isAbort(err error) bool {
	return errors.HasCode(err, errors.ErrCodeEmbeddingTimeout) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, errors.ErrCircuitOpen)
}
