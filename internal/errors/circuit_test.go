package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail() (int, error) { return 0, errors.New("error") }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a circuit breaker with max 3 failures
	cb := NewCircuitBreaker("embeddings", WithMaxFailures(3), WithResetTimeout(time.Second))

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		_, _ = Execute(cb, fail)
	}

	// Then: circuit is open and requests are rejected without calling fn
	assert.Equal(t, StateOpen, cb.State())
	called := false
	_, err := Execute(cb, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	// Given: an open circuit with a controllable clock
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("embeddings", WithMaxFailures(2), WithResetTimeout(50*time.Millisecond))
	cb.now = func() time.Time { return now }
	for i := 0; i < 2; i++ {
		_, _ = Execute(cb, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	// When: the reset timeout elapses
	now = now.Add(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	v, err := Execute(cb, func() (int, error) { return 7, nil })

	// Then: the probe succeeds and the circuit closes
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	// Given: a half-open circuit
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("embeddings", WithMaxFailures(2), WithResetTimeout(50*time.Millisecond))
	cb.now = func() time.Time { return now }
	for i := 0; i < 2; i++ {
		_, _ = Execute(cb, fail)
	}
	now = now.Add(60 * time.Millisecond)

	// When: the probe fails
	_, err := Execute(cb, fail)

	// Then: the circuit is open again
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_TripPredicateIgnoresItemFailures(t *testing.T) {
	// Given: a breaker that only counts systemic failures
	cb := NewCircuitBreaker("embeddings", WithMaxFailures(1), WithTripPredicate(IsEmbeddingUnavailable))

	// When: an item-level failure occurs
	_, err := Execute(cb, func() (int, error) {
		return 0, EmbeddingItemFailure("bad input", nil)
	})

	// Then: the circuit stays closed
	assert.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())

	// When: a systemic failure occurs
	_, _ = Execute(cb, func() (int, error) {
		return 0, EmbeddingUnavailable("503", nil)
	})

	// Then: the circuit opens
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("embeddings", WithMaxFailures(3))
	_, _ = Execute(cb, fail)
	_, _ = Execute(cb, fail)
	require.Equal(t, 2, cb.Failures())

	_, err := Execute(cb, func() (int, error) { return 1, nil })

	assert.NoError(t, err)
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, "embeddings", cb.Name())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
