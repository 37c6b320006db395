package sidecar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBreaker_DefaultsOnZeroConfig(t *testing.T) {
	b := NewBreaker(BreakerConfig{})

	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.resetAfter)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 3, ResetAfter: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.Error(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 2, ResetAfter: time.Minute})

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.State())

	// Inside the reset window the circuit stays shut.
	require.Error(t, b.Allow())

	// After the window one probe gets through; a second does not.
	b.mu.Lock()
	b.lastFailure = time.Now().Add(-2 * time.Minute)
	b.mu.Unlock()

	assert.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.Error(t, b.Allow())
}

func TestBreaker_HalfOpenOutcomes(t *testing.T) {
	trip := func() *Breaker {
		b := NewBreaker(BreakerConfig{Threshold: 1, ResetAfter: time.Minute})
		b.RecordFailure()
		b.mu.Lock()
		b.lastFailure = time.Now().Add(-2 * time.Minute)
		b.mu.Unlock()
		require.NoError(t, b.Allow())
		require.Equal(t, BreakerHalfOpen, b.State())
		return b
	}

	b := trip()
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())

	b = trip()
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
}
