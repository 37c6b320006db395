package sidecar

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current position.
type BreakerState int

const (
	// BreakerClosed lets requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen blocks requests after repeated transport failures.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the sidecar circuit breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive transport failures before the
	// circuit trips.
	Threshold int
	// ResetAfter is how long the circuit stays open before a probe is
	// allowed through.
	ResetAfter time.Duration
}

// DefaultBreakerConfig returns the defaults used when config omits them.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, ResetAfter: 30 * time.Second}
}

// Breaker guards the sidecar against hammering a dead endpoint. It trips
// on consecutive transport-level failures (TCP/DNS); HTTP-level errors do
// not count. A successful /health check closes it again.
type Breaker struct {
	mu          sync.RWMutex
	fails       int
	threshold   int
	resetAfter  time.Duration
	lastFailure time.Time
	state       BreakerState
}

// NewBreaker creates a circuit breaker with the given configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultBreakerConfig().Threshold
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = DefaultBreakerConfig().ResetAfter
	}
	return &Breaker{threshold: cfg.Threshold, resetAfter: cfg.ResetAfter, state: BreakerClosed}
}

// Allow reports whether a request may proceed. After the reset window the
// open circuit transitions to half-open and admits one probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if time.Since(b.lastFailure) > b.resetAfter {
			b.state = BreakerHalfOpen
			return nil
		}
		return fmt.Errorf("sidecar circuit open: %d consecutive failures, last %v ago",
			b.fails, time.Since(b.lastFailure).Round(time.Second))
	case BreakerHalfOpen:
		return fmt.Errorf("sidecar circuit half-open: recovery probe in flight")
	default:
		return fmt.Errorf("sidecar circuit in unknown state %v", b.state)
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = 0
	b.state = BreakerClosed
}

// RecordFailure counts a transport failure, tripping the circuit at the
// threshold. A failed half-open probe reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fails++
	b.lastFailure = time.Now()

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		return
	}
	if b.fails >= b.threshold {
		b.state = BreakerOpen
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forces the breaker closed. For tests and manual intervention.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = 0
	b.state = BreakerClosed
}
