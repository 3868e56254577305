package retry

import (
	"sync"
	"time"
)

// CircuitBreakerConfig tunes the per-writer consecutive-failure breaker.
type CircuitBreakerConfig struct {
	Threshold     int
	PauseDuration time.Duration
}

// DefaultCircuitBreakerConfig matches the reference defaults: trip after 10
// consecutive failures, pause for 5 minutes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:     10,
		PauseDuration: 5 * time.Minute,
	}
}

// CircuitBreaker tracks consecutive failures for a single logical queue
// (one instance per writer). It is safe for concurrent use, though in
// practice only the owning writer's single-threaded loop touches it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu                sync.Mutex
	consecutiveFails  int
	pausedUntil       time.Time
	now               func() time.Time
}

// NewCircuitBreaker builds a breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// RecordSuccess resets the consecutive-failure counter to zero.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
}

// RecordFailure increments the consecutive-failure counter and, if it has
// just reached the threshold, opens the breaker for PauseDuration.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails++
	if b.consecutiveFails >= b.cfg.Threshold {
		b.pausedUntil = b.now().Add(b.cfg.PauseDuration)
		b.consecutiveFails = 0
	}
}

// Paused reports whether the breaker is currently open (the writer should
// leave its queue untouched).
func (b *CircuitBreaker) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.pausedUntil)
}

// ConsecutiveFailures returns the current streak, for health/metrics
// reporting.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFails
}

// Healthy reports whether the consecutive-failure streak is below
// threshold.
func (b *CircuitBreaker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFails < b.cfg.Threshold
}
