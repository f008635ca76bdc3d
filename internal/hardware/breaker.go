package hardware

import (
	"sync"
	"time"
)

// CircuitBreaker defaults.
const (
	defaultFailureThreshold = 3
	defaultBaseCooldown     = 60 * time.Second
	maxCooldown             = 600 * time.Second
)

// CircuitBreaker trips after a run of consecutive failures and stays open
// for a cooldown that doubles on every trip, capped at maxCooldown.
// A success, or a cooldown that has fully elapsed, resets the failure run.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold    int
	baseCooldown time.Duration
	cooldown     time.Duration
	failures     int
	openUntil    time.Time

	now func() time.Time
}

// NewCircuitBreaker builds a breaker; zero arguments select the defaults.
func NewCircuitBreaker(threshold int, baseCooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if baseCooldown <= 0 {
		baseCooldown = defaultBaseCooldown
	}
	return &CircuitBreaker{
		threshold:    threshold,
		baseCooldown: baseCooldown,
		cooldown:     baseCooldown,
		now:          time.Now,
	}
}

// IsOpen reports whether calls should be skipped. An expired open window
// resets the failure counter so the next run starts clean.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openUntil.IsZero() {
		return false
	}
	if b.now().Before(b.openUntil) {
		return true
	}
	// Cooldown elapsed: half-open, give the caller one fresh run.
	b.openUntil = time.Time{}
	b.failures = 0
	return false
}

// RecordFailure counts one failure and reports whether the breaker just
// opened.
func (b *CircuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures < b.threshold {
		return false
	}

	b.openUntil = b.now().Add(b.cooldown)
	b.cooldown *= 2
	if b.cooldown > maxCooldown {
		b.cooldown = maxCooldown
	}
	b.failures = 0
	return true
}

// RecordSuccess clears the failure run and restores the base cooldown.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.cooldown = b.baseCooldown
	b.openUntil = time.Time{}
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
