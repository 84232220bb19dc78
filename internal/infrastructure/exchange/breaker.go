package exchange

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

const (
	defaultFailureThreshold = 3
	defaultRecoveryTimeout  = 300 * time.Second
)

// CircuitBreaker gates all exchange calls. It opens after
// failureThreshold accumulated failures and rejects every call until
// recoveryTimeout has passed since the last failure; the first Allow
// after that resets the count and lets one real attempt through.
//
// Successes decrement the failure count instead of clearing it, so
// isolated failures bleed off but short bursts still trip the breaker.
type CircuitBreaker struct {
	mu           sync.Mutex
	open         bool
	failureCount int
	threshold    int
	recovery     time.Duration
	lastFailure  time.Time
	logger       *zap.Logger
	timeNow      func() time.Time // for testing
}

func NewCircuitBreaker(logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: defaultFailureThreshold,
		recovery:  defaultRecoveryTimeout,
		logger:    logger,
		timeNow:   time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns a
// CircuitOpenError carrying the time left until the trial attempt.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return nil
	}

	elapsed := cb.timeNow().Sub(cb.lastFailure)
	if elapsed < cb.recovery {
		return &domain.CircuitOpenError{RetryIn: cb.recovery - elapsed}
	}

	// Recovery window elapsed: close for a trial attempt.
	cb.open = false
	cb.failureCount = 0
	cb.logger.Info("circuit breaker closed for trial attempt")
	return nil
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailure = cb.timeNow()
	if cb.failureCount >= cb.threshold && !cb.open {
		cb.open = true
		cb.logger.Warn("circuit breaker opened",
			zap.Int("failures", cb.failureCount),
			zap.Duration("recovery", cb.recovery))
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failureCount > 0 {
		cb.failureCount--
	}
}

// Snapshot returns the current state for the status surface.
func (cb *CircuitBreaker) Snapshot() (open bool, failures int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open, cb.failureCount
}
