package exchange

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 2 * time.Second
)

// RetryExecutor runs a remote call with per-error-class backoff:
//
//   - rate-limit rejections feed the breaker and back off steeply
//     (base·3^attempt + attempt·5s) before retrying;
//   - network failures back off at base·2^attempt without touching
//     the breaker;
//   - permanent exchange rejections and validation failures are never
//     retried;
//   - anything unrecognized is treated like a network failure.
//
// A success records a breaker success and returns immediately.
type RetryExecutor struct {
	breaker    *CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error // for testing
}

func NewRetryExecutor(breaker *CircuitBreaker, logger *zap.Logger) *RetryExecutor {
	return &RetryExecutor{
		breaker:    breaker,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Execute runs op up to maxRetries times. The breaker is consulted once
// up front; when open, no attempt is made at all.
func (r *RetryExecutor) Execute(ctx context.Context, endpoint string, op func() error) error {
	if err := r.breaker.Allow(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := op()
		if err == nil {
			r.breaker.RecordSuccess()
			return nil
		}
		lastErr = err

		var rateLimited *domain.RateLimitedError
		var exchangeErr *domain.ExchangeError
		var validationErr *domain.ValidationError

		switch {
		case errors.As(err, &rateLimited):
			r.breaker.RecordFailure()
			if attempt == r.maxRetries-1 {
				return &domain.RateLimitError{Endpoint: endpoint, Attempts: r.maxRetries}
			}
			delay := r.rateLimitDelay(attempt)
			r.logger.Warn("rate limited, backing off",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if serr := r.sleep(ctx, delay); serr != nil {
				return serr
			}

		case errors.As(err, &exchangeErr), errors.As(err, &validationErr):
			return err

		default:
			// Network and unexpected errors share the standard backoff.
			if attempt == r.maxRetries-1 {
				break
			}
			delay := r.networkDelay(attempt)
			r.logger.Warn("transient error, retrying",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))
			if serr := r.sleep(ctx, delay); serr != nil {
				return serr
			}
		}
	}

	var netErr *domain.NetworkError
	if errors.As(lastErr, &netErr) {
		return lastErr
	}
	return &domain.NetworkError{Endpoint: endpoint, Err: lastErr}
}

func (r *RetryExecutor) rateLimitDelay(attempt int) time.Duration {
	grow := math.Pow(3, float64(attempt))
	return time.Duration(float64(r.baseDelay)*grow) + time.Duration(attempt)*5*time.Second
}

func (r *RetryExecutor) networkDelay(attempt int) time.Duration {
	return time.Duration(float64(r.baseDelay) * math.Pow(2, float64(attempt)))
}
