package domain

import (
	"fmt"
	"time"
)

// ValidationError reports malformed caller input. It is raised before any
// network activity and is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RateLimitError reports that the exchange rejected requests for exceeding
// its rate limits, after the retry budget was exhausted.
type RateLimitError struct {
	Endpoint string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded on %s after %d attempts", e.Endpoint, e.Attempts)
}

// RateLimitedError marks a single rate-limit rejection from the wire. The
// retry executor consumes these; callers see RateLimitError once retries
// are exhausted.
type RateLimitedError struct {
	Endpoint string
}

func (e *RateLimitedError) Error() string {
	return "rate limited on " + e.Endpoint
}

// NetworkError reports a transport-level failure (connection, timeout,
// malformed response). Retryable with standard exponential backoff.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExchangeError reports a permanent business-rule rejection from the
// exchange (bad symbol, invalid order, insufficient funds). Never retried.
type ExchangeError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error on %s (code %d): %s", e.Endpoint, e.Code, e.Msg)
}

// CircuitOpenError is returned when the circuit breaker refuses a call.
// RetryIn is the time remaining until the breaker allows a trial attempt.
type CircuitOpenError struct {
	RetryIn time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open, retry in %.0fs", e.RetryIn.Seconds())
}

// MarketDataError wraps any residual failure of a market-data operation
// with the endpoint it happened on.
type MarketDataError struct {
	Endpoint string
	Err      error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data: %s: %v", e.Endpoint, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// TradingAPIError wraps any residual failure of a trading operation.
type TradingAPIError struct {
	Endpoint string
	Err      error
}

func (e *TradingAPIError) Error() string {
	return fmt.Sprintf("trading api: %s: %v", e.Endpoint, e.Err)
}

func (e *TradingAPIError) Unwrap() error { return e.Err }
