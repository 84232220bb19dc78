package exchange

import (
	"context"
	"sync"
	"time"
)

const (
	rateWindow     = 10 * time.Second
	rateWaitJitter = 100 * time.Millisecond
)

// Conservative requests-per-10s budgets. Market-data endpoints sit well
// below the exchange's documented caps; account endpoints are generous
// because the exchange meters them separately.
var defaultBudgets = map[string]int{
	"fetch_markets":      50,
	"fetch_ticker":       80,
	"fetch_ohlcv":        80,
	"fetch_orderbook":    80,
	"fetch_balance":      200,
	"create_order":       500,
	"cancel_order":       500,
	"fetch_order_status": 300,
	"fetch_open_orders":  200,
}

const fallbackBudget = 50

// RateLimiter admits at most budget[endpoint] requests per trailing 10s
// window, per endpoint. Admit blocks until a slot frees up; it never
// drops a request.
type RateLimiter struct {
	budgets map[string]int
	windows map[string][]time.Time
	mu      sync.Mutex
	timeNow func() time.Time                           // for testing
	sleep   func(context.Context, time.Duration) error // for testing
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithBudgets(defaultBudgets)
}

func NewRateLimiterWithBudgets(budgets map[string]int) *RateLimiter {
	return &RateLimiter{
		budgets: budgets,
		windows: make(map[string][]time.Time),
		timeNow: time.Now,
		sleep:   sleepCtx,
	}
}

func (r *RateLimiter) budgetFor(endpoint string) int {
	if b, ok := r.budgets[endpoint]; ok {
		return b
	}
	return fallbackBudget
}

// Admit blocks until the endpoint's window has a free slot, then records
// the request. Returns the context error if cancelled while waiting.
func (r *RateLimiter) Admit(ctx context.Context, endpoint string) error {
	for {
		r.mu.Lock()
		now := r.timeNow()
		window := r.evict(endpoint, now)

		if len(window) < r.budgetFor(endpoint) {
			r.windows[endpoint] = append(window, now)
			r.mu.Unlock()
			return nil
		}

		wait := rateWindow - now.Sub(window[0]) + rateWaitJitter
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// evict drops timestamps older than the trailing window. Caller holds mu.
func (r *RateLimiter) evict(endpoint string, now time.Time) []time.Time {
	window := r.windows[endpoint]
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	window = window[i:]
	r.windows[endpoint] = window
	return window
}

// WindowOccupancy reports how many requests the endpoint's trailing
// window currently holds. Exposed for the status surface.
func (r *RateLimiter) WindowOccupancy(endpoint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evict(endpoint, r.timeNow()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
