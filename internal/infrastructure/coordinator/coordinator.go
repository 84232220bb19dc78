package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

const (
	window        = 10 * time.Second
	defaultBudget = 85 // shared requests per window across all workers
)

// Budget shares per worker kind. Unknown kinds get the smallest share.
var kindShares = map[string]float64{
	"trading":  0.4,
	"scanner":  0.4,
	"analysis": 0.2,
}

// Backoff while a worker is over its share. Latency-sensitive kinds poll
// more often.
var kindBackoff = map[string]time.Duration{
	"trading":  100 * time.Millisecond,
	"scanner":  200 * time.Millisecond,
	"analysis": 500 * time.Millisecond,
}

// Coordinator arbitrates one shared exchange API budget across worker
// kinds inside the process. Each worker kind gets a fixed share of the
// trailing 10s window; RequestPermission blocks until both the kind's
// share and the global budget have room.
type Coordinator struct {
	mu      sync.Mutex
	budget  int
	workers map[string]string // id -> kind
	global  []time.Time
	byKind  map[string][]time.Time
	logger  *zap.Logger
	timeNow func() time.Time                           // for testing
	sleep   func(context.Context, time.Duration) error // for testing
	jitter  func() float64                             // for testing
}

func New(logger *zap.Logger) *Coordinator {
	return &Coordinator{
		budget:  defaultBudget,
		workers: make(map[string]string),
		byKind:  make(map[string][]time.Time),
		logger:  logger,
		timeNow: time.Now,
		sleep:   sleepCtx,
		jitter:  func() float64 { return 0.8 + 0.4*rand.Float64() },
	}
}

func (c *Coordinator) RegisterWorker(id, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.workers[id]; ok {
		return fmt.Errorf("worker %q already registered as %q", id, existing)
	}
	c.workers[id] = kind
	c.logger.Info("worker registered", zap.String("id", id), zap.String("kind", kind))
	return nil
}

func (c *Coordinator) UnregisterWorker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.workers[id]; ok {
		delete(c.workers, id)
		c.logger.Info("worker unregistered", zap.String("id", id))
	}
}

// RequestPermission blocks until the worker may issue one request, then
// records it against both the worker kind's share and the global window.
func (c *Coordinator) RequestPermission(ctx context.Context, id, category string) error {
	for {
		c.mu.Lock()
		kind, ok := c.workers[id]
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("worker %q is not registered", id)
		}

		now := c.timeNow()
		c.evict(now)

		if len(c.byKind[kind]) < c.shareFor(kind) && len(c.global) < c.budget {
			c.global = append(c.global, now)
			c.byKind[kind] = append(c.byKind[kind], now)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		backoff, ok := kindBackoff[kind]
		if !ok {
			backoff = 500 * time.Millisecond
		}
		wait := time.Duration(float64(backoff) * c.jitter())
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Coordinator) shareFor(kind string) int {
	share, ok := kindShares[kind]
	if !ok {
		share = 0.2
	}
	n := int(share * float64(c.budget))
	if n < 1 {
		n = 1
	}
	return n
}

// evict drops expired timestamps. Caller holds mu.
func (c *Coordinator) evict(now time.Time) {
	cutoff := now.Add(-window)
	c.global = pruneBefore(c.global, cutoff)
	for kind, ts := range c.byKind {
		c.byKind[kind] = pruneBefore(ts, cutoff)
	}
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

func (c *Coordinator) Stats() domain.CoordinatorStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evict(c.timeNow())

	workers := make(map[string]string, len(c.workers))
	for id, kind := range c.workers {
		workers[id] = kind
	}
	usage := make(map[string]int, len(c.byKind))
	for kind, ts := range c.byKind {
		usage[kind] = len(ts)
	}
	return domain.CoordinatorStats{
		Workers:        workers,
		WindowRequests: len(c.global),
		Budget:         c.budget,
		KindUsage:      usage,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
