package crawl

import (
	"context"
	"sync"
	"time"
)

// Gate enforces a minimum interval between upstream requests.
// It is shared by all workers of a run: upstreams throttle or block on
// burst traffic, so pacing is a deliberate backpressure control.
type Gate struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewGate creates a gate with the given pacing interval.
// A zero or negative interval disables pacing.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Wait blocks until the caller may proceed, or until the context is
// canceled. Concurrent callers are granted slots one interval apart.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.interval <= 0 {
		return ctx.Err()
	}

	// reserve the next slot
	g.mu.Lock()
	now := time.Now()
	next := g.last.Add(g.interval)
	if next.Before(now) {
		next = now
	}
	g.last = next
	g.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
