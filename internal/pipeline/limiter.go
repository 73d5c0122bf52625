package pipeline

import (
	"context"
	"sync"
	"time"
)

// hostLimiter enforces a minimum interval between successive fetches to the
// same host. Each host hands out start slots; a worker sleeps until its
// slot. Distinct hosts never wait on each other.
type hostLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	next map[string]time.Time
}

func newHostLimiter(interval time.Duration) *hostLimiter {
	return &hostLimiter{interval: interval, next: make(map[string]time.Time)}
}

// wait blocks until the host's next slot, honoring context cancellation.
func (l *hostLimiter) wait(ctx context.Context, host string) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next[host]
	if slot.Before(now) {
		slot = now
	}
	l.next[host] = slot.Add(l.interval)
	l.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
