package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// RunBudget tracks per-tenant orchestration run counts within time windows.
type RunBudget struct {
	mu     sync.Mutex
	counts map[string]*windowCounter

	maxPerWindow int
	windowSize   time.Duration
	now          func() time.Time
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// NewRunBudget creates a budget limiter.
// maxPerWindow limits runs per tenant within windowSize.
func NewRunBudget(maxPerWindow int, windowSize time.Duration) *RunBudget {
	return &RunBudget{
		counts:       make(map[string]*windowCounter),
		maxPerWindow: maxPerWindow,
		windowSize:   windowSize,
		now:          time.Now,
	}
}

// Check returns an error if the tenant has exceeded its run budget.
func (b *RunBudget) Check(tenantID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wc, ok := b.counts[tenantID]
	if !ok || b.now().After(wc.windowEnd) {
		return nil // no window or expired window
	}
	if wc.count >= b.maxPerWindow {
		return fmt.Errorf("run budget exceeded: tenant %s (%d/%d in window)",
			tenantID, wc.count, b.maxPerWindow)
	}
	return nil
}

// Record records a started run for the tenant.
func (b *RunBudget) Record(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wc, ok := b.counts[tenantID]
	if !ok || b.now().After(wc.windowEnd) {
		b.counts[tenantID] = &windowCounter{
			count:     1,
			windowEnd: b.now().Add(b.windowSize),
		}
		return
	}
	wc.count++
}
