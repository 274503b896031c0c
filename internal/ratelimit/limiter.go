// Package ratelimit provides token-bucket rate limiters for the
// upstream endpoints and per-tenant run budgets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// EndpointRates configures per-endpoint request rates (requests per second).
type EndpointRates struct {
	Orchestrate float64
	InstallData float64
	Audit       float64
}

// DefaultEndpointRates returns conservative upstream rate limits.
func DefaultEndpointRates() EndpointRates {
	return EndpointRates{
		Orchestrate: 2,
		InstallData: 5,
		Audit:       10,
	}
}

// EndpointLimiter rate-limits outbound calls per endpoint using token buckets.
type EndpointLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewEndpointLimiter creates a limiter with the given per-endpoint rates.
func NewEndpointLimiter(rates EndpointRates) *EndpointLimiter {
	limiters := map[string]*rate.Limiter{
		"Orchestrate": rate.NewLimiter(rate.Limit(rates.Orchestrate), int(rates.Orchestrate)),
		"InstallData": rate.NewLimiter(rate.Limit(rates.InstallData), int(rates.InstallData)),
		"Audit":       rate.NewLimiter(rate.Limit(rates.Audit), int(rates.Audit)),
	}
	return &EndpointLimiter{limiters: limiters}
}

// Wait blocks until a token is available for the named endpoint, or ctx is cancelled.
func (el *EndpointLimiter) Wait(ctx context.Context, endpoint string) error {
	el.mu.RLock()
	limiter, ok := el.limiters[endpoint]
	el.mu.RUnlock()
	if !ok {
		return nil // unknown endpoint = no limit
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", endpoint, err)
	}
	return nil
}
