// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metrics"
)

// breakerProvider guards a provider with a circuit breaker. An open
// circuit turns attempts into instant misses, so a dead provider costs
// nothing per tick while the chain falls through to the next one.
type breakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[*Result]
}

func withBreaker(inner Provider) Provider {
	name := inner.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,               // one probe in half-open
		Interval:    time.Minute,     // reset counts while closed
		Timeout:     2 * time.Minute, // open -> half-open

		// Open after 5 consecutive failures; a cover provider is polled
		// rarely enough that ratio-based tripping would react too slowly.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cover provider circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &breakerProvider{inner: inner, cb: cb}
}

func (b *breakerProvider) Name() string { return b.inner.Name() }

func (b *breakerProvider) Attempt(ctx context.Context, req *Request) (*Result, error) {
	result, err := b.cb.Execute(func() (*Result, error) {
		return b.inner.Attempt(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// The chain treats an open circuit as a clean miss.
		return nil, nil
	}
	return result, err
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
