// Package httpsource wraps each external source's collector calls with a
// circuit breaker and bounded retry, so a failing source degrades instead of
// being hammered every cycle. It classifies failures into the transient/auth
// taxonomy of §7 and leaves classification of individual artifact errors to
// the calling collector.
package httpsource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"github.com/antigravity-dev/agencyos/internal/apperrors"
)

// Guard wraps one external source's calls with a circuit breaker and
// exponential-backoff retry. One Guard per collector.
type Guard struct {
	breaker *gobreaker.CircuitBreaker[struct{}]
	retries uint
}

// NewGuard builds a Guard named after the collector it protects. The breaker
// trips after three consecutive failures and half-opens after 30s; retries
// cap at two attempts so a single collector run stays within its timeout.
func NewGuard(name string) *Guard {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Guard{
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		retries: 2,
	}
}

// Do runs fn through the circuit breaker, retrying transient-source errors
// with exponential backoff. Auth and parse errors are not retried — they are
// classified by the caller and propagate immediately.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() (struct{}, error) {
		_, err := g.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		if err != nil {
			if apperrors.Is(err, apperrors.ErrTransientSource) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(g.retries+1),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	return err
}
