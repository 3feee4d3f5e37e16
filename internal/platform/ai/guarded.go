package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/circuit"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

// Guarded wraps a Provider with a per-call timeout and a circuit breaker.
// ErrNotConfigured does not count as a failure.
type Guarded struct {
	next    Provider
	breaker *circuit.Breaker
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func NewGuarded(next Provider, breaker *circuit.Breaker, timeout time.Duration, metrics *telemetry.Metrics, logger zerolog.Logger) *Guarded {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Guarded{next: next, breaker: breaker, timeout: timeout, metrics: metrics, logger: logger}
}

func (g *Guarded) Generate(ctx context.Context, prompt string) (string, error) {
	if g.breaker != nil && !g.breaker.Allow() {
		return "", fmt.Errorf("%w: circuit %s open", ErrProviderUnavailable, g.breaker.Name())
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.next.Generate(ctx, prompt)
	if errors.Is(err, ErrNotConfigured) {
		return "", err
	}
	if g.breaker == nil {
		return text, err
	}

	if err != nil {
		_, change := g.breaker.RecordFailure()
		if change.Opened {
			g.metrics.SetBreakerOpen(g.breaker.Name(), true)
			g.logger.Warn().Err(err).Str("breaker", g.breaker.Name()).Msg("ai circuit opened")
		}
		return "", err
	}

	_, change := g.breaker.RecordSuccess()
	if change.Closed {
		g.metrics.SetBreakerOpen(g.breaker.Name(), false)
		g.logger.Info().Str("breaker", g.breaker.Name()).Msg("ai circuit closed")
	}
	return text, nil
}
