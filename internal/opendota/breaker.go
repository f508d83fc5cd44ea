package opendota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metabuild/internal/logging"
	"metabuild/internal/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Provider is the upstream surface the caches and hero registry consume
type Provider interface {
	FetchItemConstants(ctx context.Context) (ItemConstants, error)
	FetchHeroItemPopularity(ctx context.Context, heroID int) (Popularity, error)
	FetchHeroConstants(ctx context.Context) ([]HeroConstant, error)
}

// BreakerSettings tunes the circuit breaker
type BreakerSettings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	FailureRate float64
}

// DefaultBreakerSettings allows 3 half-open probes, resets counts every minute,
// waits 2 minutes before probing and trips at 60% failures over 10+ requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "opendota-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		MinRequests: 10,
		FailureRate: 0.6,
	}
}

// BreakerClient wraps a Provider with a circuit breaker so a failing upstream
// is short-circuited and callers fall back to stale data immediately.
type BreakerClient struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreakerClient wraps next with a circuit breaker
func NewBreakerClient(next Provider, s BreakerSettings) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRate
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CircuitBreaker] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CircuitBreaker] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{next: next, cb: cb, name: s.Name}
}

// State returns the breaker state as a string
func (b *BreakerClient) State() string {
	return stateToString(b.cb.State())
}

// FetchItemConstants calls the wrapped provider through the breaker
func (b *BreakerClient) FetchItemConstants(ctx context.Context) (ItemConstants, error) {
	return castResult[ItemConstants](b.execute(func() (any, error) {
		return b.next.FetchItemConstants(ctx)
	}))
}

// FetchHeroItemPopularity calls the wrapped provider through the breaker
func (b *BreakerClient) FetchHeroItemPopularity(ctx context.Context, heroID int) (Popularity, error) {
	return castResult[Popularity](b.execute(func() (any, error) {
		return b.next.FetchHeroItemPopularity(ctx, heroID)
	}))
}

// FetchHeroConstants calls the wrapped provider through the breaker
func (b *BreakerClient) FetchHeroConstants(ctx context.Context) ([]HeroConstant, error) {
	return castResult[[]HeroConstant](b.execute(func() (any, error) {
		return b.next.FetchHeroConstants(ctx)
	}))
}

func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// castResult type-asserts a breaker result
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
