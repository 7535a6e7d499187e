package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

// Verdict tells the executor what a failed call means.
type Verdict struct {
	Retry        bool
	CountFailure bool
}

type Classifier func(err error) Verdict

// Executor runs outbound calls with bounded retry behind a circuit breaker
// per operation name.
type Executor struct {
	policy Policy
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(policy Policy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		policy:   policy.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Run calls fn until it succeeds, the classifier refuses a retry or the
// attempts are used up. A nil classifier retries nothing.
func (e *Executor) Run(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: %s: nil call", operation)
	}
	if classify == nil {
		classify = NeverRetry
	}
	if !e.policy.Breaker.Enabled {
		return e.retry(ctx, operation, classify, fn)
	}
	_, err := e.breaker(operation, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, operation, classify, fn)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= e.policy.Attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !classify(err).Retry || attempt == e.policy.Attempts {
			return err
		}

		wait := e.policy.backoff(attempt)
		e.logger.Warn("outbound_retry",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.policy.Attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err.Error(),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	bp := e.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: bp.HalfOpenMaxCalls,
		Timeout:     bp.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bp.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).CountFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// NeverRetry counts every failure against the breaker but retries none.
func NeverRetry(err error) Verdict {
	return Verdict{Retry: false, CountFailure: !isCancellation(err)}
}

// RetryTemporary retries errors of kind domain.ErrTemporary.
func RetryTemporary(err error) Verdict {
	if isCancellation(err) {
		return Verdict{}
	}
	return Verdict{Retry: domain.IsKind(err, domain.ErrTemporary), CountFailure: true}
}

// AsTemporary marks retry-exhausted and circuit-open failures as
// domain.ErrTemporary so callers can map them to 503.
func AsTemporary(operation string, err error, classify Classifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || (classify != nil && classify(err).Retry) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
