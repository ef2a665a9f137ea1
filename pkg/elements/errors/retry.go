package errors

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Zero or negative means attempts are bounded only by Deadline.
	MaxAttempts int

	// Deadline bounds the total time spent across all attempts.
	// Zero means no deadline beyond the caller's context.
	Deadline time.Duration

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool
}

// DefaultRetry is the standard retry configuration for short metadata
// and database calls.
var DefaultRetry = RetryConfig{
	MaxAttempts:    5,
	Deadline:       10 * time.Second,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// RetryResult contains the result of a retry operation.
type RetryResult[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent retrying.
	Duration time.Duration
}

// WithRetryContext executes a function with retries, respecting context
// cancellation and the configured deadline. Running out of the deadline
// yields a *TimeoutError wrapping the last attempt's error.
func WithRetryContext[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(context.Context) (T, error),
) RetryResult[T] {
	start := time.Now()
	backoff := cfg.InitialBackoff
	var lastErr error

	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		if cfg.Deadline <= 0 {
			maxAttempts = 1
		} else {
			maxAttempts = math.MaxInt
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Check context before each attempt
		if err := ctx.Err(); err != nil {
			return RetryResult[T]{
				Err:      contextFailure(cfg, err, lastErr, "context done"),
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return RetryResult[T]{
				Value:    result,
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		lastErr = err

		if !isRetryable(err) {
			return RetryResult[T]{
				Err: &CategorizedError{
					Err:      err,
					Category: Categorize(err),
					Retries:  attempt + 1,
				},
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		// Don't sleep after the last attempt
		if attempt < maxAttempts-1 {
			sleepDuration := calculateBackoff(backoff, cfg.Jitter)
			timer := time.NewTimer(sleepDuration)
			select {
			case <-ctx.Done():
				timer.Stop()
				return RetryResult[T]{
					Err:      contextFailure(cfg, ctx.Err(), lastErr, "context done during backoff"),
					Attempts: attempt + 1,
					Duration: time.Since(start),
				}
			case <-timer.C:
			}

			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	return RetryResult[T]{
		Err: &CategorizedError{
			Err:      lastErr,
			Category: Categorize(lastErr),
			Retries:  maxAttempts,
			Context:  "max retries exceeded",
		},
		Attempts: maxAttempts,
		Duration: time.Since(start),
	}
}

// contextFailure converts a finished context into the error surfaced to callers.
// Deadlines become TimeoutErrors; cancellation stays permanent.
func contextFailure(cfg RetryConfig, ctxErr, lastErr error, op string) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &TimeoutError{
			Operation: op,
			Duration:  cfg.Deadline.String(),
			Err:       lastErr,
		}
	}
	return &CategorizedError{Err: ctxErr, Category: CategoryPermanent, Context: op}
}

// calculateBackoff returns the backoff duration with jitter applied.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}

	// Calculate jitter: base +/- (base * jitter * random)
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}

// errNotYet is returned by Poll conditions that are not satisfied yet.
var errNotYet = errors.New("condition not met")

// Poll re-evaluates cond every interval until it reports true, returns an
// error, or timeout elapses. Exceeding the timeout yields a *TimeoutError
// naming operation.
func Poll(ctx context.Context, operation string, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	cfg := RetryConfig{
		Deadline:       timeout,
		InitialBackoff: interval,
		MaxBackoff:     interval,
		BackoffFactor:  1,
		RetryableFunc: func(err error) bool {
			return errors.Is(err, errNotYet)
		},
	}
	result := WithRetryContext(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		ok, err := cond(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	})
	if result.Err == nil {
		return nil
	}
	var timeoutErr *TimeoutError
	if errors.As(result.Err, &timeoutErr) || errors.Is(result.Err, context.DeadlineExceeded) {
		return &TimeoutError{Operation: operation, Duration: timeout.String()}
	}
	var catErr *CategorizedError
	if errors.As(result.Err, &catErr) && catErr.Err != nil {
		return catErr.Err
	}
	return result.Err
}
