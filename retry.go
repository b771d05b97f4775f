package awsclient

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	awserrors "github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/errors"
)

// RetryPolicy decides whether and when a failed or throttled attempt is
// re-attempted. The zero value performs no retries; DefaultRetryPolicy
// returns the configuration used when a client is built without one.
//
// Thread Safety: a policy holds no per-call state. The attempt counter and
// backoff interval are local to each invocation, so one policy instance is
// safely shared by concurrent calls.
type RetryPolicy struct {
	// InitialInterval seeds the backoff interval. The sleep after the first
	// failed attempt is the interval after one backoff step, not
	// InitialInterval itself.
	InitialInterval time.Duration

	// BackoffFactor multiplies the interval after every failed attempt
	BackoffFactor float64

	// MaxInterval caps the backoff interval
	MaxInterval time.Duration

	// MaxAttempts bounds the total number of attempts. Zero or negative
	// means unbounded; the policy never exhausts.
	MaxAttempts int

	// TransientStatusCodes are statuses retried as recoverable server or
	// network conditions
	TransientStatusCodes []int

	// ThrottlingStatusCodes are statuses retried as rate limiting. The two
	// sets overlap because some AWS services report throttling with statuses
	// that are otherwise client errors.
	ThrottlingStatusCodes []int

	// RetryStatus, when non-nil, replaces the status-code sets as the
	// decision for whether a response status is retried
	RetryStatus func(statusCode int) bool

	// RetryError, when non-nil, replaces the default decision for whether a
	// transport error is retried. Context cancellation and deadline expiry
	// are never retried regardless.
	RetryError func(err error) bool

	// sleep replaces the context-aware sleep in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the retry configuration used when the caller
// does not supply one: up to 10 attempts with exponential backoff doubling
// from 100ms up to a 30s cap, retrying the status codes AWS services are
// known to return for transient failures and throttling. 400 appears in both
// sets because some services report throttling as 400; override the sets to
// drop it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:       100 * time.Millisecond,
		BackoffFactor:         2.0,
		MaxInterval:           30 * time.Second,
		MaxAttempts:           10,
		TransientStatusCodes:  []int{400, 408, 500, 502, 503, 509},
		ThrottlingStatusCodes: []int{400, 403, 429, 502, 503, 509},
	}
}

// run invokes op until it yields a non-retryable outcome or the policy
// exhausts. Every failed attempt advances the backoff interval and sleeps,
// including the final attempt that will be abandoned; a successful attempt
// returns immediately. On exhaustion a status failure returns the last
// response as-is, while a transport failure is wrapped in a MaxAttemptsError.
func (p RetryPolicy) run(ctx context.Context, logger *slog.Logger, op func(ctx context.Context, attempt int) (*Response, error)) (*Response, error) {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	interval := p.InitialInterval
	attempt := 0
	for {
		attempt++

		resp, err := op(ctx, attempt)
		if err != nil {
			if !p.shouldRetryError(err) {
				return nil, err
			}
		} else if !p.shouldRetryStatus(resp.StatusCode()) {
			return resp, nil
		}

		exhausted := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
		interval = p.nextInterval(interval)

		if logger != nil {
			if err != nil {
				logger.DebugContext(ctx, "attempt failed with transport error",
					"attempt", attempt,
					"backoff", interval,
					"exhausted", exhausted,
					"error", err)
			} else {
				logger.DebugContext(ctx, "attempt failed with retryable status",
					"attempt", attempt,
					"backoff", interval,
					"exhausted", exhausted,
					"status", resp.StatusCode())
			}
		}

		if sleepErr := sleep(ctx, interval); sleepErr != nil {
			return nil, sleepErr
		}
		if exhausted {
			if err != nil {
				return nil, &awserrors.MaxAttemptsError{Attempts: attempt, Err: err}
			}
			return resp, nil
		}
	}
}

// shouldRetryStatus reports whether a response status is retried.
func (p RetryPolicy) shouldRetryStatus(statusCode int) bool {
	if p.RetryStatus != nil {
		return p.RetryStatus(statusCode)
	}
	return containsStatus(p.TransientStatusCodes, statusCode) ||
		containsStatus(p.ThrottlingStatusCodes, statusCode)
}

// shouldRetryError reports whether a transport error is retried.
// Context cancellation and deadline expiry abort the call, and errors the
// executor has already classified are not transport failures.
func (p RetryPolicy) shouldRetryError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var classified *awserrors.Error
	if errors.As(err, &classified) {
		return false
	}
	if p.RetryError != nil {
		return p.RetryError(err)
	}
	return true
}

// nextInterval advances the backoff interval: multiply by the factor, round,
// and cap at MaxInterval.
func (p RetryPolicy) nextInterval(current time.Duration) time.Duration {
	next := time.Duration(math.Round(p.BackoffFactor * float64(current)))
	if next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

// containsStatus reports whether codes contains statusCode.
func containsStatus(codes []int, statusCode int) bool {
	for _, c := range codes {
		if c == statusCode {
			return true
		}
	}
	return false
}

// sleepContext sleeps for d, aborting with the context error when ctx ends
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
