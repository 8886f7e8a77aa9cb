package bootstrap

import (
	"context"
	"time"

	"github.com/desertthunder/crmctl/internal/shared"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real [Sleeper].
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy bounds the attempts of one operation and spaces them out.
type RetryPolicy struct {
	Attempts  int
	Backoff   time.Duration
	Linear    bool             // wait (i+1)*Backoff after attempt i instead of a flat Backoff
	Retryable func(error) bool // nil retries connection-class errors only
	Pause     func(error) bool // nil waits before every retry
}

// PolicyFrom converts a config block into a policy that retries connection-class errors.
func PolicyFrom(cfg shared.RetryConfig) RetryPolicy {
	return RetryPolicy{Attempts: cfg.Attempts, Backoff: cfg.Backoff.Duration, Linear: cfg.Linear}
}

// FixturePolicyFrom converts a config block into the fixture policy: every failure gets another try,
// and only connection-class failures wait before it.
func FixturePolicyFrom(cfg shared.RetryConfig) RetryPolicy {
	p := PolicyFrom(cfg)
	p.Retryable = func(error) bool { return true }
	p.Pause = shared.IsConnectionError
	return p
}

// Delay returns the wait after the 0-based attempt failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Linear {
		return time.Duration(attempt+1) * p.Backoff
	}
	return p.Backoff
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return shared.IsConnectionError(err)
}

func (p RetryPolicy) pauses(err error) bool {
	if p.Pause == nil {
		return true
	}
	return p.Pause(err)
}

// RetryHooks are the side effects run between attempts, in field order.
type RetryHooks struct {
	Notify func(attempt, limit int, wait time.Duration, err error) // announce the retry
	Sleep  Sleeper                                                 // nil uses [Sleep]
	Reset  func(ctx context.Context) error                         // reopen the connection
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or the policy is exhausted.
// It returns the number of attempts made and the last error.
//
// Between attempts it notifies, sleeps when the policy pauses on the last error, then resets.
// A failed reset consumes the next attempt.
func Retry(ctx context.Context, p RetryPolicy, hooks RetryHooks, fn func(ctx context.Context, attempt int) error) (int, error) {
	sleep := hooks.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	limit := p.attempts()
	var err error
	for attempt := 0; attempt < limit; attempt++ {
		if attempt > 0 {
			wait := p.Delay(attempt - 1)
			if hooks.Notify != nil {
				hooks.Notify(attempt-1, limit, wait, err)
			}
			if p.pauses(err) {
				if serr := sleep(ctx, wait); serr != nil {
					return attempt, serr
				}
			}
			if hooks.Reset != nil {
				if rerr := hooks.Reset(ctx); rerr != nil {
					err = rerr
					if !p.retryable(err) {
						return attempt + 1, err
					}
					continue
				}
			}
		}

		err = fn(ctx, attempt)
		if err == nil {
			return attempt + 1, nil
		}
		if ctx.Err() != nil || !p.retryable(err) {
			return attempt + 1, err
		}
	}
	return limit, err
}
