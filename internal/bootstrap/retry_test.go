package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/crmctl/internal/shared"
)

// recordingSleeper records waits instead of sleeping.
type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return s.err
}

func TestRetryPolicyDelay(t *testing.T) {
	tc := []struct {
		name   string
		policy RetryPolicy
		want   []time.Duration
	}{
		{
			name:   "linear",
			policy: RetryPolicy{Attempts: 3, Backoff: 2 * time.Second, Linear: true},
			want:   []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second},
		},
		{
			name:   "flat",
			policy: RetryPolicy{Attempts: 2, Backoff: time.Second},
			want:   []time.Duration{time.Second, time.Second, time.Second},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				if got := tt.policy.Delay(i); got != want {
					t.Errorf("Delay(%d) = %s, want %s", i, got, want)
				}
			}
		})
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	connErr := errors.New("server closed the connection unexpectedly")
	policy := RetryPolicy{Attempts: 3, Backoff: 2 * time.Second, Linear: true}

	t.Run("succeeds on third attempt", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		resets := 0
		calls := 0

		attempts, err := Retry(ctx, policy, RetryHooks{
			Sleep: sleeper.Sleep,
			Reset: func(context.Context) error { resets++; return nil },
		}, func(context.Context, int) error {
			calls++
			if calls < 3 {
				return connErr
			}
			return nil
		})

		if err != nil {
			t.Fatalf("Retry() error: %v", err)
		}
		if attempts != 3 || calls != 3 {
			t.Errorf("expected 3 attempts, got attempts=%d calls=%d", attempts, calls)
		}
		if resets != 2 {
			t.Errorf("expected 2 resets, got %d", resets)
		}
		if len(sleeper.waits) != 2 || sleeper.waits[0] != 2*time.Second || sleeper.waits[1] != 4*time.Second {
			t.Errorf("expected waits [2s 4s], got %v", sleeper.waits)
		}
	})

	t.Run("non-retryable stops immediately", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		resets := 0
		boom := errors.New(`syntax error at or near "CREAT"`)

		attempts, err := Retry(ctx, policy, RetryHooks{
			Sleep: sleeper.Sleep,
			Reset: func(context.Context) error { resets++; return nil },
		}, func(context.Context, int) error { return boom })

		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if attempts != 1 || resets != 0 || len(sleeper.waits) != 0 {
			t.Errorf("expected a single attempt with no waits, got attempts=%d resets=%d waits=%v", attempts, resets, sleeper.waits)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		notified := 0

		attempts, err := Retry(ctx, policy, RetryHooks{
			Sleep:  sleeper.Sleep,
			Notify: func(int, int, time.Duration, error) { notified++ },
		}, func(context.Context, int) error { return connErr })

		if !errors.Is(err, connErr) {
			t.Fatalf("expected last error, got %v", err)
		}
		if attempts != 3 || notified != 2 {
			t.Errorf("expected 3 attempts and 2 notices, got %d and %d", attempts, notified)
		}
	})

	t.Run("failed reset consumes an attempt", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		calls := 0
		resetErr := errors.Join(shared.ErrConnection, errors.New("dial tcp: refused"))

		attempts, err := Retry(ctx, policy, RetryHooks{
			Sleep: sleeper.Sleep,
			Reset: func(context.Context) error { return resetErr },
		}, func(context.Context, int) error {
			calls++
			return connErr
		})

		if !errors.Is(err, shared.ErrConnection) {
			t.Fatalf("expected reset error, got %v", err)
		}
		if calls != 1 || attempts != 3 {
			t.Errorf("expected 1 call over 3 attempts, got calls=%d attempts=%d", calls, attempts)
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		sleeper := &recordingSleeper{err: context.Canceled}

		_, err := Retry(ctx, policy, RetryHooks{Sleep: sleeper.Sleep}, func(context.Context, int) error { return connErr })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("custom retryable", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{Attempts: 2, Retryable: func(error) bool { return true }}

		_, err := Retry(ctx, p, RetryHooks{Sleep: (&recordingSleeper{}).Sleep}, func(context.Context, int) error {
			calls++
			return errors.New("anything")
		})
		if err == nil || calls != 2 {
			t.Errorf("expected 2 calls and an error, got calls=%d err=%v", calls, err)
		}
	})

	t.Run("pause only on selected errors", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		resets := 0
		p := FixturePolicyFrom(shared.RetryConfig{Attempts: 3, Backoff: shared.Seconds(1)})

		errs := []error{errors.New("IntegrityError: deadlock detected"), connErr}
		attempts, err := Retry(ctx, p, RetryHooks{
			Sleep: sleeper.Sleep,
			Reset: func(context.Context) error { resets++; return nil },
		}, func(_ context.Context, attempt int) error {
			if attempt < len(errs) {
				return errs[attempt]
			}
			return nil
		})

		if err != nil || attempts != 3 {
			t.Fatalf("expected success on attempt 3, got attempts=%d err=%v", attempts, err)
		}
		if resets != 2 {
			t.Errorf("expected a reset before every retry, got %d", resets)
		}
		if len(sleeper.waits) != 1 || sleeper.waits[0] != time.Second {
			t.Errorf("expected a single wait after the connection error, got %v", sleeper.waits)
		}
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_, _ = Retry(ctx, RetryPolicy{}, RetryHooks{}, func(context.Context, int) error {
			calls++
			return nil
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() on cancelled ctx = %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) = %v", err)
	}
}
