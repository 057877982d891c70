package auth

import (
	"context"
	"errors"
	"time"

	"trailmark.org/internal/obs"
)

const (
	defaultMaxAttempts   = 5
	defaultAttemptWindow = 5 * time.Minute
	defaultLockout       = 15 * time.Minute
)

// Throttle counts failed authentication attempts per network origin
// within a sliding window and derives temporary lockouts from the same
// append-only log, so the failure history stays reconstructable.
type Throttle struct {
	attempts AttemptStore
	max      int
	window   time.Duration
	lockout  time.Duration
	now      func() time.Time
}

// ThrottleOption configures Throttle behavior.
type ThrottleOption func(*Throttle)

// WithThrottleLimits overrides threshold, window and lockout durations.
func WithThrottleLimits(maxAttempts int, window, lockout time.Duration) ThrottleOption {
	return func(t *Throttle) {
		if maxAttempts > 0 {
			t.max = maxAttempts
		}
		if window > 0 {
			t.window = window
		}
		if lockout > 0 {
			t.lockout = lockout
		}
	}
}

// WithThrottleClock overrides the time source (useful for tests).
func WithThrottleClock(fn func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewThrottle constructs a Throttle over the attempt log.
func NewThrottle(attempts AttemptStore, opts ...ThrottleOption) (*Throttle, error) {
	if attempts == nil {
		return nil, errors.New("attempt store is required")
	}
	t := &Throttle{
		attempts: attempts,
		max:      defaultMaxAttempts,
		window:   defaultAttemptWindow,
		lockout:  defaultLockout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IsLocked reports whether origin's most recent lock expiry is still in
// the future. A store failure locks (fails closed).
func (t *Throttle) IsLocked(ctx context.Context, origin string) bool {
	until, err := t.attempts.LatestLockExpiry(ctx, origin)
	if err != nil {
		return true
	}
	return until.After(t.now())
}

// RemainingLockSeconds returns how long origin stays locked, floored at 0.
func (t *Throttle) RemainingLockSeconds(ctx context.Context, origin string) int {
	until, err := t.attempts.LatestLockExpiry(ctx, origin)
	if err != nil {
		return 0
	}
	rem := until.Sub(t.now())
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

// RecordFailedAttempt appends a failure record, counts in-window failures
// and sets the lock once the threshold is reached. Two simultaneous
// failures can both observe a sub-threshold count; the over-admission is
// bounded at one attempt and the lock itself is set monotonically.
func (t *Throttle) RecordFailedAttempt(ctx context.Context, username, origin string) (bool, error) {
	now := t.now()
	failures, err := t.attempts.AppendFailure(ctx, username, origin, now, now.Add(-t.window))
	if err != nil {
		return false, err
	}
	if failures < t.max {
		return false, nil
	}
	until := now.Add(t.lockout)
	if err := t.attempts.SetLock(ctx, origin, until); err != nil {
		return false, err
	}
	obs.Lockouts.Inc()
	return true, nil
}

// RecordSuccessfulLogin appends a success record and clears the failure
// counter for origin. It deliberately does not clear an active lock: the
// lock is origin-scoped and stays until its expiry.
func (t *Throttle) RecordSuccessfulLogin(ctx context.Context, username, origin string) error {
	if err := t.attempts.AppendSuccess(ctx, username, origin, t.now()); err != nil {
		return err
	}
	return t.attempts.ClearFailures(ctx, origin)
}

// RemainingAttempts returns maxAttempts minus the in-window failure
// count, floored at 0.
func (t *Throttle) RemainingAttempts(ctx context.Context, origin string) int {
	count, err := t.attempts.CountFailuresSince(ctx, origin, t.now().Add(-t.window))
	if err != nil {
		return 0
	}
	rem := t.max - count
	if rem < 0 {
		return 0
	}
	return rem
}

// MaxAttempts returns the configured failure threshold.
func (t *Throttle) MaxAttempts() int { return t.max }

// CleanupOldAttempts purges attempt rows older than the retention
// horizon. Delete-only, safe to run concurrently with live traffic.
func (t *Throttle) CleanupOldAttempts(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := t.now().AddDate(0, 0, -retentionDays)
	return t.attempts.DeleteOlderThan(ctx, cutoff)
}
