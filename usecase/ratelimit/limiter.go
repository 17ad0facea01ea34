// Package ratelimit enforces a persisted cooldown between repeat sends of
// the same email type (verification resend, password reset).
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vidsum/backend/repository"
)

// Cooldown keys, one per logical email action. Independent keys never share
// state.
const (
	KeyVerificationResend = "verification-resend-cooldown"
	KeyPasswordReset      = "password-reset-cooldown"
)

const DefaultWindow = 60 * time.Second

// Limiter computes the remaining cooldown for a key from the persisted
// last-sent timestamp. Expired entries are purged lazily on read.
type Limiter struct {
	store  repository.KVStore
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Limiter over the given store.
func New(store repository.KVStore, window time.Duration, logger *zap.Logger) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		store:  store,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Window returns the configured cooldown duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// CanSend reports whether the cooldown for key has elapsed.
func (l *Limiter) CanSend(ctx context.Context, key string) (bool, error) {
	remaining, err := l.Remaining(ctx, key)
	if err != nil {
		return false, err
	}
	return remaining <= 0, nil
}

// Remaining returns the seconds left on the cooldown for key, zero when the
// key is free. An expired or unreadable entry is removed on the spot.
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.logger.Warn("dropping unparsable cooldown entry", zap.String("key", key))
		return 0, l.store.Delete(ctx, key)
	}

	elapsed := l.now().Sub(time.UnixMilli(millis))
	remaining := l.window - elapsed

	// A stored timestamp ahead of the local clock would make remaining
	// exceed the window; clamp so skew can never extend the cooldown.
	if remaining > l.window {
		remaining = l.window
	}
	if remaining <= 0 {
		return 0, l.store.Delete(ctx, key)
	}
	// Ceiling, so the cooldown reads as active until the full window has
	// elapsed and the entry is purged.
	return int((remaining + time.Second - 1) / time.Second), nil
}

// Start records now as the last-sent instant for key, restarting the full
// window regardless of any prior entry.
func (l *Limiter) Start(ctx context.Context, key string) error {
	return l.store.Set(ctx, key, strconv.FormatInt(l.now().UnixMilli(), 10))
}

// Reset force-clears the cooldown for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

// Countdown invokes fn once per second with the remaining cooldown for key
// until it reaches zero or ctx is cancelled. The final invocation carries
// zero, at which point the entry has been purged.
func (l *Limiter) Countdown(ctx context.Context, key string, fn func(remaining int)) error {
	remaining, err := l.Remaining(ctx, key)
	if err != nil {
		return err
	}
	fn(remaining)
	if remaining <= 0 {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining, err = l.Remaining(ctx, key)
			if err != nil {
				return err
			}
			fn(remaining)
			if remaining <= 0 {
				return nil
			}
		}
	}
}

// FormatTime renders seconds as "M:SS" for countdown labels.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
