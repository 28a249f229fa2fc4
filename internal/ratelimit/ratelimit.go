// Package ratelimit implements DB-backed windowed counters that are safe to
// share across processes. Keys are "namespace:subject:bucket" where bucket is
// the window number since the epoch, so limits reset on window boundaries
// without any coordination.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
)

// sweepInterval throttles expired-row cleanup per process.
const sweepInterval = 10 * time.Minute

// Limiter counts events per key and window.
type Limiter struct {
	repo   *repository.RateLimitRepository
	logger *slog.Logger

	mu        sync.Mutex
	lastSweep time.Time
}

// New creates a Limiter.
func New(repo *repository.RateLimitRepository, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{repo: repo, logger: log}
}

// WindowKey builds the counter key for a subject in the window containing now.
func WindowKey(namespace, subject string, window time.Duration, now time.Time) string {
	bucket := now.Unix() / int64(window.Seconds())
	return fmt.Sprintf("%s:%s:%d", namespace, subject, bucket)
}

// windowEnd returns the expiry of the window containing now.
func windowEnd(window time.Duration, now time.Time) time.Time {
	bucket := now.Unix() / int64(window.Seconds())
	return time.Unix((bucket+1)*int64(window.Seconds()), 0)
}

// Allow bumps the counter for (namespace, subject) and reports whether the
// event is within limit. A limit of zero or below disables the check.
func (l *Limiter) Allow(ctx context.Context, namespace, subject string, limit int, window time.Duration, now time.Time) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := l.Bump(ctx, WindowKey(namespace, subject, window, now), window, now)
	if err != nil {
		return false, err
	}
	l.maybeSweep(ctx, now)
	return count <= limit, nil
}

// Bump increments the counter at key, creating or resetting the row as
// needed, and returns the new count. Insert races with another process are
// retried once.
func (l *Limiter) Bump(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	count, err := l.bumpOnce(ctx, key, window, now)
	if err == nil {
		return count, nil
	}
	// A concurrent insert or reset can fail the first pass; one retry
	// resolves it because the row now exists.
	return l.bumpOnce(ctx, key, window, now)
}

func (l *Limiter) bumpOnce(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	counter, err := l.repo.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if counter == nil {
		counter = &models.RateLimitCounter{
			Key:       key,
			Count:     1,
			ExpiresAt: windowEnd(window, now),
		}
		if err := l.repo.Create(ctx, counter); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if !counter.ExpiresAt.After(now) {
		counter.Count = 1
		counter.ExpiresAt = windowEnd(window, now)
	} else {
		counter.Count++
	}
	if err := l.repo.Save(ctx, counter); err != nil {
		return 0, err
	}
	return counter.Count, nil
}

// maybeSweep deletes expired rows at most once per sweep interval.
// Best effort: failures are logged and ignored.
func (l *Limiter) maybeSweep(ctx context.Context, now time.Time) {
	l.mu.Lock()
	if now.Sub(l.lastSweep) < sweepInterval {
		l.mu.Unlock()
		return
	}
	l.lastSweep = now
	l.mu.Unlock()

	if _, err := l.repo.DeleteExpired(ctx, now); err != nil {
		l.logger.Warn("rate limit sweep failed", slog.String("error", err.Error()))
	}
}

// Sweep removes expired counter rows immediately. Wired into the cron
// maintenance schedule.
func (l *Limiter) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return l.repo.DeleteExpired(ctx, now)
}
