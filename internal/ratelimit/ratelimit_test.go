package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
)

func testLimiter(t *testing.T) *Limiter {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RateLimitCounter{}))
	return New(repository.NewRateLimitRepository(db), slog.New(slog.DiscardHandler))
}

func TestWindowKeyBuckets(t *testing.T) {
	now := time.Unix(7200, 0)
	key := WindowKey("auth:login", "203.0.113.9", time.Hour, now)
	assert.Equal(t, "auth:login:203.0.113.9:2", key)

	// Same window, same key.
	assert.Equal(t, key, WindowKey("auth:login", "203.0.113.9", time.Hour, time.Unix(10799, 0)))
	// Next window, new key.
	assert.NotEqual(t, key, WindowKey("auth:login", "203.0.113.9", time.Hour, time.Unix(10800, 0)))
}

func TestAllowEnforcesLimitWithinWindow(t *testing.T) {
	l := testLimiter(t)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "auth:register", "a@example.com", 3, time.Hour, now)
		require.NoError(t, err)
		assert.True(t, ok, "call %d should be allowed", i+1)
	}

	ok, err := l.Allow(ctx, "auth:register", "a@example.com", 3, time.Hour, now)
	require.NoError(t, err)
	assert.False(t, ok, "limit+1 within the window must be rejected")
}

func TestAllowResetsAfterWindow(t *testing.T) {
	l := testLimiter(t)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	ok, err := l.Allow(ctx, "auth:login", "1.2.3.4", 1, time.Hour, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "auth:login", "1.2.3.4", 1, time.Hour, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// One window later the subject is clean again.
	later := now.Add(time.Hour)
	ok, err = l.Allow(ctx, "auth:login", "1.2.3.4", 1, time.Hour, later)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBumpResetsExpiredRowInPlace(t *testing.T) {
	l := testLimiter(t)
	ctx := context.Background()
	key := "ns:subject:42"

	now := time.Unix(1000, 0)
	count, err := l.Bump(ctx, key, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = l.Bump(ctx, key, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Same key after expiry: count restarts.
	count, err = l.Bump(ctx, key, time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSweepDeletesExpiredRows(t *testing.T) {
	l := testLimiter(t)
	ctx := context.Background()
	now := time.Unix(1000, 0)

	_, err := l.Bump(ctx, "a:b:1", time.Minute, now)
	require.NoError(t, err)
	_, err = l.Bump(ctx, "a:c:1", time.Minute, now)
	require.NoError(t, err)

	deleted, err := l.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestZeroLimitDisablesCheck(t *testing.T) {
	l := testLimiter(t)
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "ns", "s", 0, time.Hour, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
