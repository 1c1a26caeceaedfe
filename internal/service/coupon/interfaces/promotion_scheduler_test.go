package interfaces

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingIssuer struct {
	calls int
	err   error
}

func (i *countingIssuer) EnsureDailyPromotion(context.Context) (bool, error) {
	i.calls++
	return i.err == nil, i.err
}

type countingLocker struct {
	acquired, released int
	err                error
}

func (l *countingLocker) Acquire(context.Context, string) (func() error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() error { l.released++; return nil }, nil
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("17:00")
	require.NoError(t, err)
	assert.Equal(t, 17*time.Hour, d)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestPromotionScheduler_Tick(t *testing.T) {
	issuer, locker := &countingIssuer{}, &countingLocker{}
	s := NewPromotionScheduler(issuer, locker, 17*time.Hour, time.UTC, time.Minute)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 16, 59, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }
	assert.False(t, s.Tick(ctx), "before batch time")
	assert.Zero(t, issuer.calls)

	now = time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)

	now = now.Add(time.Hour)
	assert.False(t, s.Tick(ctx), "already handled today")
	assert.Equal(t, 1, issuer.calls)

	now = time.Date(2024, 3, 2, 17, 30, 0, 0, time.UTC)
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, 2, issuer.calls)
}

func TestPromotionScheduler_RetriesAfterFailure(t *testing.T) {
	issuer, locker := &countingIssuer{err: errors.New("db down")}, &countingLocker{}
	s := NewPromotionScheduler(issuer, locker, 0, time.UTC, time.Minute)
	s.clock = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	assert.False(t, s.Tick(ctx))
	issuer.err = nil
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, 2, issuer.calls)
}

func TestPromotionScheduler_SkipsWhenLockUnavailable(t *testing.T) {
	issuer := &countingIssuer{}
	s := NewPromotionScheduler(issuer, &countingLocker{err: context.DeadlineExceeded}, 0, time.UTC, time.Minute)
	s.clock = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	assert.False(t, s.Tick(context.Background()))
	assert.Zero(t, issuer.calls)
}
