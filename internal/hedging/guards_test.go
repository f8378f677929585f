package hedging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

func TestLocalLocks(t *testing.T) {
	now := testNow
	l := NewLocalLocks()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	unlock, err := l.Acquire(ctx, "market:m1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "market:m1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := l.Acquire(ctx, "market:m2", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Acquire(ctx, "market:m1", time.Minute)
	require.NoError(t, err)

	// Lapsed holders cannot release a newer holder.
	now = now.Add(2 * time.Minute)
	newer, err := l.Acquire(ctx, "market:m1", time.Minute)
	require.NoError(t, err)
	again()
	assert.True(t, l.Held("market:m1"))
	newer()
	assert.False(t, l.Held("market:m1"))
}

func TestSingleFlight(t *testing.T) {
	var s singleFlight
	require.True(t, s.tryEnter())
	assert.False(t, s.tryEnter())
	s.exit()
	assert.True(t, s.tryEnter())
}
