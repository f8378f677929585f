package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// testClient connects to POLYHEDGE_TEST_REDIS_ADDR under a throwaway prefix.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("POLYHEDGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POLYHEDGE_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{Addr: addr, KeyPrefix: "polyhedge-test-" + uuid.NewString()[:8]})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Key(t *testing.T) {
	assert.Equal(t, "ph:lock:market:0x1", Wrap(nil, "ph:").key("lock", "market:0x1"))
	assert.Equal(t, "market:token:9", Wrap(nil, "").key("market", "token", "9"))
}

func TestLockManager_Exclusive(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()
	key := domain.MarketLockKey("0xabc")

	release, err := lm.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, key, 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	release()
	release()

	again, err := lm.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	again()
}

func TestLockManager_LapsedHolderCannotRelease(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)

	current, err := lm.Acquire(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	defer current()

	stale()
	_, err = lm.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestMarketCache_RoundTrip(t *testing.T) {
	c := testClient(t)
	mc := NewMarketCache(c, time.Minute)
	ctx := context.Background()
	m := domain.Market{
		ID:       "0xcond",
		Question: "Will it rain?",
		Outcomes: []string{"Yes", "No"},
		TokenIDs: []string{"111", "222"},
		Status:   domain.MarketStatusActive,
	}

	_, err := mc.Get(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mc.Set(ctx, m))
	got, err := mc.GetByToken(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.TokenIDs, got.TokenIDs)

	require.NoError(t, mc.Invalidate(ctx, m.ID))
	_, err = mc.GetByToken(ctx, "111")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
