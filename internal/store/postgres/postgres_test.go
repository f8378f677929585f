package postgres

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

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: " postgres://u@h/db ", Host: "ignored"},
			want: "postgres://u@h/db",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{User: "hedge", Password: "pw", Database: "polyhedge"},
			want: "postgres://hedge:pw@localhost:5432/polyhedge?sslmode=disable",
		},
		{
			name: "custom",
			cfg:  ClientConfig{User: "u", Password: "p", Host: "db", Port: 6543, Database: "d", SSLMode: "require"},
			want: "postgres://u:p@db:6543/d?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.cfg))
		})
	}
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_hedge_events.sql", names[0])
}

func TestHedgeEventStore(t *testing.T) {
	dsn := os.Getenv("POLYHEDGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POLYHEDGE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))
	require.NoError(t, c.RunMigrations(ctx), "migrations are idempotent")

	store := NewHedgeEventStore(c.Pool())
	base := time.Date(2020, 1, 2, 3, 0, 0, 0, time.UTC)
	market := "test-" + uuid.NewString()
	var ids []string
	for i := range 3 {
		ev := domain.HedgeEvent{
			ID:        uuid.NewString(),
			Kind:      domain.EventHedgePlaced,
			MarketID:  market,
			TokenID:   "tok",
			AmountUSD: 10,
			Price:     0.4,
			Reason:    "loss 32%",
			At:        base.Add(time.Duration(i) * time.Hour),
		}
		ids = append(ids, ev.ID)
		require.NoError(t, store.Record(ctx, ev))
	}
	require.NoError(t, store.Record(ctx, domain.HedgeEvent{ID: ids[0], Kind: domain.EventHedgePlaced, MarketID: market, At: base}))

	old, err := store.ListBefore(ctx, base.Add(90*time.Minute), 10)
	require.NoError(t, err)
	var mine []domain.HedgeEvent
	for _, ev := range old {
		if ev.MarketID == market {
			mine = append(mine, ev)
		}
	}
	require.Len(t, mine, 2)
	assert.Equal(t, ids[0], mine[0].ID)
	assert.Equal(t, ids[1], mine[1].ID)
	assert.Equal(t, domain.EventHedgePlaced, mine[0].Kind)
	assert.True(t, base.Equal(mine[0].At))

	since := base
	until := base.Add(3 * time.Hour)
	recent, err := store.List(ctx, domain.ListOpts{Since: &since, Until: &until, Limit: 100})
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.False(t, recent[0].At.Before(recent[len(recent)-1].At), "newest first")

	_, err = store.DeleteBefore(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
}
