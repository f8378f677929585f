package hedging

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

func smallMemory() *Memory {
	opts := DefaultOptions()
	opts.MaxCooldowns = 3
	opts.MaxPairings = 2
	opts.MaxTracked = 2
	opts.PairingTTL = time.Hour
	return NewMemory(opts)
}

func TestMemory_CooldownCap(t *testing.T) {
	m := smallMemory()
	for i := range 5 {
		m.SetCooldown(fmt.Sprintf("k%d", i), testNow.Add(time.Duration(i+1)*time.Minute))
	}
	assert.Equal(t, 3, m.Stats().Cooldowns)
	assert.False(t, m.InCooldown("k0", testNow))
	assert.False(t, m.InCooldown("k1", testNow))
	assert.True(t, m.InCooldown("k4", testNow))
}

func TestMemory_SweepEvictsExpiredFirst(t *testing.T) {
	m := smallMemory()
	m.SetCooldown("expired", testNow.Add(time.Minute))
	m.SetCooldown("late", testNow.Add(time.Hour))
	m.Sweep(testNow.Add(2*time.Minute), nil)

	assert.Equal(t, 1, m.Stats().Cooldowns)
	assert.True(t, m.InCooldown("late", testNow.Add(2*time.Minute)))
}

func TestMemory_SetCooldownKeepsLaterExpiry(t *testing.T) {
	m := smallMemory()
	m.SetCooldown("k", testNow.Add(time.Hour))
	m.SetCooldown("k", testNow.Add(time.Minute))
	assert.True(t, m.InCooldown("k", testNow.Add(30*time.Minute)))
}

func TestMemory_OnePairingPerOriginal(t *testing.T) {
	m := smallMemory()
	p := domain.HedgePairing{OriginalKey: "m1:a", MarketID: "m1", OriginalTokenID: "a", HedgeTokenID: "b", SpentUSD: 3, CreatedAt: testNow}
	m.RecordPairing(p)
	p.SpentUSD = 4
	p.CreatedAt = testNow.Add(time.Minute)
	got := m.RecordPairing(p)

	assert.Equal(t, 7.0, got.SpentUSD)
	assert.Equal(t, testNow, got.CreatedAt)
	assert.Len(t, m.Pairings(), 1)
	assert.True(t, m.IsHedged("m1:b"), "hedge leg counts as hedged")
}

func TestMemory_PairingTTLAndCap(t *testing.T) {
	m := smallMemory()
	for i := range 3 {
		m.RecordPairing(domain.HedgePairing{
			OriginalKey: fmt.Sprintf("m%d:a", i), MarketID: fmt.Sprintf("m%d", i),
			OriginalTokenID: "a", HedgeTokenID: "b", CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
	}
	pairs := m.Pairings()
	require.Len(t, pairs, 2)
	assert.Equal(t, "m1:a", pairs[0].OriginalKey)
	assert.False(t, m.IsHedged("m0:b"))

	m.Sweep(testNow.Add(time.Hour+time.Minute+time.Second), nil)
	pairs = m.Pairings()
	require.Len(t, pairs, 1)
	assert.Equal(t, "m2:a", pairs[0].OriginalKey)
}

func TestMemory_RemovePairingClearsExited(t *testing.T) {
	m := smallMemory()
	m.RecordPairing(domain.HedgePairing{OriginalKey: "m1:a", MarketID: "m1", OriginalTokenID: "a", HedgeTokenID: "b", CreatedAt: testNow})
	m.MarkExited("m1:a", testNow)
	m.MarkExited("m1:b", testNow)

	m.RemovePairing("m1:a")
	assert.False(t, m.IsExited("m1:a"))
	assert.False(t, m.IsExited("m1:b"))
	assert.Zero(t, m.Stats().Pairings)
}

func TestMemory_TrackedSetsBounded(t *testing.T) {
	m := smallMemory()
	m.MarkHedged("a", testNow)
	m.MarkHedged("b", testNow.Add(time.Second))
	m.MarkHedged("c", testNow.Add(2*time.Second))
	m.Sweep(testNow, func(string) bool { return false })

	assert.False(t, m.IsHedged("a"))
	assert.True(t, m.IsHedged("c"))
	assert.True(t, m.Unhedge("c"))
	assert.False(t, m.Unhedge("c"))
}

func TestMemory_TrackedSetsKeepHeldPositions(t *testing.T) {
	m := smallMemory()
	m.MarkHedged("held-old", testNow)
	m.MarkHedged("gone", testNow.Add(time.Second))
	m.MarkHedged("held-new", testNow.Add(2*time.Second))
	m.MarkHedged("held-newest", testNow.Add(3*time.Second))
	held := func(k string) bool { return strings.HasPrefix(k, "held") }

	m.Sweep(testNow, held)

	// Only the absent key can go; the set stays over the cap.
	assert.False(t, m.IsHedged("gone"))
	assert.True(t, m.IsHedged("held-old"))
	assert.True(t, m.IsHedged("held-new"))
	assert.True(t, m.IsHedged("held-newest"))
	assert.Equal(t, 3, m.Stats().Hedged)

	// Without a snapshot nothing is evicted.
	m.MarkHedged("gone", testNow)
	m.Sweep(testNow, nil)
	assert.Equal(t, 4, m.Stats().Hedged)
}
