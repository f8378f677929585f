package hedging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

func newTestGate(opts Options) (*Gate, *Memory, map[string]time.Time) {
	mem := NewMemory(opts)
	entries := map[string]time.Time{}
	g := NewGate(opts, mem, func(marketID, tokenID string) (time.Time, bool) {
		t, ok := entries[domain.PositionKey(marketID, tokenID)]
		return t, ok
	})
	return g, mem, entries
}

func TestGate_OrderedChecks(t *testing.T) {
	base := func() domain.Position { return position("m1", "tokA", 0.50, 0.375, 20) }
	tests := []struct {
		name   string
		mutate func(p *domain.Position)
		want   domain.SkipReason
	}{
		{"wide spread", func(p *domain.Position) { p.BestAsk = p.BestBid + 0.3 }, domain.SkipInvalidBook},
		{"no bid", func(p *domain.Position) { p.BestBid = 0 }, domain.SkipInvalidBook},
		{"mark divergence", func(p *domain.Position) { p.MarkPrice = 0.60 }, domain.SkipInvalidBook},
		{"untrusted", func(p *domain.Position) { p.PnLTrusted = false }, domain.SkipUntrustedPnL},
		{"not tradable", func(p *domain.Position) { p.ExecStatus = domain.ExecBlocked }, domain.SkipNotTradable},
		{"small loss", func(p *domain.Position) { p.PnLPct = -10 }, domain.SkipLossBelowTrig},
		{"entry too high", func(p *domain.Position) { p.EntryPrice = 0.80 }, domain.SkipEntryPriceHigh},
		{"no side", func(p *domain.Position) { p.Outcome = domain.Outcome{} }, domain.SkipNoSide},
		{"redeemable", func(p *domain.Position) { p.Redeemable = true }, domain.SkipRedeemable},
		{"near resolution", func(p *domain.Position) { p.NearResolution = true }, domain.SkipNearResolution},
		{"fresh position", func(p *domain.Position) { p.OpenedAt = testNow.Add(-30 * time.Second) }, domain.SkipHoldTimeShort},
		{"untrusted beats small loss", func(p *domain.Position) { p.PnLTrusted = false; p.PnLPct = -5 }, domain.SkipUntrustedPnL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newTestGate(DefaultOptions())
			p := base()
			tt.mutate(&p)
			v := g.Check(p, testNow)
			assert.False(t, v.Proceed)
			assert.Equal(t, tt.want, v.Reason)
		})
	}

	g, _, _ := newTestGate(DefaultOptions())
	v := g.Check(base(), testNow)
	assert.True(t, v.Proceed)
	assert.False(t, v.Catastrophic)
}

func TestGate_MemoryChecksComeFirst(t *testing.T) {
	g, mem, _ := newTestGate(DefaultOptions())
	p := position("m1", "tokA", 0.50, 0.375, 20)
	p.PnLTrusted = false

	mem.SetCooldown(p.Key(), testNow.Add(time.Minute))
	assert.Equal(t, domain.SkipCooldown, g.Check(p, testNow).Reason)

	mem.MarkHedged(p.Key(), testNow)
	assert.Equal(t, domain.SkipAlreadyHedged, g.Check(p, testNow).Reason)
}

func TestGate_CooldownExpiresOnRead(t *testing.T) {
	g, mem, _ := newTestGate(DefaultOptions())
	p := position("m1", "tokA", 0.50, 0.375, 20)
	mem.SetCooldown(p.Key(), testNow.Add(time.Minute))

	assert.Equal(t, domain.SkipCooldown, g.Check(p, testNow.Add(59*time.Second)).Reason)
	assert.True(t, g.Check(p, testNow.Add(time.Minute)).Proceed)
	assert.Zero(t, mem.Stats().Cooldowns)
}

func TestGate_CatastrophicOverrides(t *testing.T) {
	catastrophic := func() domain.Position { return position("m1", "tokA", 0.50, 0.20, 20) }

	t.Run("invalid book with trusted pnl proceeds", func(t *testing.T) {
		g, _, _ := newTestGate(DefaultOptions())
		p := catastrophic()
		p.BestAsk = 0.60
		v := g.Check(p, testNow)
		assert.True(t, v.Proceed)
		assert.True(t, v.Catastrophic)
	})
	t.Run("invalid book with untrusted pnl skips", func(t *testing.T) {
		g, _, _ := newTestGate(DefaultOptions())
		p := catastrophic()
		p.BestAsk = 0.60
		p.PnLTrusted = false
		assert.Equal(t, domain.SkipInvalidBook, g.Check(p, testNow).Reason)
	})
	t.Run("untrusted pnl proceeds", func(t *testing.T) {
		g, _, _ := newTestGate(DefaultOptions())
		p := catastrophic()
		p.PnLTrusted = false
		p.OpenedAt = time.Time{}
		assert.True(t, g.Check(p, testNow).Proceed)
	})
	t.Run("not tradable routes to liquidation", func(t *testing.T) {
		g, _, _ := newTestGate(DefaultOptions())
		p := catastrophic()
		p.ExecStatus = domain.ExecNotTradable
		v := g.Check(p, testNow)
		assert.True(t, v.Proceed)
		assert.True(t, v.LiquidateOnly)
	})
	t.Run("hold time waived", func(t *testing.T) {
		g, _, entries := newTestGate(DefaultOptions())
		p := catastrophic()
		entries[p.Key()] = testNow.Add(-10 * time.Second)
		assert.True(t, g.Check(p, testNow).Proceed)
	})
}

func TestGate_EntryTimeFromProvider(t *testing.T) {
	g, _, entries := newTestGate(DefaultOptions())
	p := position("m1", "tokA", 0.50, 0.375, 20)
	entries[p.Key()] = testNow.Add(-time.Minute)
	assert.Equal(t, domain.SkipHoldTimeShort, g.Check(p, testNow).Reason)

	entries[p.Key()] = testNow.Add(-3 * time.Minute)
	assert.True(t, g.Check(p, testNow).Proceed)
}

func TestWindowPolicy(t *testing.T) {
	at := func(p domain.Position, minutes float64) domain.Position {
		end := testNow.Add(time.Duration(minutes * float64(time.Minute)))
		p.EndTime = &end
		return p
	}
	small := position("m1", "tokA", 0.50, 0.39, 20)  // 22% loss, 11c drop
	mid := position("m1", "tokA", 0.50, 0.425, 20)   // 15% loss, 7.5c drop
	big := position("m1", "tokA", 0.50, 0.325, 20)   // 35% loss
	crash := position("m1", "tokA", 0.50, 0.20, 20)  // 60% loss
	cheap := position("m1", "tokA", 0.20, 0.15, 20)  // 25% loss, 5c drop

	nearRes := DefaultOptions()
	plain := DefaultOptions()
	plain.NearResolutionHedge = false

	tests := []struct {
		name string
		opts Options
		p    domain.Position
		want windowDecision
	}{
		{"no end time", nearRes, small, windowDecision{}},
		{"far from close", nearRes, at(small, 120), windowDecision{}},
		{"no-hedge window small loss", nearRes, at(small, 2), windowDecision{skip: domain.SkipNoHedgeSmall}},
		{"no-hedge window big loss hedges", nearRes, at(big, 2), windowDecision{nearResolution: true}},
		{"plain no-hedge window skips", plain, at(big, 2), windowDecision{skip: domain.SkipNoHedgeWindow}},
		{"plain no-hedge window liquidates catastrophic", plain, at(crash, 2), windowDecision{liquidateOnly: true}},
		{"past end time awaits settlement", nearRes, at(big, -1), windowDecision{skip: domain.SkipPastEndTime}},
		{"past end time catastrophic still waits", plain, at(crash, -120), windowDecision{skip: domain.SkipPastEndTime}},
		{"exactly at close is no-hedge window", nearRes, at(big, 0), windowDecision{nearResolution: true}},
		{"near close drop floor met", nearRes, at(small, 10), windowDecision{}},
		{"near close loss floor met", nearRes, at(big, 10), windowDecision{}},
		{"near close neither floor", nearRes, at(cheap, 10), windowDecision{skip: domain.SkipNearCloseThresh}},
		{"near close small move", nearRes, at(mid, 10), windowDecision{skip: domain.SkipNearCloseThresh}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.applyWindow(tt.p, testNow))
		})
	}
}

func TestGate_WindowRedirects(t *testing.T) {
	g, _, _ := newTestGate(DefaultOptions())
	p := position("m1", "tokA", 0.50, 0.325, 20)
	end := testNow.Add(2 * time.Minute)
	p.EndTime = &end

	v := g.Check(p, testNow)
	assert.True(t, v.Proceed)
	assert.True(t, v.NearResolution)

	p.ExecStatus = domain.ExecNotTradable
	p.CurrentPrice, p.BestBid, p.BestAsk, p.PnLPct = 0.20, 0.19, 0.21, -60
	v = g.Check(p, testNow)
	assert.True(t, v.LiquidateOnly)
	assert.False(t, v.NearResolution)
}
