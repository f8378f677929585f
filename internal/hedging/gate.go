package hedging

import (
	"math"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Verdict is the eligibility gate's answer for one position.
type Verdict struct {
	Proceed        bool
	Reason         domain.SkipReason
	Catastrophic   bool
	LiquidateOnly  bool // hedging impossible; only a salvage sell may run
	NearResolution bool // hedge, then also sell the original
}

func skip(reason domain.SkipReason) Verdict {
	return Verdict{Reason: reason}
}

// EntryTimer returns when a position was first opened, if known.
type EntryTimer func(marketID, tokenID string) (time.Time, bool)

// Gate runs the ordered eligibility checks for hedge-down.
type Gate struct {
	opts      Options
	mem       *Memory
	entryTime EntryTimer
}

// NewGate builds a gate over the engine's memory tables.
func NewGate(opts Options, mem *Memory, entryTime EntryTimer) *Gate {
	return &Gate{opts: opts, mem: mem, entryTime: entryTime}
}

// Check applies the checks in order and stops at the first failure.
// Catastrophic losses override the data-quality and hold-time checks.
func (g *Gate) Check(p domain.Position, now time.Time) Verdict {
	key := p.Key()
	loss := p.LossPct()
	catastrophic := g.opts.catastrophic(loss)
	v := Verdict{Proceed: true, Catastrophic: catastrophic}

	if g.mem.IsHedged(key) {
		return skip(domain.SkipAlreadyHedged)
	}
	if g.mem.InCooldown(key, now) {
		return skip(domain.SkipCooldown)
	}
	if !g.bookValid(p) && !(catastrophic && p.PnLTrusted) {
		return skip(domain.SkipInvalidBook)
	}
	if !p.PnLTrusted && !catastrophic {
		return skip(domain.SkipUntrustedPnL)
	}
	if p.ExecStatus != domain.ExecTradable && p.ExecStatus != "" {
		if !catastrophic {
			return skip(domain.SkipNotTradable)
		}
		v.LiquidateOnly = true
	}
	if loss < g.opts.TriggerLossPct {
		return skip(domain.SkipLossBelowTrig)
	}
	if p.EntryPrice >= g.opts.MaxEntryPrice {
		return skip(domain.SkipEntryPriceHigh)
	}
	if !p.Outcome.Defined() {
		return skip(domain.SkipNoSide)
	}
	if p.Redeemable {
		return skip(domain.SkipRedeemable)
	}
	if p.NearResolution {
		return skip(domain.SkipNearResolution)
	}
	if !g.holdElapsed(p, now) && !(catastrophic && p.PnLTrusted) {
		return skip(domain.SkipHoldTimeShort)
	}

	w := g.opts.applyWindow(p, now)
	if w.skip != "" {
		return skip(w.skip)
	}
	v.LiquidateOnly = v.LiquidateOnly || w.liquidateOnly
	v.NearResolution = w.nearResolution && !v.LiquidateOnly
	return v
}

// bookValid rejects books with no bid, a spread wider than the limit, or a
// price that diverges from the independent mark.
func (g *Gate) bookValid(p domain.Position) bool {
	if p.BestBid <= 0 {
		return false
	}
	if p.BestAsk > 0 && p.BestAsk-p.BestBid > g.opts.MaxBookSpread {
		return false
	}
	if p.MarkPrice > 0 && math.Abs(p.CurrentPrice-p.MarkPrice) > g.opts.MaxMarkDivergence {
		return false
	}
	return true
}

// holdElapsed treats an unknown entry time as elapsed.
func (g *Gate) holdElapsed(p domain.Position, now time.Time) bool {
	opened := p.OpenedAt
	if g.entryTime != nil {
		if t, ok := g.entryTime(p.MarketID, p.TokenID); ok {
			opened = t
		}
	}
	if opened.IsZero() {
		return true
	}
	return now.Sub(opened) >= g.opts.MinHoldTime
}
