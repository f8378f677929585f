package hedging

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

func (e *Engine) runHedgeUp(ctx context.Context, c *cycle) {
	for _, p := range c.positions {
		if p.CurrentPrice < e.opts.HedgeUpMinPrice {
			continue
		}
		e.guard(ctx, c, p, "hedge_up", func() { e.hedgeUp(ctx, c, p) })
	}
}

// hedgeUpCheck gates a high-priced position for a buy-more.
func (e *Engine) hedgeUpCheck(p domain.Position, now time.Time) domain.SkipReason {
	key := p.Key()
	switch {
	case e.mem.IsHedgedUp(key):
		return domain.SkipHedgeUpDone
	case e.mem.IsHedged(key):
		return domain.SkipAlreadyHedged
	case e.mem.InCooldown(key, now):
		return domain.SkipCooldown
	case p.PnLPct <= 0:
		return domain.SkipNotWinning
	case p.CurrentPrice >= e.opts.HedgeUpMaxPrice:
		return domain.SkipHedgeUpCeiling
	case !e.gate.bookValid(p):
		return domain.SkipInvalidBook
	case p.ExecStatus != "" && p.ExecStatus != domain.ExecTradable:
		return domain.SkipNotTradable
	case p.Redeemable:
		return domain.SkipRedeemable
	case p.NearResolution:
		return domain.SkipNearResolution
	}
	if !e.opts.HedgeUpAnytime {
		mins, ok := p.MinutesToClose(now)
		if !ok || mins < 0 || mins > e.opts.HedgeUpWindow.Minutes() {
			return domain.SkipHedgeUpOutside
		}
	}
	return ""
}

// hedgeUp buys more of a winner. There is no fallback: any failure just
// skips until next cycle.
func (e *Engine) hedgeUp(ctx context.Context, c *cycle, p domain.Position) {
	if reason := e.hedgeUpCheck(p, c.now); reason != "" {
		e.skip(c, p, reason)
		return
	}

	q, err := e.books.Quote(ctx, p.TokenID)
	if err != nil || !q.HasAsk() {
		e.skip(c, p, domain.SkipHedgeUpNoLiquid)
		return
	}
	switch {
	case q.BestAsk >= e.opts.HedgeUpMaxPrice:
		e.skip(c, p, domain.SkipHedgeUpCeiling)
		return
	case q.BestAsk < e.opts.HedgeUpMinPrice:
		e.skip(c, p, domain.SkipHedgeUpPriceLow)
		return
	}

	capped := e.budget.Cap(e.opts.HedgeUpMaxUSD)
	if capped.Skip {
		e.skip(c, p, domain.SkipHedgeUpNoBudget)
		return
	}
	if capped.Amount <= 0 || capped.Amount < e.opts.MinHedgeUSD {
		e.skip(c, p, domain.SkipHedgeUpBelowMin)
		return
	}

	log := e.logger.With(slog.String("market", p.MarketID), slog.String("token", p.ShortID()))
	res, err := e.orders.Submit(ctx, domain.SubmitRequest{
		MarketID:   p.MarketID,
		TokenID:    p.TokenID,
		Outcome:    p.Outcome,
		Side:       domain.OrderSideBuy,
		SizeUSD:    capped.Amount,
		PriceLimit: BuyLimit(q.BestAsk, e.opts.SlippagePct),
		SkipDedup:  true,
		Reason:     "hedge_up",
	})
	if err != nil {
		e.logSubmitError(ctx, log, "hedging: hedge-up submission failed", err)
		e.skip(c, p, domain.SkipHedgeUpRejected)
		return
	}
	spent := res.Spent(capped.Amount)
	if spent <= 0 {
		log.InfoContext(ctx, "hedging: hedge-up rejected", slog.String("reason", res.Reason))
		e.skip(c, p, domain.SkipHedgeUpRejected)
		return
	}

	e.budget.Deduct(spent)
	e.mem.MarkHedgedUp(p.Key(), c.now)
	c.bought[p.Key()] = true
	e.act(c, "hedge_up")
	e.metrics.spend("hedge_up", spent)
	e.record(func(s *Stats) {
		s.HedgeUps++
		s.HedgeUpSpentUSD += spent
	})
	e.publish(ctx, domain.HedgeEvent{
		Kind:      domain.EventHedgeUpPlaced,
		MarketID:  p.MarketID,
		TokenID:   p.TokenID,
		AmountUSD: spent,
		Price:     q.BestAsk,
		Reason:    "hedge_up",
		Simulated: res.Simulated,
	})
	log.InfoContext(ctx, "hedging: hedge-up placed",
		slog.Float64("ask", q.BestAsk),
		slog.Float64("usd", spent),
		slog.Float64("shares", BuyMoreShares(spent, q.BestAsk)),
		slog.Bool("partial", !res.Submitted()),
	)
}
