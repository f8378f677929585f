package hedging

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// fundingShortfall is how much cash a rejected hedge of amount is missing.
// The balance is re-read through the reserve planner; when it cannot be
// read, or it disagrees with the venue's rejection, the whole amount is
// treated as missing.
func (e *Engine) fundingShortfall(ctx context.Context, amount float64) float64 {
	plan, err := e.reserve.Plan(ctx)
	if err != nil || plan.Mode == domain.ReserveUnlimited {
		return amount
	}
	if short := amount - max(plan.AvailableCash, 0); short > 0 {
		return short
	}
	return amount
}

// raiseFunds sells profitable, unhedged positions (smallest profit first)
// until the net proceeds cover need. Freed cash is credited to the budget.
// Winners that were hedged up, and anything bought this cycle, are never
// sold. The caller already holds the lock for hedged's market; other
// markets are locked per sale and skipped on contention.
func (e *Engine) raiseFunds(ctx context.Context, c *cycle, hedged domain.Position, need float64, log *slog.Logger) float64 {
	if need <= 0 {
		return 0
	}
	exclude := func(key string) bool {
		return key == hedged.Key() || c.sold[key] || c.bought[key] ||
			e.mem.IsHedged(key) || e.mem.IsHedgedUp(key)
	}
	cands, err := e.positions.ProfitableCandidates(ctx, exclude)
	if err != nil {
		log.WarnContext(ctx, "hedging: profitable candidates unavailable", slog.String("error", err.Error()))
		return 0
	}

	var freed float64
	sales := 0
	for _, cand := range cands {
		if freed >= need || sales >= e.opts.FundingMaxSales {
			break
		}
		if exclude(cand.Key()) || cand.Redeemable || cand.NearResolution || cand.SalePrice() <= 0 {
			continue
		}
		net, ok := e.sellForFunds(ctx, c, hedged.MarketID, cand, log)
		if !ok {
			continue
		}
		freed += net
		sales++
	}

	if freed > 0 {
		log.InfoContext(ctx, "hedging: freed funds for hedge",
			slog.Float64("freed_usd", freed),
			slog.Float64("need_usd", need),
			slog.Int("sales", sales),
		)
	}
	return freed
}

func (e *Engine) sellForFunds(ctx context.Context, c *cycle, heldMarket string, p domain.Position, log *slog.Logger) (float64, bool) {
	if p.MarketID != heldMarket {
		unlock, err := e.locks.Acquire(ctx, domain.MarketLockKey(p.MarketID), e.opts.LockTTL)
		if err != nil {
			return 0, false
		}
		defer unlock()
	}

	price := p.SalePrice()
	res, usd, err := e.sell(ctx, p, price, "free_funds")
	if err != nil {
		e.logSubmitError(ctx, log, "hedging: funding sell failed", err)
		return 0, false
	}
	gross := res.Spent(usd)
	if gross <= 0 {
		return 0, false
	}
	net := NetSaleProceeds(gross, 1, e.opts.TakerFeePct)
	e.budget.Credit(net)
	c.sold[p.Key()] = true
	e.act(c, "funding_sell")
	e.record(func(s *Stats) {
		s.FundingSales++
		s.FreedUSD += net
	})
	e.publish(ctx, domain.HedgeEvent{
		Kind:      domain.EventFundsFreed,
		MarketID:  p.MarketID,
		TokenID:   p.TokenID,
		AmountUSD: net,
		Price:     price,
		Reason:    "free_funds",
		Simulated: res.Simulated,
	})
	return net, true
}
