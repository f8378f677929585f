package hedging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// runExitMonitor sells whichever leg of a pairing has collapsed below the
// exit price. At most one leg per pairing is sold per cycle, original
// first. Pairings with both legs gone are dropped. A pairing made this
// cycle waits for the next snapshot: its prices are the ones that
// triggered the hedge.
func (e *Engine) runExitMonitor(ctx context.Context, c *cycle) {
	for _, pair := range e.mem.Pairings() {
		if c.paired[pair.OriginalKey] {
			continue
		}
		orig, haveOrig := c.index[pair.OriginalKey]
		hedge, haveHedge := c.index[pair.HedgeKey()]
		haveOrig = haveOrig && !c.sold[pair.OriginalKey]
		haveHedge = haveHedge && !c.sold[pair.HedgeKey()]

		if !haveOrig && !haveHedge {
			e.mem.RemovePairing(pair.OriginalKey)
			continue
		}

		var leg domain.Position
		var which string
		switch {
		case haveOrig && !e.mem.IsExited(pair.OriginalKey) && orig.CurrentPrice < e.opts.ExitPrice:
			leg, which = orig, "original"
		case haveHedge && !e.mem.IsExited(pair.HedgeKey()) && hedge.CurrentPrice < e.opts.ExitPrice:
			leg, which = hedge, "hedge"
		default:
			continue
		}
		e.guard(ctx, c, leg, "exit", func() { e.exitLeg(ctx, c, leg, which) })
	}
}

func (e *Engine) exitLeg(ctx context.Context, c *cycle, leg domain.Position, which string) {
	unlock, err := e.locks.Acquire(ctx, domain.MarketLockKey(leg.MarketID), e.opts.LockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			e.logger.WarnContext(ctx, "hedging: market lock failed",
				slog.String("market", leg.MarketID), slog.String("error", err.Error()))
		}
		e.skip(c, leg, domain.SkipLockUnavailable)
		return
	}
	defer unlock()

	log := e.logger.With(
		slog.String("market", leg.MarketID),
		slog.String("token", leg.ShortID()),
		slog.String("leg", which),
	)

	price := leg.SalePrice()
	if q, err := e.books.Quote(ctx, leg.TokenID); err == nil && q.HasBid() {
		price = q.BestBid
	}
	if price <= 0 {
		log.DebugContext(ctx, "hedging: no bid for collapsed leg")
		return
	}

	res, usd, err := e.sell(ctx, leg, price, "hedge_exit_"+which)
	if err != nil {
		e.logSubmitError(ctx, log, "hedging: exit sell failed", err)
		return
	}
	got := res.Spent(usd)
	if got <= 0 {
		log.InfoContext(ctx, "hedging: exit sell rejected", slog.String("reason", res.Reason))
		return
	}

	e.mem.MarkExited(leg.Key(), c.now)
	c.sold[leg.Key()] = true
	e.act(c, "exit")
	e.record(func(s *Stats) { s.Exits++ })
	e.publish(ctx, domain.HedgeEvent{
		Kind:      domain.EventHedgeExited,
		MarketID:  leg.MarketID,
		TokenID:   leg.TokenID,
		AmountUSD: got,
		Price:     price,
		Reason:    "exit_" + which,
		Simulated: res.Simulated,
	})
	log.InfoContext(ctx, "hedging: collapsed leg sold", slog.Float64("price", price), slog.Float64("usd", got))
}
