package hedging

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// hedgeAttempt is the result of one pass through the hedge buy sequence.
type hedgeAttempt struct {
	code   domain.HedgeCode
	target float64
	amount float64 // what was actually submitted
	spent  float64
}

// hedgeDown protects one eligible losing position while holding its
// market lock: hedge first, raise funds and retry once if the account is
// short, and liquidate only when the loss is catastrophic.
func (e *Engine) hedgeDown(ctx context.Context, c *cycle, p domain.Position, v Verdict) {
	unlock, err := e.locks.Acquire(ctx, domain.MarketLockKey(p.MarketID), e.opts.LockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			e.logger.WarnContext(ctx, "hedging: market lock failed",
				slog.String("market", p.MarketID), slog.String("error", err.Error()))
		}
		e.skip(c, p, domain.SkipLockUnavailable)
		return
	}
	defer unlock()

	log := e.logger.With(
		slog.String("market", p.MarketID),
		slog.String("token", p.ShortID()),
		slog.Float64("loss_pct", p.LossPct()),
	)

	if v.LiquidateOnly {
		e.liquidate(ctx, c, p, p.FallbackPrice(), "catastrophic_untradable", log)
		return
	}

	att := e.attemptHedge(ctx, c, p, v.NearResolution, log)
	if att.code == domain.HedgeInsufficientFunds && e.opts.FundingEnabled {
		need := e.fundingShortfall(ctx, att.amount)
		if freed := e.raiseFunds(ctx, c, p, need, log); freed > 0 {
			att = e.attemptHedge(ctx, c, p, v.NearResolution, log)
		}
	}
	e.metrics.hedgeResult(string(att.code))

	switch {
	case att.code.Spent():
		return
	case att.code == domain.HedgeMarketResolved:
		e.mem.MarkHedged(p.Key(), c.now)
		log.InfoContext(ctx, "hedging: opposite side priced as resolved, awaiting settlement")
		return
	case !v.Catastrophic:
		log.DebugContext(ctx, "hedging: hedge not placed, will retry next cycle", slog.String("code", string(att.code)))
		return
	}
	e.liquidate(ctx, c, p, p.SalePrice(), "catastrophic_"+strings.ToLower(string(att.code)), log)
}

// oppositeThreshold rejects an opposite ask that signals a resolved market
// or a hedge too expensive to be worth buying.
func (e *Engine) oppositeThreshold(ask float64, nearResolution bool) domain.HedgeCode {
	if ask >= e.opts.MarketResolvedPrice {
		return domain.HedgeMarketResolved
	}
	limit := e.opts.TooExpensivePrice
	if nearResolution {
		limit = e.opts.NearResolutionTooExpensivePrice
	}
	if ask >= limit {
		return domain.HedgeTooExpensive
	}
	return ""
}

func (e *Engine) attemptHedge(ctx context.Context, c *cycle, p domain.Position, nearResolution bool, log *slog.Logger) hedgeAttempt {
	opp, err := e.markets.Opposite(ctx, p.MarketID, p.TokenID)
	if err != nil {
		log.WarnContext(ctx, "hedging: opposite lookup failed", slog.String("error", err.Error()))
	}
	if err != nil || opp == nil {
		return hedgeAttempt{code: domain.HedgeNoOppositeToken}
	}

	q, err := e.books.Quote(ctx, opp.TokenID)
	if err != nil || !q.HasAsk() {
		return hedgeAttempt{code: domain.HedgeNoLiquidity}
	}
	if code := e.oppositeThreshold(q.BestAsk, nearResolution); code != "" {
		return hedgeAttempt{code: code}
	}

	target, emergency := HedgeTargetUSD(e.opts, p.EntryPrice, p.Shares, p.LossPct(), q.BestAsk)
	capped := e.budget.Cap(target)
	if capped.Skip {
		return hedgeAttempt{code: capped.Code, target: target}
	}
	amount := capped.Amount
	if amount <= 0 || amount < e.opts.MinHedgeUSD {
		return hedgeAttempt{code: domain.HedgeBelowMinSize, target: target}
	}

	// The book may have moved while we looked up and sized; check again.
	q, err = e.books.Quote(ctx, opp.TokenID)
	if err != nil || !q.HasAsk() {
		return hedgeAttempt{code: domain.HedgeNoLiquidity, target: target}
	}
	if code := e.oppositeThreshold(q.BestAsk, nearResolution); code != "" {
		return hedgeAttempt{code: code, target: target}
	}

	res, err := e.orders.Submit(ctx, domain.SubmitRequest{
		MarketID:   p.MarketID,
		TokenID:    opp.TokenID,
		Outcome:    domain.ParseOutcome(opp.Label),
		Side:       domain.OrderSideBuy,
		SizeUSD:    amount,
		PriceLimit: BuyLimit(q.BestAsk, e.opts.SlippagePct),
		SkipDedup:  true,
		Reason:     "hedge_down",
	})
	if err != nil {
		e.logSubmitError(ctx, log, "hedging: hedge submission failed", err)
		return hedgeAttempt{code: domain.HedgeOrderRejected, target: target}
	}

	spent := res.Spent(amount)
	if spent <= 0 {
		log.InfoContext(ctx, "hedging: hedge rejected", slog.String("reason", res.Reason), slog.Float64("usd", amount))
		if res.Reason == domain.RejectInsufficientBalance {
			return hedgeAttempt{code: domain.HedgeInsufficientFunds, target: target, amount: amount}
		}
		return hedgeAttempt{code: domain.HedgeOrderRejected, target: target}
	}

	// Money moved: whether filled or partial, this position is done.
	e.budget.Deduct(spent)
	e.mem.RecordPairing(domain.HedgePairing{
		OriginalKey:     p.Key(),
		MarketID:        p.MarketID,
		OriginalTokenID: p.TokenID,
		HedgeTokenID:    opp.TokenID,
		SpentUSD:        spent,
		CreatedAt:       c.now,
	})
	c.paired[p.Key()] = true
	c.bought[domain.PositionKey(p.MarketID, opp.TokenID)] = true
	e.mem.MarkHedged(p.Key(), c.now)
	e.act(c, "hedge")
	e.metrics.spend("hedge", spent)

	code, kind := domain.HedgeOK, domain.EventHedgePlaced
	if !res.Submitted() {
		code, kind = domain.HedgePartialFill, domain.EventHedgePartial
	}
	e.record(func(s *Stats) {
		s.HedgeSpentUSD += spent
		if code == domain.HedgePartialFill {
			s.PartialFills++
		} else {
			s.HedgesPlaced++
		}
	})
	e.publish(ctx, domain.HedgeEvent{
		Kind:      kind,
		MarketID:  p.MarketID,
		TokenID:   opp.TokenID,
		AmountUSD: spent,
		Price:     q.BestAsk,
		Reason:    string(code),
		Simulated: res.Simulated,
	})
	log.InfoContext(ctx, "hedging: hedge placed",
		slog.String("code", string(code)),
		slog.String("hedge_token", opp.TokenID),
		slog.Float64("ask", q.BestAsk),
		slog.Float64("usd", spent),
		slog.Float64("target_usd", target),
		slog.Bool("emergency", emergency),
		slog.Bool("capped", capped.Partial),
		slog.Bool("near_resolution", nearResolution),
	)

	if code == domain.HedgeOK && nearResolution {
		e.sellOriginal(ctx, c, p, log)
	}
	return hedgeAttempt{code: code, target: target, amount: amount, spent: spent}
}

// sellOriginal completes a near-resolution salvage by selling the losing
// side right after its hedge filled.
func (e *Engine) sellOriginal(ctx context.Context, c *cycle, p domain.Position, log *slog.Logger) {
	price := p.SalePrice()
	if price <= 0 {
		log.InfoContext(ctx, "hedging: no bid for near-resolution salvage sell")
		return
	}
	res, usd, err := e.sell(ctx, p, price, "near_resolution_salvage")
	if err != nil {
		e.logSubmitError(ctx, log, "hedging: salvage sell failed", err)
		return
	}
	got := res.Spent(usd)
	if got <= 0 {
		log.InfoContext(ctx, "hedging: salvage sell rejected", slog.String("reason", res.Reason))
		return
	}
	e.mem.MarkExited(p.Key(), c.now)
	c.sold[p.Key()] = true
	e.act(c, "salvage_sell")
	e.publish(ctx, domain.HedgeEvent{
		Kind:      domain.EventPositionSold,
		MarketID:  p.MarketID,
		TokenID:   p.TokenID,
		AmountUSD: got,
		Price:     price,
		Reason:    "near_resolution_salvage",
		Simulated: res.Simulated,
	})
	log.InfoContext(ctx, "hedging: original sold after near-resolution hedge", slog.Float64("usd", got))
}

// liquidate sells a catastrophic loser outright. Anything short of a full
// fill puts the position on cooldown.
func (e *Engine) liquidate(ctx context.Context, c *cycle, p domain.Position, price float64, reason string, log *slog.Logger) {
	if price > 0 {
		res, usd, err := e.sell(ctx, p, price, reason)
		switch {
		case err != nil:
			e.logSubmitError(ctx, log, "hedging: liquidation submission failed", err)
		case res.Submitted():
			got := res.Spent(usd)
			e.mem.MarkHedged(p.Key(), c.now)
			c.sold[p.Key()] = true
			e.act(c, "liquidation")
			e.record(func(s *Stats) { s.Liquidations++ })
			e.publish(ctx, domain.HedgeEvent{
				Kind:      domain.EventPositionLiquidated,
				MarketID:  p.MarketID,
				TokenID:   p.TokenID,
				AmountUSD: got,
				Price:     price,
				Reason:    reason,
				Simulated: res.Simulated,
			})
			log.WarnContext(ctx, "hedging: position liquidated", slog.String("reason", reason), slog.Float64("usd", got))
			return
		case res.PartialFill():
			e.act(c, "liquidation_partial")
			log.WarnContext(ctx, "hedging: liquidation partially filled", slog.Float64("usd", res.FilledUSD))
		default:
			log.WarnContext(ctx, "hedging: liquidation rejected", slog.String("reason", res.Reason))
		}
	}

	until := c.now.Add(e.opts.CooldownDuration)
	e.mem.SetCooldown(p.Key(), until)
	e.record(func(s *Stats) { s.LiquidationFailures++ })
	log.WarnContext(ctx, "hedging: liquidation failed, cooling down", slog.Time("until", until))
}
