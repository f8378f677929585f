// Package executor is the order execution service: it turns a
// domain.SubmitRequest into a fill-and-kill market order with dedup, price
// protection, a balance pre-check, bounded retries and fill accounting.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Quoter reads top of book.
type Quoter interface {
	Quote(ctx context.Context, tokenID string) (domain.Quote, error)
}

// BalanceReader reports spendable collateral in USD.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}

// MarketPlacer signs and posts fill-and-kill orders.
type MarketPlacer interface {
	PlaceMarket(ctx context.Context, m domain.MarketOrder) (domain.OrderResult, error)
}

// Config tunes the service.
type Config struct {
	DryRun       bool
	DedupWindow  time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	MinOrderUSD  float64
	// FillTolerance is the fraction of a request that may go unfilled
	// before the fill counts as partial.
	FillTolerance float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DedupWindow:   2 * time.Minute,
		MaxAttempts:   3,
		RetryBackoff:  500 * time.Millisecond,
		MinOrderUSD:   1,
		FillTolerance: 0.01,
	}
}

// Service submits market orders. placer may be nil, in which case every
// live submission fails with domain.ErrNoWallet; dry-run still simulates.
type Service struct {
	cfg     Config
	books   Quoter
	balance BalanceReader
	placer  MarketPlacer
	dedup   *Dedup
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	cleanupInterval time.Duration
}

func New(cfg Config, books Quoter, balance BalanceReader, placer MarketPlacer, logger *slog.Logger) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Service{
		cfg:             cfg,
		books:           books,
		balance:         balance,
		placer:          placer,
		dedup:           NewDedup(cfg.DedupWindow),
		logger:          logger.With(slog.String("component", "executor")),
		sleep:           sleepCtx,
		cleanupInterval: 30 * time.Second,
	}
}

// Run prunes the dedup window until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	t := time.NewTicker(s.cleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.dedup.Cleanup()
		}
	}
}

// DryRun reports whether orders are simulated.
func (s *Service) DryRun() bool {
	return s.cfg.DryRun
}

func rejected(reason string) domain.SubmitResult {
	return domain.SubmitResult{Status: domain.SubmitRejected, Reason: reason}
}

func dedupKey(req domain.SubmitRequest) string {
	return req.MarketID + ":" + req.TokenID + ":" + string(req.Side)
}

// Submit places req as a market order. Business rejections are reported in
// the result with a nil error; the error is reserved for infrastructure
// failures and a missing wallet.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	log := s.logger.With(
		slog.String("market", req.MarketID),
		slog.String("token", req.TokenID),
		slog.String("side", string(req.Side)),
		slog.String("reason", req.Reason),
	)

	if req.TokenID == "" || (req.SizeUSD <= 0 && req.Shares <= 0) ||
		(req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell) {
		return rejected(domain.RejectInvalid), nil
	}
	if !s.cfg.DryRun && s.placer == nil {
		log.ErrorContext(ctx, "executor: no wallet configured, cannot trade")
		return rejected(domain.RejectNoWallet), domain.ErrNoWallet
	}
	buy := req.Side == domain.OrderSideBuy
	if buy && !req.SkipDedup && s.dedup.Seen(dedupKey(req)) {
		log.DebugContext(ctx, "executor: duplicate buy inside dedup window")
		return rejected(domain.RejectDuplicate), nil
	}

	q, err := s.books.Quote(ctx, req.TokenID)
	if err != nil {
		return rejected(domain.RejectNoLiquidity), fmt.Errorf("executor: quote %s: %w", req.TokenID, err)
	}

	order := domain.MarketOrder{MarketID: req.MarketID, TokenID: req.TokenID, Side: req.Side}
	var notional float64
	if buy {
		if !q.HasAsk() {
			return rejected(domain.RejectNoLiquidity), nil
		}
		if req.PriceLimit > 0 && q.BestAsk > req.PriceLimit {
			log.InfoContext(ctx, "executor: ask above limit",
				slog.Float64("ask", q.BestAsk), slog.Float64("limit", req.PriceLimit))
			return rejected(domain.RejectPriceMoved), nil
		}
		if req.SizeUSD < s.cfg.MinOrderUSD {
			return rejected(domain.RejectBelowMinimum), nil
		}
		order.Amount = req.SizeUSD
		order.Price = priceOr(req.PriceLimit, q.BestAsk)
		notional = req.SizeUSD
	} else {
		if !q.HasBid() {
			return rejected(domain.RejectNoLiquidity), nil
		}
		if req.PriceLimit > 0 && q.BestBid < req.PriceLimit {
			log.InfoContext(ctx, "executor: bid below limit",
				slog.Float64("bid", q.BestBid), slog.Float64("limit", req.PriceLimit))
			return rejected(domain.RejectPriceMoved), nil
		}
		order.Amount = req.Shares
		if order.Amount <= 0 {
			order.Amount = req.SizeUSD / q.BestBid
		}
		order.Price = priceOr(req.PriceLimit, q.BestBid)
		notional = order.Amount * q.BestBid
	}

	if s.cfg.DryRun {
		if buy {
			s.dedup.Mark(dedupKey(req))
		}
		log.InfoContext(ctx, "executor: simulated order",
			slog.Float64("amount", order.Amount), slog.Float64("price", order.Price))
		return domain.SubmitResult{Status: domain.SubmitSubmitted, FilledUSD: notional, Simulated: true}, nil
	}

	if buy && s.balance != nil {
		bal, err := s.balance.Balance(ctx)
		switch {
		case err != nil:
			log.WarnContext(ctx, "executor: balance check failed, submitting anyway", slog.String("error", err.Error()))
		case bal < req.SizeUSD:
			log.InfoContext(ctx, "executor: insufficient balance",
				slog.Float64("balance", bal), slog.Float64("size_usd", req.SizeUSD))
			return rejected(domain.RejectInsufficientBalance), nil
		}
	}

	res, err := s.place(ctx, order, log)
	if err != nil {
		if errors.Is(err, domain.ErrNoWallet) {
			log.ErrorContext(ctx, "executor: wallet unavailable", slog.String("error", err.Error()))
			return rejected(domain.RejectNoWallet), err
		}
		return rejected(domain.RejectVenue), fmt.Errorf("executor: place order: %w", err)
	}
	if !res.Success {
		reason := rejectReason(res.Message)
		log.WarnContext(ctx, "executor: order rejected",
			slog.String("message", res.Message), slog.String("reject", reason))
		return rejected(reason), nil
	}
	if buy {
		s.dedup.Mark(dedupKey(req))
	}

	out := s.fill(order, res)
	log.InfoContext(ctx, "executor: order placed",
		slog.String("order_id", res.OrderID),
		slog.String("status", string(res.Status)),
		slog.Float64("filled_usd", out.FilledUSD),
		slog.String("result", string(out.Status)),
	)
	return out, nil
}

// place posts the order, retrying when the venue asks for it or rate limits.
func (s *Service) place(ctx context.Context, m domain.MarketOrder, log *slog.Logger) (domain.OrderResult, error) {
	var (
		res domain.OrderResult
		err error
	)
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res, err = s.placer.PlaceMarket(ctx, m)
		retry := (err != nil && errors.Is(err, domain.ErrRateLimited)) || (err == nil && !res.Success && res.ShouldRetry)
		if !retry || attempt == s.cfg.MaxAttempts {
			return res, err
		}
		log.InfoContext(ctx, "executor: retrying order", slog.Int("attempt", attempt))
		if serr := s.sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempt)); serr != nil {
			return res, serr
		}
	}
	return res, err
}

// fill converts a successful venue response into a SubmitResult. Amounts
// the venue did not report (delayed matching) are treated as fully filled.
func (s *Service) fill(m domain.MarketOrder, res domain.OrderResult) domain.SubmitResult {
	out := domain.SubmitResult{Status: domain.SubmitSubmitted, OrderID: res.OrderID}
	if m.Side == domain.OrderSideBuy {
		out.FilledUSD = res.MakingAmount
		if res.MakingAmount > 0 && res.MakingAmount < m.Amount*(1-s.cfg.FillTolerance) {
			out.Status = domain.SubmitRejected
			out.Reason = domain.RejectPartialFill
		}
		return out
	}
	out.FilledUSD = res.TakingAmount
	if res.MakingAmount > 0 && res.MakingAmount < m.Amount*(1-s.cfg.FillTolerance) {
		out.Status = domain.SubmitRejected
		out.Reason = domain.RejectPartialFill
	}
	return out
}

func priceOr(limit, fallback float64) float64 {
	if limit > 0 {
		return limit
	}
	return fallback
}

func rejectReason(msg string) string {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "balance") || strings.Contains(m, "allowance"):
		return domain.RejectInsufficientBalance
	case strings.Contains(m, "no orders found") || strings.Contains(m, "no match") || strings.Contains(m, "liquidity"):
		return domain.RejectNoLiquidity
	case strings.Contains(m, "min") && strings.Contains(m, "size"):
		return domain.RejectBelowMinimum
	default:
		return domain.RejectVenue
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
