package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// HoldingsReader lists the venue's view of a wallet's positions.
type HoldingsReader interface {
	Positions(ctx context.Context, user string) ([]domain.Holding, error)
}

// Quoter reads the live top of book for a token.
type Quoter interface {
	Quote(ctx context.Context, tokenID string) (domain.Quote, error)
}

// PositionConfig tunes how holdings become engine positions.
type PositionConfig struct {
	Wallet string
	// MinShares drops dust holdings.
	MinShares float64
	// QuoteConcurrency bounds parallel book reads per snapshot.
	QuoteConcurrency int
	// MaxMarkDivergence is the largest gap between the book price and the
	// venue mark for which PnL is still trusted.
	MaxMarkDivergence float64
	// MaxAge is how long a cached snapshot serves candidate queries.
	MaxAge time.Duration
}

func DefaultPositionConfig() PositionConfig {
	return PositionConfig{
		MinShares:         0.01,
		QuoteConcurrency:  8,
		MaxMarkDivergence: 0.25,
		MaxAge:            30 * time.Second,
	}
}

// PositionService builds the per-cycle position snapshot: venue holdings
// enriched with live quotes and the derived risk fields the engine reads.
type PositionService struct {
	holdings HoldingsReader
	quotes   Quoter
	cfg      PositionConfig
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	firstSeen map[string]time.Time
	last      []domain.Position
	lastAt    time.Time
}

func NewPositionService(holdings HoldingsReader, quotes Quoter, cfg PositionConfig, logger *slog.Logger) *PositionService {
	if cfg.QuoteConcurrency <= 0 {
		cfg.QuoteConcurrency = 1
	}
	return &PositionService{
		holdings:  holdings,
		quotes:    quotes,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "position_service")),
		now:       time.Now,
		firstSeen: make(map[string]time.Time),
	}
}

// Snapshot fetches and enriches every open holding. A failed quote does not
// fail the snapshot; that position is marked execution-blocked instead.
func (s *PositionService) Snapshot(ctx context.Context) ([]domain.Position, error) {
	if s.cfg.Wallet == "" {
		return nil, fmt.Errorf("position_service: snapshot: %w", domain.ErrNoWallet)
	}
	holdings, err := s.holdings.Positions(ctx, s.cfg.Wallet)
	if err != nil {
		return nil, fmt.Errorf("position_service: list holdings: %w", err)
	}

	kept := holdings[:0:0]
	for _, h := range holdings {
		if h.Shares < s.cfg.MinShares || h.TokenID == "" {
			continue
		}
		kept = append(kept, h)
	}

	quotes := make([]domain.Quote, len(kept))
	quoteErrs := make([]error, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.QuoteConcurrency)
	for i, h := range kept {
		g.Go(func() error {
			quotes[i], quoteErrs[i] = s.quotes.Quote(gctx, h.TokenID)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("position_service: snapshot: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	held := make(map[string]bool, len(kept))
	out := make([]domain.Position, 0, len(kept))
	for i, h := range kept {
		key := domain.PositionKey(h.MarketID, h.TokenID)
		held[key] = true
		opened, ok := s.firstSeen[key]
		if !ok {
			opened = now
			s.firstSeen[key] = now
		}
		if quoteErrs[i] != nil {
			s.logger.WarnContext(ctx, "position_service: quote failed",
				slog.String("token", h.TokenID),
				slog.String("error", quoteErrs[i].Error()),
			)
		}
		out = append(out, s.enrich(h, quotes[i], quoteErrs[i], opened))
	}
	for key := range s.firstSeen {
		if !held[key] {
			delete(s.firstSeen, key)
		}
	}
	s.last = out
	s.lastAt = now

	s.logger.DebugContext(ctx, "position_service: snapshot built",
		slog.Int("holdings", len(holdings)),
		slog.Int("positions", len(out)),
	)
	return out, nil
}

func (s *PositionService) enrich(h domain.Holding, q domain.Quote, quoteErr error, opened time.Time) domain.Position {
	p := domain.Position{
		MarketID:   h.MarketID,
		TokenID:    h.TokenID,
		Outcome:    domain.ParseOutcome(h.Outcome),
		Shares:     h.Shares,
		EntryPrice: h.AvgPrice,
		BestBid:    q.BestBid,
		MarkPrice:  h.CurPrice,
		Redeemable: h.Redeemable,
		EndTime:    h.EndTime,
		OpenedAt:   opened,
		ExecStatus: domain.ExecTradable,
	}
	if q.HasAsk() {
		p.BestAsk = q.BestAsk
	}

	switch {
	case q.Mid() > 0:
		p.CurrentPrice = q.Mid()
	case q.HasBid():
		p.CurrentPrice = q.BestBid
	default:
		p.CurrentPrice = h.CurPrice
	}

	switch {
	case quoteErr != nil:
		p.ExecStatus = domain.ExecBlocked
	case !q.HasBid() && !q.HasAsk():
		p.ExecStatus = domain.ExecNotTradable
	}

	if h.AvgPrice > 0 {
		p.PnLPct = (p.CurrentPrice - h.AvgPrice) / h.AvgPrice * 100
	}
	p.PnLTrusted = h.AvgPrice > 0 && quoteErr == nil &&
		(h.CurPrice <= 0 || math.Abs(p.CurrentPrice-h.CurPrice) <= s.cfg.MaxMarkDivergence)
	p.NearResolution = domain.IsNearResolutionPrice(math.Max(p.CurrentPrice, p.MarkPrice))
	return p
}

// EntryTime returns when the position was first seen by this process.
func (s *PositionService) EntryTime(marketID, tokenID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.firstSeen[domain.PositionKey(marketID, tokenID)]
	return t, ok
}

// ProfitableCandidates lists sellable winners, smallest gain first, so the
// fund-raising fallback gives up as little upside as possible.
func (s *PositionService) ProfitableCandidates(ctx context.Context, exclude func(key string) bool) ([]domain.Position, error) {
	positions, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	out := filterSellable(positions, exclude, func(p domain.Position) bool { return p.PnLPct > 0 })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PnLPct < out[j].PnLPct })
	return out, nil
}

// LossCandidates lists sellable losers, deepest loss first.
func (s *PositionService) LossCandidates(ctx context.Context, exclude func(key string) bool) ([]domain.Position, error) {
	positions, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	out := filterSellable(positions, exclude, func(p domain.Position) bool { return p.PnLPct < 0 })
	sort.SliceStable(out, func(i, j int) bool { return out[i].LossPct() > out[j].LossPct() })
	return out, nil
}

// current returns the cached snapshot, rebuilding it when older than MaxAge.
func (s *PositionService) current(ctx context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	last, at := s.last, s.lastAt
	s.mu.Unlock()
	if last != nil && s.now().Sub(at) <= s.cfg.MaxAge {
		return last, nil
	}
	return s.Snapshot(ctx)
}

func filterSellable(positions []domain.Position, exclude func(string) bool, keep func(domain.Position) bool) []domain.Position {
	var out []domain.Position
	for _, p := range positions {
		if exclude != nil && exclude(p.Key()) {
			continue
		}
		if p.ExecStatus != domain.ExecTradable || !p.PnLTrusted || p.BestBid <= 0 || p.Redeemable {
			continue
		}
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
