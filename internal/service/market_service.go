package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// MarketFetcher reads market metadata from the venue.
type MarketFetcher interface {
	MarketByCondition(ctx context.Context, conditionID string) (domain.Market, error)
	MarketByToken(ctx context.Context, tokenID string) (domain.Market, error)
}

// MarketService resolves market metadata, cache first.
type MarketService struct {
	cache  domain.MarketCache // optional
	gamma  MarketFetcher
	logger *slog.Logger
}

func NewMarketService(cache domain.MarketCache, gamma MarketFetcher, logger *slog.Logger) *MarketService {
	return &MarketService{
		cache:  cache,
		gamma:  gamma,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// Market returns the market tokenID trades in. marketID may be empty.
func (s *MarketService) Market(ctx context.Context, marketID, tokenID string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.GetByToken(ctx, tokenID); err == nil && m.HasToken(tokenID) {
			return m, nil
		}
	}

	var (
		m   domain.Market
		err error
	)
	if marketID != "" {
		m, err = s.gamma.MarketByCondition(ctx, marketID)
	}
	if marketID == "" || err != nil || !m.HasToken(tokenID) {
		m, err = s.gamma.MarketByToken(ctx, tokenID)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: market for %s: %w", tokenID, err)
	}

	if s.cache != nil {
		if cerr := s.cache.Set(ctx, m); cerr != nil {
			s.logger.WarnContext(ctx, "market_service: cache set failed",
				slog.String("market_id", m.ID),
				slog.String("error", cerr.Error()),
			)
		}
	}
	return m, nil
}

// Opposite returns the other outcome of a two-outcome market, or nil when
// the market has any other number of outcomes.
func (s *MarketService) Opposite(ctx context.Context, marketID, tokenID string) (*domain.OutcomeToken, error) {
	m, err := s.Market(ctx, marketID, tokenID)
	if err != nil {
		return nil, err
	}
	opp, ok := m.Opposite(tokenID)
	if !ok {
		return nil, nil
	}
	return &opp, nil
}
