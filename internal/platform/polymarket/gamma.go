package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// GammaClient reads market metadata from the Gamma API.
type GammaClient struct {
	rest restClient
}

// NewGammaClient creates a client for baseURL (e.g. "https://gamma-api.polymarket.com").
func NewGammaClient(baseURL string, rps float64) *GammaClient {
	return &GammaClient{rest: newRESTClient(baseURL, rps)}
}

// MarketByCondition looks a market up by its condition id.
func (g *GammaClient) MarketByCondition(ctx context.Context, conditionID string) (domain.Market, error) {
	m, err := g.first(ctx, "condition_ids", conditionID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: market %s: %w", conditionID, err)
	}
	return m, nil
}

// MarketByToken looks a market up by one of its outcome token ids.
func (g *GammaClient) MarketByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	m, err := g.first(ctx, "clob_token_ids", tokenID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: market for token %s: %w", tokenID, err)
	}
	return m, nil
}

func (g *GammaClient) first(ctx context.Context, key, value string) (domain.Market, error) {
	q := url.Values{}
	q.Set(key, value)
	var markets []apiMarket
	if err := g.rest.getJSON(ctx, "/markets?"+q.Encode(), &markets); err != nil {
		return domain.Market{}, err
	}
	if len(markets) == 0 {
		return domain.Market{}, domain.ErrNotFound
	}
	return markets[0].toDomain(), nil
}
