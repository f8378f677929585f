package polymarket

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

type tokenParams struct {
	tick    float64
	negRisk bool
}

// Trader signs and posts market orders, caching the per-token tick size
// and neg-risk flag that order construction needs.
type Trader struct {
	clob    *ClobClient
	builder *OrderBuilder

	mu     sync.Mutex
	params map[string]tokenParams
}

func NewTrader(clob *ClobClient, builder *OrderBuilder) *Trader {
	return &Trader{clob: clob, builder: builder, params: make(map[string]tokenParams)}
}

// PlaceMarket builds, signs and posts m as a fill-and-kill order.
func (t *Trader) PlaceMarket(ctx context.Context, m domain.MarketOrder) (domain.OrderResult, error) {
	p, err := t.tokenParams(ctx, m.TokenID)
	if err != nil {
		return domain.OrderResult{}, err
	}
	order, err := t.builder.Build(m, p.tick, p.negRisk)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/trader: build order: %w", err)
	}
	return t.clob.PostOrder(ctx, order)
}

func (t *Trader) tokenParams(ctx context.Context, tokenID string) (tokenParams, error) {
	t.mu.Lock()
	p, ok := t.params[tokenID]
	t.mu.Unlock()
	if ok {
		return p, nil
	}

	tick, err := t.clob.TickSize(ctx, tokenID)
	if err != nil {
		return tokenParams{}, err
	}
	negRisk, err := t.clob.NegRisk(ctx, tokenID)
	if err != nil {
		return tokenParams{}, err
	}
	p = tokenParams{tick: tick, negRisk: negRisk}

	t.mu.Lock()
	t.params[tokenID] = p
	t.mu.Unlock()
	return p, nil
}
