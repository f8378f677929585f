package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// DefaultMarketTTL bounds how long market metadata is served from cache.
// Outcome tokens never change for a market, so this mostly limits memory.
const DefaultMarketTTL = 6 * time.Hour

// MarketCache stores markets as JSON with a token-to-market index.
//
//	{prefix}:market:{id}        JSON-encoded domain.Market
//	{prefix}:market:token:{tok} market ID
type MarketCache struct {
	c   *Client
	ttl time.Duration
}

func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{c: c, ttl: ttl}
}

func (mc *MarketCache) Set(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: encode market %s: %w", m.ID, err)
	}
	_, err = mc.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, mc.c.key("market", m.ID), data, mc.ttl)
		for _, tok := range m.TokenIDs {
			if tok != "" {
				pipe.Set(ctx, mc.c.key("market", "token", tok), m.ID, mc.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.ID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.c.rdb.Get(ctx, mc.c.key("market", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Market{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: decode market %s: %w", id, err)
	}
	return m, nil
}

func (mc *MarketCache) GetByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	id, err := mc.c.rdb.Get(ctx, mc.c.key("market", "token", tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Market{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("redis: market for token %s: %w", tokenID, err)
	}
	return mc.Get(ctx, id)
}

// Invalidate drops a market and whatever token index entries it still has.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	m, err := mc.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	keys := []string{mc.c.key("market", id)}
	for _, tok := range m.TokenIDs {
		keys = append(keys, mc.c.key("market", "token", tok))
	}
	if err := mc.c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
