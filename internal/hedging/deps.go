package hedging

import (
	"context"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// OrderSubmitter places market orders. Buys are deduplicated unless the
// request opts out; a rejected result with a non-zero FilledUSD is a
// partial fill that spent money.
type OrderSubmitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error)
}

// PositionSource provides the per-cycle position snapshot and the derived
// queries used by the fund-raising fallback. exclude filters out positions
// by key (typically the hedged set).
type PositionSource interface {
	Snapshot(ctx context.Context) ([]domain.Position, error)
	EntryTime(marketID, tokenID string) (time.Time, bool)
	ProfitableCandidates(ctx context.Context, exclude func(key string) bool) ([]domain.Position, error)
	LossCandidates(ctx context.Context, exclude func(key string) bool) ([]domain.Position, error)
}

// MarketLookup resolves the opposite outcome token. It returns nil for
// markets that do not have exactly two outcomes.
type MarketLookup interface {
	Opposite(ctx context.Context, marketID, tokenID string) (*domain.OutcomeToken, error)
}

// BookReader reads the live top of book for a token.
type BookReader interface {
	Quote(ctx context.Context, tokenID string) (domain.Quote, error)
}

// ReservePlanner supplies the cash picture the budget is seeded from.
type ReservePlanner interface {
	Plan(ctx context.Context) (domain.ReservePlan, error)
}

// EventSink receives engine actions. Publish must not block for long and
// its failures never reach the engine.
type EventSink interface {
	Publish(ctx context.Context, ev domain.HedgeEvent)
}

type discardSink struct{}

func (discardSink) Publish(context.Context, domain.HedgeEvent) {}

// UnlimitedReserve is a planner with no cash constraint; per-hedge caps
// still apply.
type UnlimitedReserve struct{}

func (UnlimitedReserve) Plan(context.Context) (domain.ReservePlan, error) {
	return domain.ReservePlan{Mode: domain.ReserveUnlimited}, nil
}
