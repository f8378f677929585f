package hedging

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Stats is a snapshot of engine counters and table sizes.
type Stats struct {
	Cycles           int64     `json:"cycles"`
	ContendedCycles  int64     `json:"contended_cycles"`
	LastCycleAt      time.Time `json:"last_cycle_at"`
	LastCycleActions int       `json:"last_cycle_actions"`
	LastCycleSeconds float64   `json:"last_cycle_seconds"`

	HedgesPlaced        int64   `json:"hedges_placed"`
	PartialFills        int64   `json:"partial_fills"`
	HedgeUps            int64   `json:"hedge_ups"`
	Exits               int64   `json:"exits"`
	Liquidations        int64   `json:"liquidations"`
	LiquidationFailures int64   `json:"liquidation_failures"`
	FundingSales        int64   `json:"funding_sales"`
	HedgeSpentUSD       float64 `json:"hedge_spent_usd"`
	HedgeUpSpentUSD     float64 `json:"hedge_up_spent_usd"`
	FreedUSD            float64 `json:"freed_usd"`

	LastSkips map[domain.SkipReason]int `json:"last_skips"`
	Budget    BudgetStats               `json:"budget"`
	Memory    MemoryStats               `json:"memory"`
}

func (e *Engine) record(fn func(*Stats)) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	fn(&e.stats)
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	s := e.stats
	s.LastSkips = maps.Clone(e.stats.LastSkips)
	e.statsMu.Unlock()

	s.Budget = e.budget.Stats()
	s.Memory = e.mem.Stats()
	return s
}

// LiquidationCandidates lists unhedged losing positions, largest loss first.
func (e *Engine) LiquidationCandidates(ctx context.Context) ([]domain.Position, error) {
	cands, err := e.positions.LossCandidates(ctx, e.mem.IsHedged)
	if err != nil {
		return nil, fmt.Errorf("hedging: loss candidates: %w", err)
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].LossPct() > cands[j].LossPct() })
	return cands, nil
}

// LiquidationCandidatesValue is what selling every candidate at its best
// bid would realise.
func (e *Engine) LiquidationCandidatesValue(ctx context.Context) (float64, error) {
	cands, err := e.LiquidationCandidates(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, p := range cands {
		total += p.Shares * p.SalePrice()
	}
	return RoundUSD(total), nil
}

// RequiredReserve is the cash to hold back for future hedges: one maximum
// hedge per unhedged position past the trigger, capped at MaxReserveUSD.
func (e *Engine) RequiredReserve(ctx context.Context) (float64, error) {
	cands, err := e.positions.LossCandidates(ctx, e.mem.IsHedged)
	if err != nil {
		return 0, fmt.Errorf("hedging: loss candidates: %w", err)
	}
	n := 0
	for _, p := range cands {
		if p.LossPct() >= e.opts.TriggerLossPct {
			n++
		}
	}
	return math.Min(e.opts.MaxReserveUSD, float64(n)*e.opts.MaxHedgeUSD), nil
}

// Pairings exposes the active hedge pairings.
func (e *Engine) Pairings() []domain.HedgePairing {
	return e.mem.Pairings()
}

// Unhedge re-arms a position previously marked hedged.
func (e *Engine) Unhedge(marketID, tokenID string) bool {
	return e.mem.Unhedge(domain.PositionKey(marketID, tokenID))
}
