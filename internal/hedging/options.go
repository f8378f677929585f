// Package hedging implements the position risk engine: each cycle it
// amplifies near-certain winners, protects losers by buying the opposite
// outcome (liquidating only at catastrophic loss), and salvages collapsed
// legs of earlier hedges, all under one shared cash budget.
package hedging

import (
	"errors"
	"fmt"
	"time"
)

// ReservePolicy decides whether hedges may spend cash earmarked as reserve.
type ReservePolicy string

const (
	// ReserveFull lets hedges spend all available cash, reserve included.
	ReserveFull ReservePolicy = "full"
	// ReserveExclude caps hedge spend at available cash minus the reserve.
	ReserveExclude ReservePolicy = "exclude_reserve"
)

// Options holds every engine threshold. Prices are dollars in [0,1];
// percentages are whole percents (20 means 20%).
type Options struct {
	// Eligibility.
	TriggerLossPct      float64
	ForceLiquidationPct float64
	EmergencyLossPct    float64
	MaxEntryPrice       float64
	MinHoldTime         time.Duration
	MaxBookSpread       float64
	MaxMarkDivergence   float64

	// Sizing.
	MaxHedgeUSD        float64
	MinHedgeUSD        float64
	BreakEvenBufferPct float64
	SlippagePct        float64
	TakerFeePct        float64

	// Opposite-side price thresholds.
	TooExpensivePrice               float64
	NearResolutionTooExpensivePrice float64
	MarketResolvedPrice             float64

	// Temporal windows.
	NearResolutionHedge     bool
	NoHedgeWindow           time.Duration
	NoHedgeWindowMinLossPct float64
	NearCloseWindow         time.Duration
	NearCloseMinDropCents   float64
	NearCloseMinLossPct     float64

	// Hedge-up.
	HedgeUpEnabled  bool
	HedgeUpMinPrice float64
	HedgeUpMaxPrice float64
	HedgeUpAnytime  bool
	HedgeUpWindow   time.Duration
	HedgeUpMaxUSD   float64

	// Exit monitor.
	ExitEnabled bool
	ExitPrice   float64

	// Budget.
	ReservePolicy   ReservePolicy
	AllowPartial    bool
	MaxReserveUSD   float64
	FundingEnabled  bool
	FundingMaxSales int

	// Memory bounds.
	CooldownDuration time.Duration
	MaxCooldowns     int
	PairingTTL       time.Duration
	MaxPairings      int
	MaxTracked       int

	LockTTL         time.Duration
	SkipLogInterval time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TriggerLossPct:      20,
		ForceLiquidationPct: 50,
		EmergencyLossPct:    40,
		MaxEntryPrice:       0.75,
		MinHoldTime:         2 * time.Minute,
		MaxBookSpread:       0.20,
		MaxMarkDivergence:   0.15,

		MaxHedgeUSD:        25,
		MinHedgeUSD:        1,
		BreakEvenBufferPct: 10,
		SlippagePct:        2,
		TakerFeePct:        1,

		TooExpensivePrice:               0.85,
		NearResolutionTooExpensivePrice: 0.90,
		MarketResolvedPrice:             0.95,

		NearResolutionHedge:     true,
		NoHedgeWindow:           3 * time.Minute,
		NoHedgeWindowMinLossPct: 30,
		NearCloseWindow:         15 * time.Minute,
		NearCloseMinDropCents:   10,
		NearCloseMinLossPct:     30,

		HedgeUpEnabled:  true,
		HedgeUpMinPrice: 0.85,
		HedgeUpMaxPrice: 0.95,
		HedgeUpWindow:   30 * time.Minute,
		HedgeUpMaxUSD:   25,

		ExitEnabled: true,
		ExitPrice:   0.25,

		ReservePolicy:   ReserveFull,
		AllowPartial:    true,
		MaxReserveUSD:   100,
		FundingEnabled:  true,
		FundingMaxSales: 5,

		CooldownDuration: 10 * time.Minute,
		MaxCooldowns:     1000,
		PairingTTL:       7 * 24 * time.Hour,
		MaxPairings:      500,
		MaxTracked:       5000,

		LockTTL:         30 * time.Second,
		SkipLogInterval: time.Minute,
	}
}

// Validate reports every inconsistent threshold at once.
func (o Options) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	price := func(v float64) bool { return v > 0 && v < 1 }

	check(o.TriggerLossPct > 0 && o.TriggerLossPct < 100, "trigger_loss_pct must be in (0,100), got %v", o.TriggerLossPct)
	check(o.ForceLiquidationPct >= o.TriggerLossPct, "force_liquidation_pct (%v) must be >= trigger_loss_pct (%v)", o.ForceLiquidationPct, o.TriggerLossPct)
	check(o.EmergencyLossPct >= o.TriggerLossPct, "emergency_loss_pct (%v) must be >= trigger_loss_pct (%v)", o.EmergencyLossPct, o.TriggerLossPct)
	check(price(o.MaxEntryPrice), "max_entry_price must be in (0,1), got %v", o.MaxEntryPrice)
	check(o.MinHoldTime >= 0, "min_hold_time must not be negative")
	check(o.MaxHedgeUSD > 0, "max_hedge_usd must be positive")
	check(o.MinHedgeUSD >= 0 && o.MinHedgeUSD <= o.MaxHedgeUSD, "min_hedge_usd (%v) must be in [0, max_hedge_usd]", o.MinHedgeUSD)
	check(o.SlippagePct >= 0 && o.SlippagePct < 50, "slippage_pct must be in [0,50), got %v", o.SlippagePct)
	check(o.TakerFeePct >= 0 && o.TakerFeePct < 100, "taker_fee_pct must be in [0,100), got %v", o.TakerFeePct)
	check(price(o.TooExpensivePrice), "too_expensive_price must be in (0,1)")
	check(price(o.MarketResolvedPrice), "market_resolved_price must be in (0,1)")
	check(o.TooExpensivePrice < o.MarketResolvedPrice, "too_expensive_price must be below market_resolved_price")
	check(o.NearResolutionTooExpensivePrice >= o.TooExpensivePrice && o.NearResolutionTooExpensivePrice < o.MarketResolvedPrice,
		"near_resolution_too_expensive_price must be in [too_expensive_price, market_resolved_price)")
	check(o.NoHedgeWindow <= o.NearCloseWindow, "no_hedge_window must not exceed near_close_window")
	if o.HedgeUpEnabled {
		check(price(o.HedgeUpMinPrice) && price(o.HedgeUpMaxPrice) && o.HedgeUpMinPrice < o.HedgeUpMaxPrice,
			"hedge_up prices must satisfy 0 < min < max < 1")
		check(o.HedgeUpMaxUSD > 0, "hedge_up_max_usd must be positive")
	}
	if o.ExitEnabled {
		check(price(o.ExitPrice), "exit_price must be in (0,1)")
	}
	check(o.ReservePolicy == ReserveFull || o.ReservePolicy == ReserveExclude, "reserve_policy must be %q or %q, got %q", ReserveFull, ReserveExclude, o.ReservePolicy)
	check(o.MaxCooldowns > 0 && o.MaxPairings > 0 && o.MaxTracked > 0, "memory caps must be positive")
	check(o.LockTTL > 0, "lock_ttl must be positive")

	if len(errs) > 0 {
		return fmt.Errorf("hedging: invalid options: %w", errors.Join(errs...))
	}
	return nil
}

func (o Options) catastrophic(lossPct float64) bool {
	return lossPct >= o.ForceLiquidationPct
}
