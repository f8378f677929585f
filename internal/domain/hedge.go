package domain

import "time"

// HedgePairing links an original losing position to the opposite-side
// hedge bought against it.
type HedgePairing struct {
	OriginalKey     string
	MarketID        string
	OriginalTokenID string
	HedgeTokenID    string
	SpentUSD        float64
	CreatedAt       time.Time
}

// HedgeKey is the position key of the hedge leg.
func (p HedgePairing) HedgeKey() string {
	return PositionKey(p.MarketID, p.HedgeTokenID)
}

// HedgeCode is the outcome of a single hedge-down attempt.
type HedgeCode string

const (
	HedgeOK                HedgeCode = "HEDGED"
	HedgePartialFill       HedgeCode = "PARTIAL_FILL"
	HedgeNoOppositeToken   HedgeCode = "NO_OPPOSITE_TOKEN"
	HedgeNoLiquidity       HedgeCode = "NO_LIQUIDITY"
	HedgeMarketResolved    HedgeCode = "MARKET_RESOLVED"
	HedgeTooExpensive      HedgeCode = "TOO_EXPENSIVE"
	HedgeNoCashAvailable   HedgeCode = "NO_CASH_AVAILABLE"
	HedgeReserveShortfall  HedgeCode = "RESERVE_SHORTFALL"
	HedgeBelowMinSize      HedgeCode = "BELOW_MIN_SIZE"
	HedgeInsufficientFunds HedgeCode = "INSUFFICIENT_FUNDS"
	HedgeOrderRejected     HedgeCode = "ORDER_REJECTED"
)

// Spent reports whether the attempt moved money.
func (c HedgeCode) Spent() bool {
	return c == HedgeOK || c == HedgePartialFill
}

// SkipReason tags why a position was not acted on this cycle.
type SkipReason string

const (
	SkipAlreadyHedged   SkipReason = "already_hedged"
	SkipCooldown        SkipReason = "cooldown"
	SkipInvalidBook     SkipReason = "invalid_book"
	SkipUntrustedPnL    SkipReason = "untrusted_pnl"
	SkipNotTradable     SkipReason = "not_tradable"
	SkipLossBelowTrig   SkipReason = "loss_below_trigger"
	SkipEntryPriceHigh  SkipReason = "entry_price_high"
	SkipNoSide          SkipReason = "no_side"
	SkipRedeemable      SkipReason = "redeemable"
	SkipNearResolution  SkipReason = "near_resolution"
	SkipHoldTimeShort   SkipReason = "hold_time_short"
	SkipNoHedgeWindow   SkipReason = "no_hedge_window"
	SkipNoHedgeSmall    SkipReason = "no_hedge_window_small_loss"
	SkipNearCloseThresh SkipReason = "near_close_threshold"
	SkipPastEndTime     SkipReason = "past_end_time"
	SkipLockUnavailable SkipReason = "hedge_lock_unavailable"

	SkipNotWinning       SkipReason = "not_winning"
	SkipHedgeUpPriceLow  SkipReason = "hedge_up_price_low"
	SkipHedgeUpCeiling   SkipReason = "hedge_up_price_ceiling"
	SkipHedgeUpOutside   SkipReason = "hedge_up_outside_window"
	SkipHedgeUpDone      SkipReason = "hedge_up_done"
	SkipHedgeUpNoBudget  SkipReason = "hedge_up_no_budget"
	SkipHedgeUpBelowMin  SkipReason = "hedge_up_below_min"
	SkipHedgeUpRejected  SkipReason = "hedge_up_rejected"
	SkipHedgeUpNoLiquid  SkipReason = "hedge_up_no_liquidity"
	SkipPanicked         SkipReason = "internal_error"
)

// HedgeEventKind names an engine action reported to operators.
type HedgeEventKind string

const (
	EventHedgePlaced        HedgeEventKind = "hedge_placed"
	EventHedgePartial       HedgeEventKind = "hedge_partial"
	EventHedgeUpPlaced      HedgeEventKind = "hedge_up_placed"
	EventHedgeExited        HedgeEventKind = "hedge_exited"
	EventPositionSold       HedgeEventKind = "position_sold"
	EventPositionLiquidated HedgeEventKind = "position_liquidated"
	EventFundsFreed         HedgeEventKind = "funds_freed"
)

// HedgeEvent is a single engine action, published fire-and-forget.
type HedgeEvent struct {
	ID        string
	Kind      HedgeEventKind
	MarketID  string
	TokenID   string
	AmountUSD float64
	Price     float64
	Reason    string
	Simulated bool
	At        time.Time
}
