package domain

import (
	"math/big"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// OrderStatus tracks the venue-side order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusDelayed   OrderStatus = "delayed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order is a signed order ready for the CLOB.
type Order struct {
	ID            string
	MarketID      string
	TokenID       string
	Maker         string // funder address holding the collateral
	Signer        string
	Owner         string // API key the order is posted under
	Side          OrderSide
	Type          OrderType
	PriceTicks    int64    // fixed-point: price * 1e6
	SizeUnits     int64    // fixed-point: size  * 1e6
	MakerAmount   *big.Int // integer notional used in signed payload
	TakerAmount   *big.Int // integer quantity used in signed payload
	Salt          string
	FeeRateBps    int
	SignatureType int
	NegRisk       bool
	Signature     string // EIP-712 hex
	CreatedAt     time.Time
}

// Price returns the float64 display price from fixed-point ticks.
func (o Order) Price() float64 {
	return float64(o.PriceTicks) / 1e6
}

// Size returns the float64 display size from fixed-point units.
func (o Order) Size() float64 {
	return float64(o.SizeUnits) / 1e6
}

// MarketOrder is a fill-and-kill order before signing.
type MarketOrder struct {
	MarketID string
	TokenID  string
	Side     OrderSide
	Amount   float64 // USD for buys, shares for sells
	Price    float64 // worst acceptable price
}

// OrderResult wraps the venue response after order placement.
type OrderResult struct {
	Success      bool
	OrderID      string
	Status       OrderStatus
	Message      string
	ShouldRetry  bool
	MakingAmount float64 // what we gave: USDC for buys, shares for sells
	TakingAmount float64 // what we got: shares for buys, USDC for sells
}

// SubmitStatus is the coarse outcome of an order submission.
type SubmitStatus string

const (
	SubmitSubmitted SubmitStatus = "submitted"
	SubmitRejected  SubmitStatus = "rejected"
)

// Reject reasons reported by the order execution service.
const (
	RejectInsufficientBalance = "INSUFFICIENT_BALANCE"
	RejectPriceMoved          = "PRICE_MOVED"
	RejectNoLiquidity         = "NO_LIQUIDITY"
	RejectDuplicate           = "DUPLICATE"
	RejectPartialFill         = "PARTIAL_FILL"
	RejectVenue               = "VENUE_REJECTED"
	RejectNoWallet            = "NO_WALLET"
	RejectInvalid             = "INVALID_ORDER"
	RejectBelowMinimum        = "BELOW_MIN_ORDER"
)

// SubmitRequest asks the execution service to place a market order.
type SubmitRequest struct {
	MarketID string
	TokenID  string
	Outcome  Outcome
	Side     OrderSide
	SizeUSD  float64
	// Shares, when set on a sell, is the exact share count to sell.
	Shares float64
	// PriceLimit is the worst acceptable price: max for buys, min for sells.
	// Zero disables price protection.
	PriceLimit float64
	// SkipDedup bypasses the buy dedup window for intentional repeat buys.
	SkipDedup bool
	Reason    string
}

// SubmitResult is what the execution service reports back. A rejected
// result with a non-zero FilledUSD is a partial fill: money was spent.
type SubmitResult struct {
	Status    SubmitStatus
	Reason    string
	OrderID   string
	FilledUSD float64
	Simulated bool
}

// Err maps a rejection to its sentinel error. It is nil for submitted
// results and for reasons without one.
func (r SubmitResult) Err() error {
	if r.Submitted() {
		return nil
	}
	switch r.Reason {
	case RejectInsufficientBalance:
		return ErrInsufficientFunds
	case RejectNoLiquidity:
		return ErrNoLiquidity
	case RejectPriceMoved:
		return ErrPriceMoved
	case RejectNoWallet:
		return ErrNoWallet
	case RejectInvalid:
		return ErrInvalidOrder
	default:
		return nil
	}
}

func (r SubmitResult) Submitted() bool {
	return r.Status == SubmitSubmitted
}

// PartialFill reports a rejected submission that still consumed cash.
func (r SubmitResult) PartialFill() bool {
	return r.Status != SubmitSubmitted && r.FilledUSD > 0
}

// Spent is the USD that left the account because of this submission.
func (r SubmitResult) Spent(requested float64) float64 {
	if r.FilledUSD > 0 {
		return r.FilledUSD
	}
	if r.Submitted() {
		return requested
	}
	return 0
}
