package domain

import "time"

// ExecStatus describes whether a position can currently be traded on the venue.
type ExecStatus string

const (
	ExecTradable    ExecStatus = "tradable"
	ExecNotTradable ExecStatus = "not_tradable"
	ExecBlocked     ExecStatus = "execution_blocked"
)

// NearResolutionPrice is the price at or above which a position is treated
// as an effectively settled winner.
const NearResolutionPrice = 0.995

// IsNearResolutionPrice applies the near-resolution threshold with a
// sanity floor so a bad price unit (cents vs dollars) never marks a loser.
func IsNearResolutionPrice(price float64) bool {
	return price >= 0.5 && price >= NearResolutionPrice && price <= 1
}

// Position is an open holding in a single outcome token, as seen by the
// snapshot provider at the start of a cycle.
type Position struct {
	MarketID       string
	TokenID        string
	Outcome        Outcome
	Shares         float64
	EntryPrice     float64 // dollars, [0,1]
	CurrentPrice   float64
	BestBid        float64
	BestAsk        float64
	MarkPrice      float64 // independent mark used to sanity-check the book
	PnLPct         float64 // signed, percent
	PnLTrusted     bool
	ExecStatus     ExecStatus
	Redeemable     bool
	NearResolution bool
	EndTime        *time.Time
	OpenedAt       time.Time
}

// PositionKey builds the identity used by every engine table.
func PositionKey(marketID, tokenID string) string {
	return marketID + ":" + tokenID
}

func (p Position) Key() string {
	return PositionKey(p.MarketID, p.TokenID)
}

// ShortID is a log-friendly token prefix.
func (p Position) ShortID() string {
	if len(p.TokenID) <= 8 {
		return p.TokenID
	}
	return p.TokenID[:8]
}

// LossPct is the unsigned loss percentage; zero for winning positions.
func (p Position) LossPct() float64 {
	if p.PnLPct >= 0 {
		return 0
	}
	return -p.PnLPct
}

// CostBasis is the USD originally paid for the position.
func (p Position) CostBasis() float64 {
	return p.Shares * p.EntryPrice
}

// SalePrice is the price a market sell would realise: best bid when there
// is one, otherwise the current price.
func (p Position) SalePrice() float64 {
	if p.BestBid > 0 {
		return p.BestBid
	}
	return p.CurrentPrice
}

// FallbackPrice is the independent price used when the book cannot be trusted.
func (p Position) FallbackPrice() float64 {
	if p.MarkPrice > 0 {
		return p.MarkPrice
	}
	return p.CurrentPrice
}

// MinutesToClose returns the minutes until EndTime; ok is false when the
// market has no known end time.
func (p Position) MinutesToClose(now time.Time) (minutes float64, ok bool) {
	if p.EndTime == nil {
		return 0, false
	}
	return p.EndTime.Sub(now).Minutes(), true
}

// Holding is a venue-reported position before it is enriched with live
// quotes and derived risk fields.
type Holding struct {
	MarketID      string
	TokenID       string
	Outcome       string
	Title         string
	Shares        float64
	AvgPrice      float64
	CurPrice      float64 // venue mark
	PercentPnL    float64
	Redeemable    bool
	OppositeToken string
	OppositeLabel string
	EndTime       *time.Time
}
