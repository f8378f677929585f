package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a full snapshot of bids and asks for an asset.
type OrderbookSnapshot struct {
	AssetID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Timestamp time.Time
}

// Quote is the top of book for a single token.
type Quote struct {
	TokenID   string
	BestBid   float64
	BestAsk   float64
	BidSize   float64
	AskSize   float64
	Timestamp time.Time
}

// Quote reduces a snapshot to its top of book.
func (s OrderbookSnapshot) Quote() Quote {
	q := Quote{TokenID: s.AssetID, BestBid: s.BestBid, BestAsk: s.BestAsk, Timestamp: s.Timestamp}
	if len(s.Bids) > 0 {
		q.BidSize = s.Bids[0].Size
	}
	if len(s.Asks) > 0 {
		q.AskSize = s.Asks[0].Size
	}
	return q
}

// HasAsk reports whether anyone is selling.
func (q Quote) HasAsk() bool {
	return q.BestAsk > 0 && q.BestAsk < 1
}

// HasBid reports whether anyone is buying.
func (q Quote) HasBid() bool {
	return q.BestBid > 0
}

// Spread is ask minus bid, or 1 when either side is missing.
func (q Quote) Spread() float64 {
	if !q.HasAsk() || !q.HasBid() {
		return 1
	}
	return q.BestAsk - q.BestBid
}

// Mid is the midpoint when both sides exist.
func (q Quote) Mid() float64 {
	if !q.HasAsk() || !q.HasBid() {
		return 0
	}
	return (q.BestAsk + q.BestBid) / 2
}
