package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// flexBool accepts a JSON bool or a "true"/"false" string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// stringList decodes the Gamma habit of JSON-encoding arrays inside strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = direct
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(s), (*[]string)(l))
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// --------------------------------------------------------------------------
// CLOB
// --------------------------------------------------------------------------

type apiLevel struct {
	Price flexFloat `json:"price"`
	Size  flexFloat `json:"size"`
}

// apiBook is the public /book response.
type apiBook struct {
	Market       string     `json:"market"`
	AssetID      string     `json:"asset_id"`
	Timestamp    string     `json:"timestamp"`
	Bids         []apiLevel `json:"bids"`
	Asks         []apiLevel `json:"asks"`
	TickSize     flexFloat  `json:"tick_size"`
	MinOrderSize flexFloat  `json:"min_order_size"`
	NegRisk      bool       `json:"neg_risk"`
}

// toSnapshot orders both sides best-first and drops empty levels.
func (b apiBook) toSnapshot() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{AssetID: b.AssetID}
	for _, lvl := range b.Bids {
		if lvl.Size > 0 && lvl.Price > 0 {
			snap.Bids = append(snap.Bids, domain.PriceLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
		}
	}
	for _, lvl := range b.Asks {
		if lvl.Size > 0 && lvl.Price > 0 {
			snap.Asks = append(snap.Asks, domain.PriceLevel{Price: float64(lvl.Price), Size: float64(lvl.Size)})
		}
	}
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Price > snap.Bids[j].Price })
	sort.Slice(snap.Asks, func(i, j int) bool { return snap.Asks[i].Price < snap.Asks[j].Price })
	if len(snap.Bids) > 0 {
		snap.BestBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		snap.BestAsk = snap.Asks[0].Price
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}
	if ms, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil {
		snap.Timestamp = time.UnixMilli(ms).UTC()
	} else {
		snap.Timestamp = time.Now().UTC()
	}
	return snap
}

type apiOrderBody struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type apiPostOrder struct {
	Order     apiOrderBody `json:"order"`
	Owner     string       `json:"owner"`
	OrderType string       `json:"orderType"`
}

// apiOrderResult is the POST /order response.
type apiOrderResult struct {
	Success      bool      `json:"success"`
	ErrorMsg     string    `json:"errorMsg"`
	OrderID      string    `json:"orderID"`
	Status       string    `json:"status"`
	MakingAmount flexFloat `json:"makingAmount"`
	TakingAmount flexFloat `json:"takingAmount"`
}

func (r apiOrderResult) toDomain() domain.OrderResult {
	res := domain.OrderResult{
		Success:      r.Success && r.ErrorMsg == "",
		OrderID:      r.OrderID,
		Message:      r.ErrorMsg,
		MakingAmount: float64(r.MakingAmount),
		TakingAmount: float64(r.TakingAmount),
	}
	switch strings.ToLower(r.Status) {
	case "matched":
		res.Status = domain.OrderStatusMatched
	case "delayed":
		res.Status = domain.OrderStatusDelayed
		res.ShouldRetry = !res.Success
	case "live", "unmatched":
		res.Status = domain.OrderStatusPending
	default:
		if res.Success {
			res.Status = domain.OrderStatusPending
		} else {
			res.Status = domain.OrderStatusFailed
		}
	}
	return res
}

type apiBalance struct {
	Balance flexFloat `json:"balance"` // collateral in 1e6 units
}

type apiTickSize struct {
	MinimumTickSize flexFloat `json:"minimum_tick_size"`
}

type apiNegRisk struct {
	NegRisk bool `json:"neg_risk"`
}

// --------------------------------------------------------------------------
// Gamma
// --------------------------------------------------------------------------

// apiMarket is one Gamma /markets entry.
type apiMarket struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	ConditionID  string     `json:"conditionId"`
	Slug         string     `json:"slug"`
	EndDate      string     `json:"endDate"`
	Outcomes     stringList `json:"outcomes"`
	ClobTokenIDs stringList `json:"clobTokenIds"`
	Active       flexBool   `json:"active"`
	Closed       flexBool   `json:"closed"`
	NegRisk      flexBool   `json:"negRisk"`
	UpdatedAt    string     `json:"updatedAt"`
}

// toDomain keys the market by condition id, the identifier positions carry.
// Outcomes and tokens are kept only when they line up.
func (m apiMarket) toDomain() domain.Market {
	dm := domain.Market{
		ID:          m.ConditionID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		NegRisk:     bool(m.NegRisk),
	}
	if dm.ID == "" {
		dm.ID = m.ID
	}
	if len(m.Outcomes) == len(m.ClobTokenIDs) {
		dm.Outcomes = []string(m.Outcomes)
		dm.TokenIDs = []string(m.ClobTokenIDs)
	}
	switch {
	case bool(m.Closed):
		dm.Status = domain.MarketStatusClosed
	case bool(m.Active):
		dm.Status = domain.MarketStatusActive
	default:
		dm.Status = domain.MarketStatusSettled
	}
	if t, ok := parseTime(m.EndDate); ok {
		dm.EndDate = &t
	}
	if t, ok := parseTime(m.UpdatedAt); ok {
		dm.UpdatedAt = t
	}
	return dm
}

// --------------------------------------------------------------------------
// Data API
// --------------------------------------------------------------------------

// apiPosition is one Data API /positions entry.
type apiPosition struct {
	Asset         string    `json:"asset"`
	ConditionID   string    `json:"conditionId"`
	Size          flexFloat `json:"size"`
	AvgPrice      flexFloat `json:"avgPrice"`
	InitialValue  flexFloat `json:"initialValue"`
	CurrentValue  flexFloat `json:"currentValue"`
	PercentPnl    flexFloat `json:"percentPnl"`
	CurPrice      flexFloat `json:"curPrice"`
	Redeemable    bool      `json:"redeemable"`
	Title         string    `json:"title"`
	Outcome       string    `json:"outcome"`
	OppositeAsset string    `json:"oppositeAsset"`
	OppositeLabel string    `json:"oppositeOutcome"`
	EndDate       string    `json:"endDate"`
	NegativeRisk  bool      `json:"negativeRisk"`
}

func (p apiPosition) toHolding() domain.Holding {
	h := domain.Holding{
		MarketID:      p.ConditionID,
		TokenID:       p.Asset,
		Outcome:       p.Outcome,
		Title:         p.Title,
		Shares:        float64(p.Size),
		AvgPrice:      float64(p.AvgPrice),
		CurPrice:      float64(p.CurPrice),
		PercentPnL:    float64(p.PercentPnl),
		Redeemable:    p.Redeemable,
		OppositeToken: p.OppositeAsset,
		OppositeLabel: p.OppositeLabel,
	}
	if t, ok := parseTime(p.EndDate); ok {
		h.EndTime = &t
	}
	return h
}
