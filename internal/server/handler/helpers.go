// Package handler holds the operator HTTP endpoints.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// writeJSON marshals v and writes it with status; a marshal failure becomes
// a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// positionView is the wire form of a domain.Position.
type positionView struct {
	Key          string     `json:"key"`
	MarketID     string     `json:"market_id"`
	TokenID      string     `json:"token_id"`
	Outcome      string     `json:"outcome"`
	Shares       float64    `json:"shares"`
	EntryPrice   float64    `json:"entry_price"`
	CurrentPrice float64    `json:"current_price"`
	BestBid      float64    `json:"best_bid"`
	PnLPct       float64    `json:"pnl_pct"`
	ExecStatus   string     `json:"exec_status"`
	SaleValueUSD float64    `json:"sale_value_usd"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

func toPositionView(p domain.Position) positionView {
	return positionView{
		Key:          p.Key(),
		MarketID:     p.MarketID,
		TokenID:      p.TokenID,
		Outcome:      p.Outcome.String(),
		Shares:       p.Shares,
		EntryPrice:   p.EntryPrice,
		CurrentPrice: p.CurrentPrice,
		BestBid:      p.BestBid,
		PnLPct:       p.PnLPct,
		ExecStatus:   string(p.ExecStatus),
		SaleValueUSD: p.Shares * p.SalePrice(),
		EndTime:      p.EndTime,
	}
}

type submitView struct {
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	OrderID   string  `json:"order_id,omitempty"`
	FilledUSD float64 `json:"filled_usd"`
	Simulated bool    `json:"simulated"`
}

func toSubmitView(r domain.SubmitResult) submitView {
	return submitView{
		Status:    string(r.Status),
		Reason:    r.Reason,
		OrderID:   r.OrderID,
		FilledUSD: r.FilledUSD,
		Simulated: r.Simulated,
	}
}
