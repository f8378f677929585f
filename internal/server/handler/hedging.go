package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
	"github.com/alanyoungcy/polyhedge/internal/hedging"
)

// Engine is the slice of the hedging engine the API exposes.
type Engine interface {
	Execute(ctx context.Context) int
	Stats() hedging.Stats
	LiquidationCandidates(ctx context.Context) ([]domain.Position, error)
	RequiredReserve(ctx context.Context) (float64, error)
	Pairings() []domain.HedgePairing
	Unhedge(marketID, tokenID string) bool
}

// ReservePlanner reports the current cash picture.
type ReservePlanner interface {
	Plan(ctx context.Context) (domain.ReservePlan, error)
}

// HedgingHandler serves engine state and the manual cycle trigger.
type HedgingHandler struct {
	engine  Engine
	reserve ReservePlanner
	timeout time.Duration
	logger  *slog.Logger
}

func NewHedgingHandler(engine Engine, reserve ReservePlanner, cycleTimeout time.Duration, logger *slog.Logger) *HedgingHandler {
	return &HedgingHandler{engine: engine, reserve: reserve, timeout: cycleTimeout, logger: logger}
}

// GET /api/stats
func (h *HedgingHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// LiquidationCandidates lists unhedged losers with their total sale value.
// GET /api/liquidation-candidates
func (h *HedgingHandler) LiquidationCandidates(w http.ResponseWriter, r *http.Request) {
	cands, err := h.engine.LiquidationCandidates(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: liquidation candidates", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "positions unavailable")
		return
	}
	views := make([]positionView, len(cands))
	var total float64
	for i, p := range cands {
		views[i] = toPositionView(p)
		total += views[i].SaleValueUSD
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(views),
		"value_usd": hedging.RoundUSD(total),
		"positions": views,
	})
}

// GET /api/reserve
func (h *HedgingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	plan, err := h.reserve.Plan(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: reserve plan", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "balance unavailable")
		return
	}
	required, err := h.engine.RequiredReserve(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: required reserve", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available_usd":     plan.AvailableCash,
		"reserve_usd":       plan.ReserveRequired,
		"spendable_usd":     plan.Spendable(),
		"mode":              plan.Mode,
		"hedge_reserve_usd": required,
	})
}

// Cycle runs one engine cycle now. A cycle already in flight makes this a
// no-op that reports zero actions.
// POST /api/cycle
func (h *HedgingHandler) Cycle(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	started := time.Now()
	actions := h.engine.Execute(ctx)
	writeJSON(w, http.StatusOK, map[string]any{
		"actions":     actions,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

type pairingView struct {
	OriginalKey     string    `json:"original_key"`
	MarketID        string    `json:"market_id"`
	OriginalTokenID string    `json:"original_token_id"`
	HedgeTokenID    string    `json:"hedge_token_id"`
	SpentUSD        float64   `json:"spent_usd"`
	CreatedAt       time.Time `json:"created_at"`
}

// GET /api/pairings
func (h *HedgingHandler) Pairings(w http.ResponseWriter, _ *http.Request) {
	pairs := h.engine.Pairings()
	views := make([]pairingView, len(pairs))
	for i, p := range pairs {
		views[i] = pairingView{
			OriginalKey:     p.OriginalKey,
			MarketID:        p.MarketID,
			OriginalTokenID: p.OriginalTokenID,
			HedgeTokenID:    p.HedgeTokenID,
			SpentUSD:        p.SpentUSD,
			CreatedAt:       p.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// Unhedge re-arms a position so a later cycle may hedge it again.
// DELETE /api/hedged/{market}/{token}
func (h *HedgingHandler) Unhedge(w http.ResponseWriter, r *http.Request) {
	market, token := r.PathValue("market"), r.PathValue("token")
	if !h.engine.Unhedge(market, token) {
		writeError(w, http.StatusNotFound, "position is not marked hedged")
		return
	}
	h.logger.InfoContext(r.Context(), "handler: position re-armed",
		slog.String("market_id", market),
		slog.String("token", token),
	)
	w.WriteHeader(http.StatusNoContent)
}
