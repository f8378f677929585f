package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// OrderSubmitter places market orders.
type OrderSubmitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error)
}

// OrderHandler serves the manual order endpoint. Orders go through the same
// executor and market lock as engine actions.
type OrderHandler struct {
	orders  OrderSubmitter
	locks   domain.LockManager
	lockTTL time.Duration
	logger  *slog.Logger
}

func NewOrderHandler(orders OrderSubmitter, locks domain.LockManager, lockTTL time.Duration, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, locks: locks, lockTTL: lockTTL, logger: logger}
}

type placeOrderRequest struct {
	MarketID   string  `json:"market_id"`
	TokenID    string  `json:"token_id"`
	Outcome    string  `json:"outcome"`
	Side       string  `json:"side"`
	SizeUSD    float64 `json:"size_usd"`
	Shares     float64 `json:"shares"`
	PriceLimit float64 `json:"price_limit"`
}

func (req placeOrderRequest) validate() error {
	switch {
	case req.MarketID == "" || req.TokenID == "":
		return errors.New("market_id and token_id are required")
	case req.Side != string(domain.OrderSideBuy) && req.Side != string(domain.OrderSideSell):
		return errors.New("side must be buy or sell")
	case req.SizeUSD <= 0 && req.Shares <= 0:
		return errors.New("size_usd or shares must be positive")
	case req.PriceLimit < 0 || req.PriceLimit > 1:
		return errors.New("price_limit must be within [0,1]")
	}
	return nil
}

// PlaceOrder submits a market order while holding the market lock.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Side = strings.ToLower(req.Side)
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	release, err := h.locks.Acquire(ctx, domain.MarketLockKey(req.MarketID), h.lockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		writeError(w, http.StatusConflict, "market is busy")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: acquire market lock", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "lock unavailable")
		return
	}
	defer release()

	res, err := h.orders.Submit(ctx, domain.SubmitRequest{
		MarketID:   req.MarketID,
		TokenID:    req.TokenID,
		Outcome:    domain.ParseOutcome(req.Outcome),
		Side:       domain.OrderSide(req.Side),
		SizeUSD:    req.SizeUSD,
		Shares:     req.Shares,
		PriceLimit: req.PriceLimit,
		SkipDedup:  true,
		Reason:     "manual",
	})
	switch {
	case errors.Is(err, domain.ErrNoWallet):
		writeError(w, http.StatusServiceUnavailable, "no wallet configured")
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "handler: submit order", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "order submission failed")
		return
	}

	h.logger.InfoContext(ctx, "handler: manual order",
		slog.String("market_id", req.MarketID),
		slog.String("side", req.Side),
		slog.String("status", string(res.Status)),
		slog.String("reason", res.Reason),
	)
	writeJSON(w, submitStatusCode(res), toSubmitView(res))
}

// submitStatusCode answers 409 when the book moved under the order, so the
// caller may retry, and 422 for every other rejection.
func submitStatusCode(res domain.SubmitResult) int {
	err := res.Err()
	switch {
	case res.Submitted():
		return http.StatusOK
	case errors.Is(err, domain.ErrPriceMoved), errors.Is(err, domain.ErrNoLiquidity):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
