package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// EventLister reads the hedge journal.
type EventLister interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.HedgeEvent, error)
}

type EventsHandler struct {
	events EventLister
	logger *slog.Logger
}

func NewEventsHandler(events EventLister, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: logger}
}

type eventView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	MarketID  string    `json:"market_id"`
	TokenID   string    `json:"token_id"`
	AmountUSD float64   `json:"amount_usd"`
	Price     float64   `json:"price"`
	Reason    string    `json:"reason,omitempty"`
	Simulated bool      `json:"simulated"`
	At        time.Time `json:"at"`
}

// ListEvents returns journal rows newest first.
// GET /api/events?limit=50&offset=0&since=RFC3339&until=RFC3339
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.events.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list hedge events", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	views := make([]eventView, len(events))
	for i, ev := range events {
		views[i] = eventView{
			ID:        ev.ID,
			Kind:      string(ev.Kind),
			MarketID:  ev.MarketID,
			TokenID:   ev.TokenID,
			AmountUSD: ev.AmountUSD,
			Price:     ev.Price,
			Reason:    ev.Reason,
			Simulated: ev.Simulated,
			At:        ev.At,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

// parseListOpts reads limit (default 50, max 500), offset and an optional
// since/until window. Bad numbers fall back to defaults; bad times are
// rejected.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: 50}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, 500)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		opts.Offset = n
	}
	for key, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.ListOpts{}, fmt.Errorf("%s must be an RFC3339 timestamp", key)
		}
		*dst = &t
	}
	return opts, nil
}
