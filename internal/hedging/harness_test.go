package hedging

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeOrders struct {
	mu      sync.Mutex
	reqs    []domain.SubmitRequest
	respond func(n int, req domain.SubmitRequest) (domain.SubmitResult, error)
}

func (f *fakeOrders) Submit(_ context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(n, req)
	}
	return domain.SubmitResult{Status: domain.SubmitSubmitted, FilledUSD: req.SizeUSD}, nil
}

func (f *fakeOrders) requests() []domain.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SubmitRequest(nil), f.reqs...)
}

func (f *fakeOrders) bySide(side domain.OrderSide) []domain.SubmitRequest {
	var out []domain.SubmitRequest
	for _, r := range f.requests() {
		if r.Side == side {
			out = append(out, r)
		}
	}
	return out
}

type fakePositions struct {
	mu        sync.Mutex
	positions []domain.Position
	entries   map[string]time.Time
	hook      func()
	err       error
}

func (f *fakePositions) set(ps ...domain.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = ps
}

func (f *fakePositions) Snapshot(context.Context) ([]domain.Position, error) {
	if f.hook != nil {
		f.hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Position(nil), f.positions...), nil
}

func (f *fakePositions) EntryTime(marketID, tokenID string) (time.Time, bool) {
	t, ok := f.entries[domain.PositionKey(marketID, tokenID)]
	return t, ok
}

func (f *fakePositions) filter(keep func(domain.Position) bool, exclude func(string) bool) []domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, p := range f.positions {
		if keep(p) && (exclude == nil || !exclude(p.Key())) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakePositions) ProfitableCandidates(_ context.Context, exclude func(string) bool) ([]domain.Position, error) {
	out := f.filter(func(p domain.Position) bool { return p.PnLPct > 0 }, exclude)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PnLPct < out[j].PnLPct })
	return out, nil
}

func (f *fakePositions) LossCandidates(_ context.Context, exclude func(string) bool) ([]domain.Position, error) {
	out := f.filter(func(p domain.Position) bool { return p.PnLPct < 0 }, exclude)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LossPct() > out[j].LossPct() })
	return out, nil
}

// fakeMarkets maps a token to its opposite.
type fakeMarkets map[string]domain.OutcomeToken

func (f fakeMarkets) Opposite(_ context.Context, _, tokenID string) (*domain.OutcomeToken, error) {
	opp, ok := f[tokenID]
	if !ok {
		return nil, nil
	}
	return &opp, nil
}

type fakeBooks struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	reads  map[string]int
}

func (f *fakeBooks) set(tokenID string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[tokenID] = domain.Quote{TokenID: tokenID, BestBid: bid, BestAsk: ask, AskSize: 1000, BidSize: 1000}
}

func (f *fakeBooks) Quote(_ context.Context, tokenID string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[tokenID]++
	return f.quotes[tokenID], nil
}

type fakeReserve struct {
	plan domain.ReservePlan
	err  error
}

func (f *fakeReserve) Plan(context.Context) (domain.ReservePlan, error) {
	return f.plan, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.HedgeEvent
}

func (s *recordingSink) Publish(_ context.Context, ev domain.HedgeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []domain.HedgeEventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HedgeEventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	engine    *Engine
	orders    *fakeOrders
	positions *fakePositions
	markets   fakeMarkets
	books     *fakeBooks
	reserve   *fakeReserve
	events    *recordingSink
	locks     *LocalLocks
	clock     time.Time
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.HedgeUpEnabled = false
	opts.SkipLogInterval = 0
	return opts
}

func newHarness(t *testing.T, opts Options, positions ...domain.Position) *harness {
	t.Helper()
	h := &harness{
		orders:    &fakeOrders{},
		positions: &fakePositions{positions: positions, entries: map[string]time.Time{}},
		markets:   fakeMarkets{},
		books:     &fakeBooks{quotes: map[string]domain.Quote{}, reads: map[string]int{}},
		reserve:   &fakeReserve{plan: domain.ReservePlan{AvailableCash: 100, Mode: domain.ReserveNormal}},
		events:    &recordingSink{},
		locks:     NewLocalLocks(),
		clock:     testNow,
	}
	h.locks.now = func() time.Time { return h.clock }
	eng, err := New(opts, Deps{
		Orders:    h.orders,
		Positions: h.positions,
		Markets:   h.markets,
		Books:     h.books,
		Reserve:   h.reserve,
		Events:    h.events,
		Locks:     h.locks,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return h.clock },
	})
	require.NoError(t, err)
	h.engine = eng
	return h
}

// pair registers tokenID and oppositeID as the two sides of one market,
// with the opposite side quoted at ask.
func (h *harness) pair(tokenID, oppositeID string, ask float64) {
	h.markets[tokenID] = domain.OutcomeToken{TokenID: oppositeID, Label: "No"}
	h.markets[oppositeID] = domain.OutcomeToken{TokenID: tokenID, Label: "Yes"}
	h.books.set(oppositeID, ask-0.01, ask)
}

// position builds a tradable, trusted position with PnL derived from prices.
func position(marketID, tokenID string, entry, current, shares float64) domain.Position {
	return domain.Position{
		MarketID:     marketID,
		TokenID:      tokenID,
		Outcome:      domain.ParseOutcome("Yes"),
		Shares:       shares,
		EntryPrice:   entry,
		CurrentPrice: current,
		BestBid:      current - 0.01,
		BestAsk:      current + 0.01,
		PnLPct:       (current - entry) / entry * 100,
		PnLTrusted:   true,
		ExecStatus:   domain.ExecTradable,
		OpenedAt:     testNow.Add(-time.Hour),
	}
}
