package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

type stubBooks map[string]domain.Quote

func (s stubBooks) Quote(_ context.Context, tokenID string) (domain.Quote, error) {
	q, ok := s[tokenID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

type stubBalance struct {
	usd float64
	err error
}

func (s stubBalance) Balance(context.Context) (float64, error) { return s.usd, s.err }

type stubPlacer struct {
	orders  []domain.MarketOrder
	results []domain.OrderResult
	errs    []error
}

func (s *stubPlacer) PlaceMarket(_ context.Context, m domain.MarketOrder) (domain.OrderResult, error) {
	i := len(s.orders)
	s.orders = append(s.orders, m)
	var (
		res domain.OrderResult
		err error
	)
	if i < len(s.results) {
		res = s.results[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return res, err
}

func newService(cfg Config, placer MarketPlacer, bal BalanceReader) *Service {
	books := stubBooks{"tok": {TokenID: "tok", BestBid: 0.39, BestAsk: 0.40}}
	s := New(cfg, books, bal, placer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func buy(usd, limit float64) domain.SubmitRequest {
	return domain.SubmitRequest{MarketID: "m1", TokenID: "tok", Side: domain.OrderSideBuy, SizeUSD: usd, PriceLimit: limit}
}

func sell(shares, limit float64) domain.SubmitRequest {
	return domain.SubmitRequest{MarketID: "m1", TokenID: "tok", Side: domain.OrderSideSell, Shares: shares, PriceLimit: limit}
}

func TestSubmit_Rejections(t *testing.T) {
	matched := []domain.OrderResult{{Success: true, Status: domain.OrderStatusMatched, MakingAmount: 10}}
	tests := []struct {
		name   string
		req    domain.SubmitRequest
		bal    BalanceReader
		want   string
		placed int
	}{
		{"invalid", domain.SubmitRequest{TokenID: "tok", Side: domain.OrderSideBuy}, nil, domain.RejectInvalid, 0},
		{"ask above limit", buy(10, 0.39), nil, domain.RejectPriceMoved, 0},
		{"bid below limit", sell(10, 0.395), nil, domain.RejectPriceMoved, 0},
		{"below minimum", buy(0.5, 0.5), nil, domain.RejectBelowMinimum, 0},
		{"insufficient balance", buy(10, 0.5), stubBalance{usd: 9.99}, domain.RejectInsufficientBalance, 0},
		{"balance error still submits", buy(10, 0.5), stubBalance{err: errors.New("down")}, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubPlacer{results: matched}
			s := newService(DefaultConfig(), p, tt.bal)
			res, err := s.Submit(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Reason)
			assert.Len(t, p.orders, tt.placed)
		})
	}
}

func TestSubmit_NoLiquidity(t *testing.T) {
	s := New(DefaultConfig(), stubBooks{"tok": {TokenID: "tok"}}, nil, &stubPlacer{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	res, err := s.Submit(context.Background(), buy(10, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.RejectNoLiquidity, res.Reason)

	_, err = s.Submit(context.Background(), domain.SubmitRequest{TokenID: "unknown", Side: domain.OrderSideBuy, SizeUSD: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmit_NoWallet(t *testing.T) {
	s := newService(DefaultConfig(), nil, nil)
	res, err := s.Submit(context.Background(), buy(10, 0.5))
	assert.ErrorIs(t, err, domain.ErrNoWallet)
	assert.Equal(t, domain.RejectNoWallet, res.Reason)
}

func TestSubmit_DryRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true
	s := newService(cfg, nil, nil)

	res, err := s.Submit(context.Background(), buy(10, 0.5))
	require.NoError(t, err)
	assert.True(t, res.Submitted())
	assert.True(t, res.Simulated)
	assert.Equal(t, 10.0, res.FilledUSD)

	res, err = s.Submit(context.Background(), sell(10, 0))
	require.NoError(t, err)
	assert.InDelta(t, 3.9, res.FilledUSD, 1e-9)
}

func TestSubmit_BuyDedup(t *testing.T) {
	ok := domain.OrderResult{Success: true, Status: domain.OrderStatusMatched, MakingAmount: 10}
	p := &stubPlacer{results: []domain.OrderResult{ok, ok}}
	s := newService(DefaultConfig(), p, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.dedup.now = func() time.Time { return now }

	res, err := s.Submit(context.Background(), buy(10, 0.5))
	require.NoError(t, err)
	require.True(t, res.Submitted())

	res, err = s.Submit(context.Background(), buy(10, 0.5))
	require.NoError(t, err)
	assert.Equal(t, domain.RejectDuplicate, res.Reason)

	skip := buy(10, 0.5)
	skip.SkipDedup = true
	res, err = s.Submit(context.Background(), skip)
	require.NoError(t, err)
	assert.True(t, res.Submitted())

	now = now.Add(3 * time.Minute)
	s.dedup.Cleanup()
	assert.Zero(t, s.dedup.Len())
}

func TestSubmit_PartialFill(t *testing.T) {
	p := &stubPlacer{results: []domain.OrderResult{{Success: true, Status: domain.OrderStatusMatched, MakingAmount: 3}}}
	s := newService(DefaultConfig(), p, nil)

	res, err := s.Submit(context.Background(), buy(10, 0.5))
	require.NoError(t, err)
	assert.True(t, res.PartialFill())
	assert.Equal(t, domain.RejectPartialFill, res.Reason)
	assert.Equal(t, 3.0, res.FilledUSD)
	assert.Equal(t, 3.0, res.Spent(10))
}

func TestSubmit_SellFill(t *testing.T) {
	p := &stubPlacer{results: []domain.OrderResult{{Success: true, Status: domain.OrderStatusMatched, MakingAmount: 20, TakingAmount: 7.8}}}
	s := newService(DefaultConfig(), p, nil)

	res, err := s.Submit(context.Background(), sell(20, 0.38))
	require.NoError(t, err)
	assert.True(t, res.Submitted())
	assert.Equal(t, 7.8, res.FilledUSD)
	require.Len(t, p.orders, 1)
	assert.Equal(t, domain.MarketOrder{MarketID: "m1", TokenID: "tok", Side: domain.OrderSideSell, Amount: 20, Price: 0.38}, p.orders[0])
}

func TestSubmit_Retries(t *testing.T) {
	p := &stubPlacer{
		results: []domain.OrderResult{
			{ShouldRetry: true, Message: "delayed"},
			{},
			{Success: true, Status: domain.OrderStatusMatched, MakingAmount: 10},
		},
		errs: []error{nil, domain.ErrRateLimited, nil},
	}
	s := newService(DefaultConfig(), p, nil)

	res, err := s.Submit(context.Background(), buy(10, 0.5))
	require.NoError(t, err)
	assert.True(t, res.Submitted())
	assert.Len(t, p.orders, 3)
}

func TestSubmit_VenueRejectionMapping(t *testing.T) {
	tests := map[string]string{
		"not enough balance / allowance":                 domain.RejectInsufficientBalance,
		"no orders found to match with FAK order":        domain.RejectNoLiquidity,
		"invalid order: size lower than the minimum: 5":  domain.RejectBelowMinimum,
		"order couldn't be fully filled, FOK orders are": domain.RejectVenue,
	}
	for msg, want := range tests {
		p := &stubPlacer{results: []domain.OrderResult{{Message: msg, Status: domain.OrderStatusFailed}}}
		s := newService(DefaultConfig(), p, nil)
		res, err := s.Submit(context.Background(), buy(10, 0.5))
		require.NoError(t, err)
		assert.Equal(t, want, res.Reason, msg)
		assert.Zero(t, res.Spent(10))
	}
}

func TestSubmit_TransportError(t *testing.T) {
	p := &stubPlacer{errs: []error{errors.New("connection reset")}}
	s := newService(DefaultConfig(), p, nil)
	res, err := s.Submit(context.Background(), buy(10, 0.5))
	assert.Error(t, err)
	assert.Equal(t, domain.RejectVenue, res.Reason)
	assert.Len(t, p.orders, 1, "non-retryable errors are not retried")
}
