package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyhedge/internal/config"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func venue(t *testing.T, authStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/derive-api-key", "/auth/api-key":
			if authStatus != http.StatusOK {
				http.Error(w, `{"error":"Unauthorized"}`, authStatus)
				return
			}
			fmt.Fprint(w, `{"apiKey":"k","secret":"c2VjcmV0","passphrase":"p"}`)
		case "/balance-allowance":
			fmt.Fprint(w, `{"balance":"42500000"}`)
		case "/positions":
			fmt.Fprint(w, `[{"asset":"t1","conditionId":"m1","size":"10","avgPrice":"0.5","curPrice":"0.4","outcome":"Yes"}]`)
		case "/book":
			fmt.Fprint(w, `{"asset_id":"t1","bids":[{"price":"0.39","size":"5"}],"asks":[{"price":"0.41","size":"5"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func preflightConfig(url string) *config.Config {
	cfg := config.Defaults()
	cfg.Polymarket.ClobHost = url
	cfg.Polymarket.DataHost = url
	cfg.Polymarket.GammaHost = url
	cfg.Polymarket.RequestsPerS = 1000
	return &cfg
}

func TestPreflight_AllChecksPass(t *testing.T) {
	cfg := preflightConfig(venue(t, http.StatusOK).URL)
	cfg.Wallet.PrivateKey = testPrivateKey

	rep := Preflight(context.Background(), cfg, "t1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, rep.OK(), "errors: %v", rep.Errors)
	assert.Equal(t, AuthSuccess, rep.AuthStatus)
	assert.Equal(t, "EOA", rep.SignatureType)
	assert.Equal(t, rep.Signer, rep.Funder)
	require.NotNil(t, rep.BalanceUSD)
	assert.InDelta(t, 42.5, *rep.BalanceUSD, 1e-9)
	require.NotNil(t, rep.Positions)
	assert.Equal(t, 1, *rep.Positions)
	require.NotNil(t, rep.Book)
	assert.Equal(t, 0.39, rep.Book.BestBid)
	assert.NotEmpty(t, rep.RunID)
}

func TestPreflight_AuthFailure(t *testing.T) {
	cfg := preflightConfig(venue(t, http.StatusUnauthorized).URL)
	cfg.Wallet.PrivateKey = testPrivateKey

	rep := Preflight(context.Background(), cfg, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, rep.OK())
	assert.Equal(t, AuthFailed, rep.AuthStatus)
	assert.Nil(t, rep.BalanceUSD)
	assert.NotNil(t, rep.Positions, "holdings are public and still checked")
	assert.Nil(t, rep.Book)
}

func TestPreflight_ReadOnly(t *testing.T) {
	cfg := preflightConfig(venue(t, http.StatusOK).URL)
	cfg.Wallet.FunderAddress = "0x00000000000000000000000000000000000000aa"

	rep := Preflight(context.Background(), cfg, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, rep.OK())
	assert.Equal(t, AuthSkipped, rep.AuthStatus)
	assert.Empty(t, rep.Signer)
	require.NotNil(t, rep.Positions)
}
