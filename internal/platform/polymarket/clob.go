package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/crypto"
	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB: public books and
// market parameters, L1 key derivation, and L2-authenticated balance and
// order endpoints.
type ClobClient struct {
	rest    restClient
	signer  *crypto.Signer // nil in read-only mode
	sigType uint8
	now     func() time.Time

	mu    sync.RWMutex
	creds crypto.APICreds
}

// NewClobClient creates a client for baseURL (e.g. "https://clob.polymarket.com")
// paced to rps requests per second. signer may be nil for read-only use.
func NewClobClient(baseURL string, rps float64, signer *crypto.Signer, sigType uint8) *ClobClient {
	return &ClobClient{
		rest:    newRESTClient(baseURL, rps),
		signer:  signer,
		sigType: sigType,
		now:     time.Now,
	}
}

func (c *ClobClient) SetCreds(creds crypto.APICreds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

func (c *ClobClient) HasCreds() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.Valid()
}

// GetBook returns the current order book for tokenID.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	var book apiBook
	if err := c.rest.getJSON(ctx, "/book?token_id="+url.QueryEscape(tokenID), &book); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}
	if book.AssetID == "" {
		book.AssetID = tokenID
	}
	return book.toSnapshot(), nil
}

func (c *ClobClient) TickSize(ctx context.Context, tokenID string) (float64, error) {
	var ts apiTickSize
	if err := c.rest.getJSON(ctx, "/tick-size?token_id="+url.QueryEscape(tokenID), &ts); err != nil {
		return 0, fmt.Errorf("polymarket/clob: tick size %s: %w", tokenID, err)
	}
	return float64(ts.MinimumTickSize), nil
}

func (c *ClobClient) NegRisk(ctx context.Context, tokenID string) (bool, error) {
	var nr apiNegRisk
	if err := c.rest.getJSON(ctx, "/neg-risk?token_id="+url.QueryEscape(tokenID), &nr); err != nil {
		return false, fmt.Errorf("polymarket/clob: neg risk %s: %w", tokenID, err)
	}
	return nr.NegRisk, nil
}

// Balance returns the collateral (USDC) balance in dollars.
func (c *ClobClient) Balance(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("asset_type", "COLLATERAL")
	q.Set("signature_type", strconv.Itoa(int(c.sigType)))

	body, err := c.authed(ctx, http.MethodGet, "/balance-allowance", q, nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: balance: %w", err)
	}
	var bal apiBalance
	if err := json.Unmarshal(body, &bal); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode balance: %w", err)
	}
	return float64(bal.Balance) / 1e6, nil
}

// DeriveAPIKey recovers the existing L2 credentials for the wallet.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) (crypto.APICreds, error) {
	return c.keyRequest(ctx, http.MethodGet, "/auth/derive-api-key")
}

// CreateAPIKey mints new L2 credentials for the wallet.
func (c *ClobClient) CreateAPIKey(ctx context.Context) (crypto.APICreds, error) {
	return c.keyRequest(ctx, http.MethodPost, "/auth/api-key")
}

// EnsureCreds derives credentials, creating them on first use, and installs
// them on the client.
func (c *ClobClient) EnsureCreds(ctx context.Context) (crypto.APICreds, error) {
	creds, err := c.DeriveAPIKey(ctx)
	if err != nil || !creds.Valid() {
		creds, err = c.CreateAPIKey(ctx)
		if err != nil {
			return crypto.APICreds{}, err
		}
	}
	c.SetCreds(creds)
	return creds, nil
}

func (c *ClobClient) keyRequest(ctx context.Context, method, path string) (crypto.APICreds, error) {
	if c.signer == nil {
		return crypto.APICreds{}, domain.ErrNoWallet
	}
	ts := c.now().Unix()
	sig, err := c.signer.SignAuth(ts, 0)
	if err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: sign auth: %w", err)
	}
	address := c.signer.Address().Hex()
	body, err := c.rest.do(ctx, method, path, nil, func(string) map[string]string {
		return map[string]string{
			"POLY_ADDRESS":   address,
			"POLY_SIGNATURE": sig,
			"POLY_TIMESTAMP": strconv.FormatInt(ts, 10),
			"POLY_NONCE":     "0",
		}
	})
	if err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: %s: %w", path, err)
	}
	var creds crypto.APICreds
	if err := json.Unmarshal(body, &creds); err != nil {
		return crypto.APICreds{}, fmt.Errorf("polymarket/clob: decode credentials: %w", err)
	}
	return creds, nil
}

// PostOrder submits a signed order. Venue-side rejections come back as an
// unsuccessful result, not an error; errors are transport or auth failures.
func (c *ClobClient) PostOrder(ctx context.Context, o domain.Order) (domain.OrderResult, error) {
	c.mu.RLock()
	owner := c.creds.Key
	c.mu.RUnlock()

	side := "BUY"
	if o.Side == domain.OrderSideSell {
		side = "SELL"
	}
	salt, _ := strconv.ParseInt(o.Salt, 10, 64)
	req := apiPostOrder{
		Order: apiOrderBody{
			Salt:          salt,
			Maker:         o.Maker,
			Signer:        o.Signer,
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       o.TokenID,
			MakerAmount:   o.MakerAmount.String(),
			TakerAmount:   o.TakerAmount.String(),
			Expiration:    "0",
			Nonce:         "0",
			FeeRateBps:    strconv.Itoa(o.FeeRateBps),
			Side:          side,
			SignatureType: o.SignatureType,
			Signature:     o.Signature,
		},
		Owner:     owner,
		OrderType: string(o.Type),
	}

	body, err := c.authed(ctx, http.MethodPost, "/order", nil, req)
	var httpErr *HTTPError
	if err != nil && errors.As(err, &httpErr) && httpErr.Status == http.StatusBadRequest {
		var rej struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal([]byte(httpErr.Body), &rej)
		if rej.Error == "" {
			rej.Error = strings.TrimSpace(httpErr.Body)
		}
		return domain.OrderResult{Status: domain.OrderStatusFailed, Message: rej.Error}, nil
	}
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var res apiOrderResult
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	return res.toDomain(), nil
}

// authed sends an L2-signed request. The signature covers the path without
// its query string.
func (c *ClobClient) authed(ctx context.Context, method, path string, q url.Values, body any) ([]byte, error) {
	if c.signer == nil {
		return nil, domain.ErrNoWallet
	}
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if !creds.Valid() {
		return nil, fmt.Errorf("%w: no API credentials", domain.ErrUnauthorized)
	}

	full := path
	if len(q) > 0 {
		full += "?" + q.Encode()
	}
	address := c.signer.Address().Hex()
	ts := c.now().Unix()
	return c.rest.do(ctx, method, full, body, func(payload string) map[string]string {
		return creds.L2Headers(address, method, path, payload, ts)
	})
}
