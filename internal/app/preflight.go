package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyhedge/internal/config"
	"github.com/alanyoungcy/polyhedge/internal/platform/polymarket"
)

// Auth outcomes reported by Preflight.
const (
	AuthSuccess = "SUCCESS"
	AuthFailed  = "FAILED"
	AuthSkipped = "SKIPPED"
)

// PreflightReport is the result of checking the venue setup without trading.
type PreflightReport struct {
	RunID         string       `json:"run_id"`
	Mode          string       `json:"mode"`
	Signer        string       `json:"signer,omitempty"`
	Funder        string       `json:"funder,omitempty"`
	SignatureType string       `json:"signature_type"`
	AuthStatus    string       `json:"auth_status"`
	BalanceUSD    *float64     `json:"balance_usd,omitempty"`
	Positions     *int         `json:"positions,omitempty"`
	Book          *bookSummary `json:"book,omitempty"`
	Errors        []string     `json:"errors,omitempty"`
}

type bookSummary struct {
	TokenID string  `json:"token_id"`
	BestBid float64 `json:"best_bid"`
	BestAsk float64 `json:"best_ask"`
}

// OK reports whether every attempted check passed.
func (r PreflightReport) OK() bool {
	return len(r.Errors) == 0 && r.AuthStatus != AuthFailed
}

func signatureTypeName(t int) string {
	switch t {
	case 0:
		return "EOA"
	case 1:
		return "POLY_PROXY"
	case 2:
		return "GNOSIS_SAFE"
	default:
		return "UNKNOWN"
	}
}

// Preflight derives CLOB credentials, reads the collateral balance and the
// wallet's holdings, and optionally the book for tokenID. Failures are
// collected into the report.
func Preflight(ctx context.Context, cfg *config.Config, tokenID string, logger *slog.Logger) PreflightReport {
	pm := cfg.Polymarket
	rep := PreflightReport{
		RunID:         uuid.NewString(),
		Mode:          cfg.Mode,
		Funder:        cfg.Wallet.FunderAddress,
		SignatureType: signatureTypeName(pm.SignatureType),
		AuthStatus:    AuthSkipped,
	}
	fail := func(step string, err error) {
		logger.WarnContext(ctx, "preflight: check failed", slog.String("step", step), slog.String("error", err.Error()))
		rep.Errors = append(rep.Errors, step+": "+err.Error())
	}

	signer, err := loadSigner(cfg)
	if err != nil {
		fail("wallet", err)
	}
	clob := polymarket.NewClobClient(pm.ClobHost, pm.RequestsPerS, signer, uint8(pm.SignatureType))

	if signer != nil {
		rep.Signer = signer.Address().Hex()
		if rep.Funder == "" {
			rep.Funder = rep.Signer
		}
		if _, err := clob.EnsureCreds(ctx); err != nil {
			rep.AuthStatus = AuthFailed
			fail("auth", err)
		} else {
			rep.AuthStatus = AuthSuccess
			if bal, err := clob.Balance(ctx); err != nil {
				fail("balance", err)
			} else {
				rep.BalanceUSD = &bal
			}
		}
	}

	if rep.Funder != "" {
		holdings, err := polymarket.NewDataClient(pm.DataHost, pm.RequestsPerS).Positions(ctx, rep.Funder)
		if err != nil {
			fail("positions", err)
		} else {
			n := len(holdings)
			rep.Positions = &n
		}
	}

	if tokenID != "" {
		snap, err := clob.GetBook(ctx, tokenID)
		if err != nil {
			fail("book", err)
		} else {
			rep.Book = &bookSummary{TokenID: tokenID, BestBid: snap.BestBid, BestAsk: snap.BestAsk}
		}
	}
	return rep
}
