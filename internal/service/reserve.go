package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// BalanceSource reads the wallet's collateral balance in dollars.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// ReserveConfig sets the floor of cash kept back from hedging.
type ReserveConfig struct {
	MinReserveUSD float64
	ReservePct    float64 // fraction of balance, [0,1]
}

// BalanceReserve plans the cycle budget from the live wallet balance. The
// reserve is the largest of the configured floor, the balance fraction and
// the engine's own estimate of what pending hedges will need.
type BalanceReserve struct {
	balance BalanceSource
	cfg     ReserveConfig
	logger  *slog.Logger

	// required is optional; it is installed after the engine exists.
	required func(ctx context.Context) (float64, error)
}

func NewBalanceReserve(balance BalanceSource, cfg ReserveConfig, logger *slog.Logger) *BalanceReserve {
	return &BalanceReserve{
		balance: balance,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "reserve")),
	}
}

// SetRequired installs the estimate of cash needed for future hedges.
func (r *BalanceReserve) SetRequired(fn func(ctx context.Context) (float64, error)) {
	r.required = fn
}

func (r *BalanceReserve) Plan(ctx context.Context) (domain.ReservePlan, error) {
	bal, err := r.balance.Balance(ctx)
	if err != nil {
		return domain.ReservePlan{}, fmt.Errorf("reserve: balance: %w", err)
	}
	reserve := math.Max(r.cfg.MinReserveUSD, r.cfg.ReservePct*bal)
	if r.required != nil {
		need, err := r.required(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "reserve: required estimate unavailable",
				slog.String("error", err.Error()))
		} else {
			reserve = math.Max(reserve, need)
		}
	}

	plan := domain.ReservePlan{
		AvailableCash:   bal,
		ReserveRequired: reserve,
		Mode:            domain.ReserveNormal,
	}
	if bal < reserve {
		plan.Mode = domain.ReserveShortfall
	}
	return plan, nil
}
