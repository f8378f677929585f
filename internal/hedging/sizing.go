package hedging

import (
	"math"

	"github.com/shopspring/decimal"
)

// BreakEvenHedge returns the opposite-side share count whose payout covers
// the original investment if the opposite outcome wins, and the USD cost
// of buying it with bufferPct headroom. A price outside (0,1) yields zero.
func BreakEvenHedge(entryPrice, shares, oppositePrice, bufferPct float64) (hedgeShares, usd float64) {
	if oppositePrice <= 0 || oppositePrice >= 1 || shares <= 0 || entryPrice <= 0 {
		return 0, 0
	}
	invested := decimal.NewFromFloat(entryPrice).Mul(decimal.NewFromFloat(shares))
	perShare := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(oppositePrice))
	hs := invested.Div(perShare)
	buffer := decimal.NewFromInt(1).Add(decimal.NewFromFloat(bufferPct).Div(decimal.NewFromInt(100)))
	cost := hs.Mul(decimal.NewFromFloat(oppositePrice)).Mul(buffer)
	return hs.Round(4).InexactFloat64(), cost.Round(2).InexactFloat64()
}

// EmergencyHedgeUSD is the emergency target: the absolute maximum hedge spend.
func EmergencyHedgeUSD(maxHedgeUSD float64) float64 {
	return RoundUSD(maxHedgeUSD)
}

// HedgeTargetUSD picks the hedge spend for a losing position before budget
// capping. Losses at or beyond the emergency threshold skip break-even
// sizing and target the maximum.
func HedgeTargetUSD(opts Options, entryPrice, shares, lossPct, oppositePrice float64) (usd float64, emergency bool) {
	if lossPct >= opts.EmergencyLossPct {
		return EmergencyHedgeUSD(opts.MaxHedgeUSD), true
	}
	_, usd = BreakEvenHedge(entryPrice, shares, oppositePrice, opts.BreakEvenBufferPct)
	return math.Min(usd, RoundUSD(opts.MaxHedgeUSD)), false
}

// BuyMoreShares is the share count a hedge-up spend of usd buys at price.
func BuyMoreShares(usd, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return decimal.NewFromFloat(usd).Div(decimal.NewFromFloat(price)).Round(4).InexactFloat64()
}

// BuyLimit is the worst acceptable buy price: ask plus slippage, capped
// below 1 so a protected buy can never pay full settlement value.
func BuyLimit(ask, slippagePct float64) float64 {
	limit := decimal.NewFromFloat(ask).Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(slippagePct).Div(decimal.NewFromInt(100))))
	return math.Min(limit.Round(4).InexactFloat64(), 0.99)
}

// SellLimit is the worst acceptable sell price: bid minus slippage, floored
// at one tick.
func SellLimit(bid, slippagePct float64) float64 {
	limit := decimal.NewFromFloat(bid).Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippagePct).Div(decimal.NewFromInt(100))))
	return math.Max(limit.Round(4).InexactFloat64(), 0.001)
}

// NetSaleProceeds is the USD a market sell realises after the taker fee.
func NetSaleProceeds(shares, price, takerFeePct float64) float64 {
	gross := decimal.NewFromFloat(shares).Mul(decimal.NewFromFloat(price))
	fee := gross.Mul(decimal.NewFromFloat(takerFeePct)).Div(decimal.NewFromInt(100))
	return gross.Sub(fee).Round(2).InexactFloat64()
}

// RoundUSD rounds to cents.
func RoundUSD(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundDownUSD truncates to cents so a capped spend never exceeds what is left.
func RoundDownUSD(v float64) float64 {
	return decimal.NewFromFloat(v).RoundFloor(2).InexactFloat64()
}
