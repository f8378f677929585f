package hedging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakEvenHedge(t *testing.T) {
	shares, usd := BreakEvenHedge(0.50, 20, 0.40, 10)
	assert.InDelta(t, 16.6667, shares, 1e-9)
	assert.Equal(t, 7.33, usd)

	for _, opp := range []float64{0, 1, 1.2, -0.1} {
		shares, usd := BreakEvenHedge(0.5, 20, opp, 10)
		assert.Zero(t, shares)
		assert.Zero(t, usd)
	}
}

func TestHedgeTargetUSD(t *testing.T) {
	opts := DefaultOptions()

	usd, emergency := HedgeTargetUSD(opts, 0.50, 20, 25, 0.40)
	assert.False(t, emergency)
	assert.Equal(t, 7.33, usd)

	usd, emergency = HedgeTargetUSD(opts, 0.50, 20, 40, 0.40)
	assert.True(t, emergency)
	assert.Equal(t, opts.MaxHedgeUSD, usd)

	usd, _ = HedgeTargetUSD(opts, 0.50, 1000, 25, 0.40)
	assert.Equal(t, opts.MaxHedgeUSD, usd)
}

func TestLimitsAndProceeds(t *testing.T) {
	assert.Equal(t, 0.408, BuyLimit(0.40, 2))
	assert.Equal(t, 0.99, BuyLimit(0.98, 2))
	assert.Equal(t, 0.392, SellLimit(0.40, 2))
	assert.Equal(t, 0.001, SellLimit(0, 2))
	assert.Equal(t, 6.83, NetSaleProceeds(10, 0.69, 1))
	assert.Equal(t, 27.7778, BuyMoreShares(25, 0.90))
	assert.Equal(t, 1.23, RoundDownUSD(1.239))
	assert.Equal(t, 1.24, RoundUSD(1.239))
}
