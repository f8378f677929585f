package hedging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

func TestBudget_Cap(t *testing.T) {
	b := NewBudget(ReserveFull, true)
	b.Init(domain.ReservePlan{AvailableCash: 30, ReserveRequired: 20})

	assert.Equal(t, CapResult{Amount: 10}, b.Cap(10))
	b.Deduct(10)
	assert.Equal(t, CapResult{Amount: 20, Partial: true}, b.Cap(25))
	b.Deduct(20)
	assert.Equal(t, CapResult{Skip: true, Code: domain.HedgeNoCashAvailable}, b.Cap(1))
}

func TestBudget_ExcludeReserve(t *testing.T) {
	b := NewBudget(ReserveExclude, true)
	b.Init(domain.ReservePlan{AvailableCash: 30, ReserveRequired: 20})
	assert.Equal(t, 10.0, b.Remaining())

	b.Init(domain.ReservePlan{AvailableCash: 10, ReserveRequired: 20})
	assert.Equal(t, CapResult{Skip: true, Code: domain.HedgeReserveShortfall}, b.Cap(5))
}

func TestBudget_NoPartial(t *testing.T) {
	b := NewBudget(ReserveFull, false)
	b.Init(domain.ReservePlan{AvailableCash: 10})

	assert.Equal(t, CapResult{Amount: 10}, b.Cap(10))
	assert.Equal(t, CapResult{Skip: true, Code: domain.HedgeReserveShortfall}, b.Cap(10.01))
}

func TestBudget_DeductClampsAndCredit(t *testing.T) {
	b := NewBudget(ReserveFull, true)
	b.Init(domain.ReservePlan{AvailableCash: 5})
	b.Deduct(8)
	assert.Zero(t, b.Remaining())

	b.Credit(3.5)
	assert.Equal(t, 3.5, b.Remaining())
	b.Deduct(-1)
	b.Credit(-1)
	assert.Equal(t, 3.5, b.Remaining())

	st := b.Stats()
	assert.Equal(t, 8.0, st.Spent)
	assert.Equal(t, 3.5, st.Credited)
	assert.Equal(t, 5.0, st.Initial)
}

func TestBudget_PartialRoundsDown(t *testing.T) {
	b := NewBudget(ReserveFull, true)
	b.Init(domain.ReservePlan{AvailableCash: 12.349})
	assert.Equal(t, CapResult{Amount: 12.34, Partial: true}, b.Cap(20))
}

func TestBudget_Unlimited(t *testing.T) {
	b := NewBudget(ReserveFull, true)
	b.Init(domain.ReservePlan{Mode: domain.ReserveUnlimited})
	assert.Equal(t, CapResult{Amount: 1000}, b.Cap(1000))
	assert.True(t, b.Stats().Unlimited)

	// Re-seeding clears the previous cycle entirely.
	b.Init(domain.ReservePlan{AvailableCash: 4})
	assert.Equal(t, CapResult{Amount: 4, Partial: true}, b.Cap(1000))
	assert.Zero(t, b.Stats().Spent)
}
