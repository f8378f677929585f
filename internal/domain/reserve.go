package domain

// ReserveMode describes how the reserve plan was derived.
type ReserveMode string

const (
	ReserveNormal    ReserveMode = "normal"
	ReserveShortfall ReserveMode = "shortfall"
	ReserveUnlimited ReserveMode = "unlimited"
)

// ReservePlan is the cash picture the budget ledger is seeded from each cycle.
type ReservePlan struct {
	AvailableCash   float64
	ReserveRequired float64
	Mode            ReserveMode
}

// Spendable is available cash net of the reserve, floored at zero.
func (p ReservePlan) Spendable() float64 {
	if v := p.AvailableCash - p.ReserveRequired; v > 0 {
		return v
	}
	return 0
}
