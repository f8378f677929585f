package hedging

import (
	"sync"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// CapResult is the outcome of capping a requested spend to the budget.
type CapResult struct {
	Skip    bool
	Amount  float64
	Partial bool
	Code    domain.HedgeCode // set when Skip is true
}

// Budget is the per-cycle cash ledger. It is re-seeded every cycle and
// never persisted.
type Budget struct {
	mu           sync.Mutex
	policy       ReservePolicy
	allowPartial bool

	unlimited bool
	initial   float64
	remaining float64
	spent     float64
	credited  float64
}

// NewBudget creates an empty ledger; Init must be called before use.
func NewBudget(policy ReservePolicy, allowPartial bool) *Budget {
	return &Budget{policy: policy, allowPartial: allowPartial}
}

// Init seeds the ledger from the cycle's reserve plan.
func (b *Budget) Init(plan domain.ReservePlan) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unlimited = plan.Mode == domain.ReserveUnlimited
	b.spent = 0
	b.credited = 0
	switch b.policy {
	case ReserveExclude:
		b.initial = plan.Spendable()
	default:
		b.initial = max(plan.AvailableCash, 0)
	}
	b.remaining = b.initial
}

// Cap limits requested to what is left. It skips only when nothing remains,
// or when the policy forbids partial spends and the request does not fit.
func (b *Budget) Cap(requested float64) CapResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unlimited {
		return CapResult{Amount: requested}
	}
	if b.remaining <= 0 {
		return CapResult{Skip: true, Code: b.emptyCode()}
	}
	if requested <= b.remaining {
		return CapResult{Amount: requested}
	}
	if !b.allowPartial {
		return CapResult{Skip: true, Code: domain.HedgeReserveShortfall}
	}
	return CapResult{Amount: RoundDownUSD(b.remaining), Partial: true}
}

func (b *Budget) emptyCode() domain.HedgeCode {
	if b.policy == ReserveExclude {
		return domain.HedgeReserveShortfall
	}
	return domain.HedgeNoCashAvailable
}

// Deduct records a confirmed or partially filled spend.
func (b *Budget) Deduct(spent float64) {
	if spent <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.spent += spent
	b.remaining = max(b.remaining-spent, 0)
}

// Credit returns cash freed mid-cycle (e.g. by selling a profitable
// position) to the ledger.
func (b *Budget) Credit(amount float64) {
	if amount <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.credited += amount
	b.remaining += amount
}

// Remaining is what is left to spend this cycle.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// BudgetStats is a point-in-time view of the ledger.
type BudgetStats struct {
	Policy    ReservePolicy `json:"policy"`
	Unlimited bool          `json:"unlimited"`
	Initial   float64       `json:"initial_usd"`
	Remaining float64       `json:"remaining_usd"`
	Spent     float64       `json:"spent_usd"`
	Credited  float64       `json:"credited_usd"`
}

func (b *Budget) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetStats{
		Policy:    b.policy,
		Unlimited: b.unlimited,
		Initial:   b.initial,
		Remaining: b.remaining,
		Spent:     b.spent,
		Credited:  b.credited,
	}
}
