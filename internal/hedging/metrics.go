package hedging

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus series. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	actions       *prometheus.CounterVec
	skips         *prometheus.CounterVec
	spendUSD      *prometheus.CounterVec
	hedgeResults  *prometheus.CounterVec
	budgetUSD     *prometheus.GaugeVec
	tableSize     *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
}

// NewMetrics creates and registers the engine series on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyhedge_cycles_total",
			Help: "Engine cycles by result (ran|contended|snapshot_failed).",
		}, []string{"result"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyhedge_actions_total",
			Help: "Orders the engine acted on, by kind.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyhedge_skips_total",
			Help: "Positions skipped, by reason.",
		}, []string{"reason"}),
		spendUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyhedge_spend_usd_total",
			Help: "USD spent on buys, by kind (hedge|hedge_up).",
		}, []string{"kind"}),
		hedgeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyhedge_hedge_results_total",
			Help: "Hedge-down attempt outcomes by code.",
		}, []string{"code"}),
		budgetUSD: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polyhedge_budget_usd",
			Help: "Cycle budget (initial|remaining).",
		}, []string{"kind"}),
		tableSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polyhedge_memory_entries",
			Help: "Entries in the engine memory tables.",
		}, []string{"table"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "polyhedge_cycle_duration_seconds",
			Help:    "Wall time of a full engine cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	reg.MustRegister(m.cycles, m.actions, m.skips, m.spendUSD, m.hedgeResults, m.budgetUSD, m.tableSize, m.cycleDuration)
	return m
}

func (m *Metrics) cycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) action(kind string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind).Inc()
}

func (m *Metrics) skip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

func (m *Metrics) spend(kind string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.spendUSD.WithLabelValues(kind).Add(usd)
}

func (m *Metrics) hedgeResult(code string) {
	if m == nil {
		return
	}
	m.hedgeResults.WithLabelValues(code).Inc()
}

func (m *Metrics) observeCycle(d time.Duration, b BudgetStats, t MemoryStats) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
	m.budgetUSD.WithLabelValues("initial").Set(b.Initial)
	m.budgetUSD.WithLabelValues("remaining").Set(b.Remaining)
	m.tableSize.WithLabelValues("hedged").Set(float64(t.Hedged))
	m.tableSize.WithLabelValues("hedged_up").Set(float64(t.HedgedUp))
	m.tableSize.WithLabelValues("cooldowns").Set(float64(t.Cooldowns))
	m.tableSize.WithLabelValues("pairings").Set(float64(t.Pairings))
}
