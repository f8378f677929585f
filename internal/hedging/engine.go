package hedging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Deps are the engine's collaborators. Orders, Positions, Markets, Books,
// and Reserve are required.
type Deps struct {
	Orders    OrderSubmitter
	Positions PositionSource
	Markets   MarketLookup
	Books     BookReader
	Reserve   ReservePlanner
	Events    EventSink
	Locks     domain.LockManager
	Metrics   *Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine runs hedge cycles. Construct one per process with New; it owns
// every table that survives between cycles.
type Engine struct {
	opts Options

	orders    OrderSubmitter
	positions PositionSource
	markets   MarketLookup
	books     BookReader
	reserve   ReservePlanner
	events    EventSink
	locks     domain.LockManager
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	flight      singleFlight
	mem         *Memory
	budget      *Budget
	gate        *Gate
	skipLimiter *rate.Limiter

	statsMu sync.Mutex
	stats   Stats
}

// New validates opts and wires the engine.
func New(opts Options, deps Deps) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Orders == nil:
		return nil, errors.New("hedging: order submitter is required")
	case deps.Positions == nil:
		return nil, errors.New("hedging: position source is required")
	case deps.Markets == nil:
		return nil, errors.New("hedging: market lookup is required")
	case deps.Books == nil:
		return nil, errors.New("hedging: book reader is required")
	case deps.Reserve == nil:
		return nil, errors.New("hedging: reserve planner is required")
	}
	if deps.Events == nil {
		deps.Events = discardSink{}
	}
	if deps.Locks == nil {
		deps.Locks = NewLocalLocks()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	interval := opts.SkipLogInterval
	limit := rate.Every(interval)
	if interval <= 0 {
		limit = rate.Inf
	}

	mem := NewMemory(opts)
	return &Engine{
		opts:        opts,
		orders:      deps.Orders,
		positions:   deps.Positions,
		markets:     deps.Markets,
		books:       deps.Books,
		reserve:     deps.Reserve,
		events:      deps.Events,
		locks:       deps.Locks,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With(slog.String("component", "hedging")),
		now:         deps.Now,
		mem:         mem,
		budget:      NewBudget(opts.ReservePolicy, opts.AllowPartial),
		gate:        NewGate(opts, mem, deps.Positions.EntryTime),
		skipLimiter: rate.NewLimiter(limit, 1),
		stats:       Stats{LastSkips: map[domain.SkipReason]int{}},
	}, nil
}

// cycle is the state of one Execute pass.
type cycle struct {
	now       time.Time
	positions []domain.Position
	index     map[string]domain.Position
	sold      map[string]bool
	bought    map[string]bool // position keys bought into this cycle
	paired    map[string]bool // original keys hedged this cycle
	skips     *SkipAggregator
	actions   int
}

func (c *cycle) held(key string) bool {
	_, ok := c.index[key]
	return ok
}

func newCycle(now time.Time, positions []domain.Position) *cycle {
	idx := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		idx[p.Key()] = p
	}
	return &cycle{
		now:       now,
		positions: positions,
		index:     idx,
		sold:      make(map[string]bool),
		bought:    make(map[string]bool),
		paired:    make(map[string]bool),
		skips:     &SkipAggregator{},
	}
}

// Execute runs one full cycle and returns the number of actions taken.
// A call made while another cycle is running returns 0 immediately. It
// never fails: per-position problems become skips or cooldowns.
func (e *Engine) Execute(ctx context.Context) int {
	if !e.flight.tryEnter() {
		e.metrics.cycle("contended")
		e.record(func(s *Stats) { s.ContendedCycles++ })
		e.logger.DebugContext(ctx, "hedging: cycle already running, skipping")
		return 0
	}
	defer e.flight.exit()

	start := e.now()
	positions, err := e.positions.Snapshot(ctx)
	if err != nil {
		e.mem.Sweep(start, nil)
		e.metrics.cycle("snapshot_failed")
		e.logger.WarnContext(ctx, "hedging: position snapshot failed", slog.String("error", err.Error()))
		return 0
	}
	c := newCycle(start, positions)
	e.mem.Sweep(start, c.held)
	e.initBudget(ctx)

	if e.opts.HedgeUpEnabled {
		e.runHedgeUp(ctx, c)
	}
	e.runHedgeDown(ctx, c)
	if e.opts.ExitEnabled {
		e.runExitMonitor(ctx, c)
	}

	c.skips.Flush(ctx, e.logger, e.skipLimiter, c.actions)
	e.finishCycle(c, e.now().Sub(start))
	return c.actions
}

func (e *Engine) initBudget(ctx context.Context) {
	plan, err := e.reserve.Plan(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "hedging: reserve plan unavailable, budget is zero this cycle",
			slog.String("error", err.Error()))
		plan = domain.ReservePlan{Mode: domain.ReserveShortfall}
	}
	e.budget.Init(plan)
	e.logger.DebugContext(ctx, "hedging: budget initialised",
		slog.Float64("available", plan.AvailableCash),
		slog.Float64("reserve", plan.ReserveRequired),
		slog.String("mode", string(plan.Mode)),
		slog.Float64("budget", e.budget.Remaining()),
	)
}

func (e *Engine) finishCycle(c *cycle, took time.Duration) {
	b := e.budget.Stats()
	m := e.mem.Stats()
	e.metrics.cycle("ran")
	e.metrics.observeCycle(took, b, m)
	e.record(func(s *Stats) {
		s.Cycles++
		s.LastCycleAt = c.now
		s.LastCycleActions = c.actions
		s.LastCycleSeconds = took.Seconds()
		s.LastSkips = c.skips.Counts()
	})
}

func (e *Engine) runHedgeDown(ctx context.Context, c *cycle) {
	for _, p := range c.positions {
		if p.PnLPct >= 0 || c.sold[p.Key()] {
			continue
		}
		e.guard(ctx, c, p, "hedge_down", func() {
			v := e.gate.Check(p, c.now)
			if !v.Proceed {
				e.skip(c, p, v.Reason)
				return
			}
			e.hedgeDown(ctx, c, p, v)
		})
	}
}

// guard isolates one position's decision sequence so a panic cannot abort
// the rest of the cycle.
func (e *Engine) guard(ctx context.Context, c *cycle, p domain.Position, phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "hedging: recovered panic",
				slog.String("phase", phase),
				slog.String("token", p.ShortID()),
				slog.String("panic", fmt.Sprint(r)),
			)
			e.skip(c, p, domain.SkipPanicked)
		}
	}()
	fn()
}

func (e *Engine) skip(c *cycle, p domain.Position, reason domain.SkipReason) {
	c.skips.Add(p.ShortID(), reason)
	e.metrics.skip(string(reason))
}

func (e *Engine) act(c *cycle, kind string) {
	c.actions++
	e.metrics.action(kind)
}

func (e *Engine) publish(ctx context.Context, ev domain.HedgeEvent) {
	ev.ID = uuid.NewString()
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.events.Publish(ctx, ev)
}

// sell submits a market sell of the whole position at price less slippage.
func (e *Engine) sell(ctx context.Context, p domain.Position, price float64, reason string) (domain.SubmitResult, float64, error) {
	usd := RoundUSD(p.Shares * price)
	res, err := e.orders.Submit(ctx, domain.SubmitRequest{
		MarketID:   p.MarketID,
		TokenID:    p.TokenID,
		Outcome:    p.Outcome,
		Side:       domain.OrderSideSell,
		SizeUSD:    usd,
		Shares:     p.Shares,
		PriceLimit: SellLimit(price, e.opts.SlippagePct),
		SkipDedup:  true,
		Reason:     reason,
	})
	return res, usd, err
}

// logSubmitError logs submission failures; a missing wallet is a
// configuration fault and is logged at error.
func (e *Engine) logSubmitError(ctx context.Context, log *slog.Logger, msg string, err error) {
	if errors.Is(err, domain.ErrNoWallet) {
		log.ErrorContext(ctx, msg, slog.String("error", err.Error()))
		return
	}
	log.WarnContext(ctx, msg, slog.String("error", err.Error()))
}
