package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Journal records hedge events for operators.
type Journal interface {
	Record(ctx context.Context, ev domain.HedgeEvent) error
}

// SinkConfig bounds the background delivery work.
type SinkConfig struct {
	Timeout     time.Duration // per event, across journal and senders
	MaxInFlight int           // events beyond this are dropped with a warning
}

// Sink is the engine's event sink. Publish hands the event to a goroutine
// and returns; delivery failures are logged and never surface to callers.
type Sink struct {
	notifier *Notifier // optional
	journal  Journal   // optional
	timeout  time.Duration
	slots    chan struct{}
	logger   *slog.Logger

	wg sync.WaitGroup
}

func NewSink(notifier *Notifier, journal Journal, cfg SinkConfig, logger *slog.Logger) *Sink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}
	return &Sink{
		notifier: notifier,
		journal:  journal,
		timeout:  cfg.Timeout,
		slots:    make(chan struct{}, cfg.MaxInFlight),
		logger:   logger.With(slog.String("component", "event_sink")),
	}
}

func (s *Sink) Publish(ctx context.Context, ev domain.HedgeEvent) {
	s.logger.InfoContext(ctx, "notify: hedge event",
		slog.String("kind", string(ev.Kind)),
		slog.String("market_id", ev.MarketID),
		slog.String("token", ev.TokenID),
		slog.Float64("amount_usd", ev.AmountUSD),
		slog.Float64("price", ev.Price),
		slog.Bool("simulated", ev.Simulated),
	)
	if s.journal == nil && !s.notifier.Enabled() {
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.WarnContext(ctx, "notify: delivery backlog full, event dropped",
			slog.String("id", ev.ID),
			slog.String("kind", string(ev.Kind)),
		)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.deliver(dctx, ev)
	}()
}

func (s *Sink) deliver(ctx context.Context, ev domain.HedgeEvent) {
	if s.journal != nil {
		if err := s.journal.Record(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "notify: journal write failed",
				slog.String("id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "notify: delivery failed",
			slog.String("id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Close waits for in-flight deliveries, each bounded by the sink timeout.
func (s *Sink) Close() {
	s.wg.Wait()
}
