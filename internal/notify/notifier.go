// Package notify tells operators what the hedging engine did. Events fan
// out to chat senders and the audit journal; nothing here can fail a cycle.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier formats hedge events and delivers them to every sender. Only
// event kinds in the allow list are sent; an empty list allows all.
type Notifier struct {
	senders []Sender
	allowed map[domain.HedgeEventKind]bool
	logger  *slog.Logger
}

func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.HedgeEventKind]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			allowed[domain.HedgeEventKind(k)] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Wants reports whether events of kind pass the filter.
func (n *Notifier) Wants(kind domain.HedgeEventKind) bool {
	return len(n.allowed) == 0 || n.allowed[kind]
}

// Notify delivers ev to every sender. One sender failing does not stop the
// others; all failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, ev domain.HedgeEvent) error {
	if !n.Enabled() || !n.Wants(ev.Kind) {
		return nil
	}
	title, msg := Format(ev)

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notify: sent",
			slog.String("sender", s.Name()),
			slog.String("kind", string(ev.Kind)),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

var titles = map[domain.HedgeEventKind]string{
	domain.EventHedgePlaced:        "Hedge placed",
	domain.EventHedgePartial:       "Hedge partially filled",
	domain.EventHedgeUpPlaced:      "Hedge-up placed",
	domain.EventHedgeExited:        "Hedge exited",
	domain.EventPositionSold:       "Position sold",
	domain.EventPositionLiquidated: "Position liquidated",
	domain.EventFundsFreed:         "Funds freed",
}

// Format renders ev as a title and a short plain-text body.
func Format(ev domain.HedgeEvent) (title, message string) {
	title = titles[ev.Kind]
	if title == "" {
		title = string(ev.Kind)
	}
	if ev.Simulated {
		title = "[dry run] " + title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "market %s\ntoken %s\n", ev.MarketID, shortToken(ev.TokenID))
	if ev.AmountUSD > 0 {
		fmt.Fprintf(&b, "amount $%.2f", ev.AmountUSD)
		if ev.Price > 0 {
			fmt.Fprintf(&b, " @ %.3f", ev.Price)
		}
		b.WriteByte('\n')
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", ev.Reason)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

func shortToken(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "…" + id[len(id)-4:]
}
