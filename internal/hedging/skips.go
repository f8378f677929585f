package hedging

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

const skipSamples = 5

type skipEntry struct {
	id     string
	reason domain.SkipReason
}

// SkipAggregator collects per-cycle skip reasons for one summary line. It
// never influences decisions.
type SkipAggregator struct {
	entries []skipEntry
}

func (a *SkipAggregator) Add(shortID string, reason domain.SkipReason) {
	a.entries = append(a.entries, skipEntry{id: shortID, reason: reason})
}

func (a *SkipAggregator) Len() int {
	return len(a.entries)
}

// Counts groups skips by reason.
func (a *SkipAggregator) Counts() map[domain.SkipReason]int {
	out := make(map[domain.SkipReason]int)
	for _, e := range a.entries {
		out[e.reason]++
	}
	return out
}

// Reasons returns the reasons recorded for one position.
func (a *SkipAggregator) Reasons(shortID string) []domain.SkipReason {
	var out []domain.SkipReason
	for _, e := range a.entries {
		if e.id == shortID {
			out = append(out, e.reason)
		}
	}
	return out
}

// Flush writes one summary line when limiter allows it.
func (a *SkipAggregator) Flush(ctx context.Context, logger *slog.Logger, limiter *rate.Limiter, actions int) {
	if len(a.entries) == 0 || !limiter.Allow() {
		return
	}
	samples := make(map[domain.SkipReason][]string)
	for _, e := range a.entries {
		if len(samples[e.reason]) < skipSamples {
			samples[e.reason] = append(samples[e.reason], e.id)
		}
	}
	counts := a.Counts()
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	attrs := []any{slog.Int("skipped", len(a.entries)), slog.Int("actions", actions)}
	for _, r := range reasons {
		reason := domain.SkipReason(r)
		attrs = append(attrs, slog.Group(r,
			slog.Int("count", counts[reason]),
			slog.String("sample", strings.Join(samples[reason], ",")),
		))
	}
	logger.InfoContext(ctx, "hedging: cycle skip summary", attrs...)
}
