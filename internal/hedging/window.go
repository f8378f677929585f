package hedging

import (
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// windowDecision is what the temporal policy does with a position that
// passed every other eligibility check.
type windowDecision struct {
	skip           domain.SkipReason
	liquidateOnly  bool
	nearResolution bool
}

// applyWindow evaluates the minutes-to-close policy. Positions without a
// known end time, or far from it, fall through to the ordinary trigger.
// A market past its end time is left alone to settle.
func (o Options) applyWindow(p domain.Position, now time.Time) windowDecision {
	mins, ok := p.MinutesToClose(now)
	if !ok {
		return windowDecision{}
	}
	loss := p.LossPct()
	catastrophic := o.catastrophic(loss)

	switch {
	case mins < 0:
		return windowDecision{skip: domain.SkipPastEndTime}

	case mins <= o.NoHedgeWindow.Minutes():
		if o.NearResolutionHedge {
			if loss < o.NoHedgeWindowMinLossPct && !catastrophic {
				return windowDecision{skip: domain.SkipNoHedgeSmall}
			}
			return windowDecision{nearResolution: true}
		}
		if catastrophic {
			return windowDecision{liquidateOnly: true}
		}
		return windowDecision{skip: domain.SkipNoHedgeWindow}

	case mins <= o.NearCloseWindow.Minutes():
		dropCents := (p.EntryPrice - p.CurrentPrice) * 100
		if dropCents >= o.NearCloseMinDropCents || loss >= o.NearCloseMinLossPct {
			return windowDecision{}
		}
		return windowDecision{skip: domain.SkipNearCloseThresh}
	}
	return windowDecision{}
}
