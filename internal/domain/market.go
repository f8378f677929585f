package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market is the metadata needed to resolve outcome tokens.
type Market struct {
	ID          string
	Question    string
	Slug        string
	ConditionID string
	Outcomes    []string // e.g. ["Yes","No"], ["Over","Under"], or N team names
	TokenIDs    []string // ERC-1155 token IDs, index-aligned with Outcomes
	NegRisk     bool
	Status      MarketStatus
	EndDate     *time.Time
	UpdatedAt   time.Time
}

// OutcomeToken is one tradable side of a market.
type OutcomeToken struct {
	TokenID string
	Label   string
}

// Opposite returns the other side of a two-outcome market. Markets with
// more or fewer than two tokens have no opposite.
func (m Market) Opposite(tokenID string) (OutcomeToken, bool) {
	if len(m.TokenIDs) != 2 || len(m.Outcomes) != 2 {
		return OutcomeToken{}, false
	}
	switch tokenID {
	case m.TokenIDs[0]:
		return OutcomeToken{TokenID: m.TokenIDs[1], Label: m.Outcomes[1]}, true
	case m.TokenIDs[1]:
		return OutcomeToken{TokenID: m.TokenIDs[0], Label: m.Outcomes[0]}, true
	default:
		return OutcomeToken{}, false
	}
}

// HasToken reports whether tokenID belongs to this market.
func (m Market) HasToken(tokenID string) bool {
	for _, id := range m.TokenIDs {
		if id == tokenID {
			return true
		}
	}
	return false
}
