package domain

import "strings"

// OutcomeKind tags an outcome label as one of the binary sides or a
// free-form name (team, Over/Under, Up/Down).
type OutcomeKind uint8

const (
	OutcomeOther OutcomeKind = iota
	OutcomeYes
	OutcomeNo
)

// Outcome is a position's outcome label. Orders are always routed by token
// ID; the label only matters when the venue wants a YES/NO tag.
type Outcome struct {
	Kind OutcomeKind
	Raw  string
}

// ParseOutcome normalises a free-form label.
func ParseOutcome(label string) Outcome {
	raw := strings.TrimSpace(label)
	switch strings.ToUpper(raw) {
	case "YES":
		return Outcome{Kind: OutcomeYes, Raw: raw}
	case "NO":
		return Outcome{Kind: OutcomeNo, Raw: raw}
	default:
		return Outcome{Kind: OutcomeOther, Raw: raw}
	}
}

// Defined reports whether the position carries any outcome label at all.
func (o Outcome) Defined() bool {
	return o.Kind != OutcomeOther || o.Raw != ""
}

func (o Outcome) IsBinary() bool {
	return o.Kind == OutcomeYes || o.Kind == OutcomeNo
}

// BinaryLabel returns "YES" or "NO", or an empty string for non-binary labels.
func (o Outcome) BinaryLabel() string {
	switch o.Kind {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	default:
		return ""
	}
}

func (o Outcome) String() string {
	if o.IsBinary() {
		return o.BinaryLabel()
	}
	return o.Raw
}
