package ledger

import (
	"fmt"
	"strings"
)

// Policy decides what happens to the paid annotation of settlements when the
// settlement set is regenerated.
type Policy int

const (
	// PolicyCarryForward keeps the ID and paid state of a previous settlement
	// when an identical one (same debtor, creditor and amount in cents) is
	// produced again.
	PolicyCarryForward Policy = iota
	// PolicyOverwrite starts every regenerated settlement unpaid.
	PolicyOverwrite
)

func (p Policy) String() string {
	switch p {
	case PolicyCarryForward:
		return "carry-forward"
	case PolicyOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the textual form used in configuration.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "carry-forward", "carry_forward", "carryforward":
		return PolicyCarryForward, nil
	case "overwrite":
		return PolicyOverwrite, nil
	default:
		return 0, fmt.Errorf("unknown settlement policy %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
