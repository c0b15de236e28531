package gateway

import (
	"fmt"
	"strings"
)

// Tier is the routing outcome of classification, ordered by increasing
// capability and cost.
type Tier int

const (
	TierEco Tier = iota
	TierBalanced
	TierPremium
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierEco, TierBalanced, TierPremium}

func (t Tier) String() string {
	switch t {
	case TierEco:
		return "ECO"
	case TierBalanced:
		return "BALANCED"
	case TierPremium:
		return "PREMIUM"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

func (t Tier) Valid() bool {
	return t >= TierEco && t <= TierPremium
}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ECO":
		return TierEco, nil
	case "BALANCED":
		return TierBalanced, nil
	case "PREMIUM":
		return TierPremium, nil
	}
	return 0, fmt.Errorf("unknown routing tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid routing tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
