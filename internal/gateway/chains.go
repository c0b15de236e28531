package gateway

import (
	"fmt"

	"github.com/nulzo/tier-router/internal/config"
)

// DefaultChains are used for any tier, or any position in a tier, that
// configuration leaves empty.
var DefaultChains = map[Tier][]string{
	TierPremium:  {"gpt-4o", "claude-3-5-sonnet-20241022", "gpt-4-turbo"},
	TierBalanced: {"gpt-4o-mini", "claude-3-sonnet-20240229", "gemini-pro"},
	TierEco:      {"gpt-3.5-turbo", "llama3", "mistral-7b"},
}

// Chains holds the ordered fallback list per tier. It is immutable after
// construction and safe for concurrent reads.
type Chains struct {
	byTier map[Tier][]string
}

// NewChains merges configured chains over the defaults. An empty list takes
// the whole default chain; an empty entry takes the default at the same
// position, or is dropped when the default chain is shorter.
func NewChains(cfg config.ChainsConfig) *Chains {
	configured := map[Tier][]string{
		TierPremium:  cfg.Premium,
		TierBalanced: cfg.Balanced,
		TierEco:      cfg.Eco,
	}

	c := &Chains{byTier: make(map[Tier][]string, len(Tiers))}
	for _, tier := range Tiers {
		defaults := DefaultChains[tier]
		list := configured[tier]
		if len(list) == 0 {
			c.byTier[tier] = append([]string(nil), defaults...)
			continue
		}

		merged := make([]string, 0, len(list))
		for i, model := range list {
			switch {
			case model != "":
				merged = append(merged, model)
			case i < len(defaults):
				merged = append(merged, defaults[i])
			}
		}
		if len(merged) == 0 {
			merged = append(merged, defaults...)
		}
		c.byTier[tier] = merged
	}
	return c
}

// For returns a copy of the chain for tier. Every valid tier has a
// non-empty chain by construction, so an unknown tier is a programming error.
func (c *Chains) For(tier Tier) []string {
	chain, ok := c.byTier[tier]
	if !ok || len(chain) == 0 {
		panic(fmt.Sprintf("gateway: no model chain for tier %s", tier))
	}
	return append([]string(nil), chain...)
}

// All returns a copy of every chain keyed by tier name.
func (c *Chains) All() map[string][]string {
	out := make(map[string][]string, len(c.byTier))
	for tier, chain := range c.byTier {
		out[tier.String()] = append([]string(nil), chain...)
	}
	return out
}
