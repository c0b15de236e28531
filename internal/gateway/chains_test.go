package gateway

import (
	"testing"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewChains_Defaults(t *testing.T) {
	c := NewChains(config.ChainsConfig{})

	assert.Equal(t, []string{"gpt-4o", "claude-3-5-sonnet-20241022", "gpt-4-turbo"}, c.For(TierPremium))
	assert.Equal(t, []string{"gpt-4o-mini", "claude-3-sonnet-20240229", "gemini-pro"}, c.For(TierBalanced))
	assert.Equal(t, []string{"gpt-3.5-turbo", "llama3", "mistral-7b"}, c.For(TierEco))
}

func TestNewChains_Overrides(t *testing.T) {
	c := NewChains(config.ChainsConfig{
		Premium: []string{"claude-3-opus"},
		Eco:     []string{"", "phi3", "", ""},
	})

	assert.Equal(t, []string{"claude-3-opus"}, c.For(TierPremium))
	assert.Equal(t, DefaultChains[TierBalanced], c.For(TierBalanced))
	// blanks take the default at the same position, blanks past the end drop
	assert.Equal(t, []string{"gpt-3.5-turbo", "phi3", "mistral-7b"}, c.For(TierEco))
}

func TestChains_ForReturnsCopy(t *testing.T) {
	c := NewChains(config.ChainsConfig{})
	chain := c.For(TierEco)
	chain[0] = "mutated"

	assert.Equal(t, "gpt-3.5-turbo", c.For(TierEco)[0])
	assert.Equal(t, "gpt-3.5-turbo", DefaultChains[TierEco][0])
}

func TestChains_UnknownTierPanics(t *testing.T) {
	c := NewChains(config.ChainsConfig{})
	assert.Panics(t, func() { c.For(Tier(42)) })
}

func TestChains_All(t *testing.T) {
	all := NewChains(config.ChainsConfig{}).All()
	assert.Len(t, all, 3)
	assert.Equal(t, "gpt-4o", all["PREMIUM"][0])
}

func TestTier(t *testing.T) {
	for _, tier := range Tiers {
		parsed, err := ParseTier(tier.String())
		assert.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	parsed, err := ParseTier(" premium ")
	assert.NoError(t, err)
	assert.Equal(t, TierPremium, parsed)

	_, err = ParseTier("gold")
	assert.Error(t, err)

	assert.False(t, Tier(7).Valid())
	_, err = Tier(7).MarshalText()
	assert.Error(t, err)

	var tier Tier
	assert.NoError(t, tier.UnmarshalText([]byte("balanced")))
	assert.Equal(t, TierBalanced, tier)
}
