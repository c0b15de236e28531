package gateway

import (
	"strings"
	"unicode/utf8"

	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/pkg/api"
)

// Classifier maps a request to a routing tier. Implementations must be
// total and depend only on the request content.
type Classifier interface {
	Classify(req *api.ChatRequest) Tier
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(req *api.ChatRequest) Tier

func (f ClassifierFunc) Classify(req *api.ChatRequest) Tier { return f(req) }

// HeuristicClassifier scores the latest user message by length and keywords.
// PREMIUM checks run before the ECO short-circuit, so a short prompt that
// mentions "refactor" still routes to PREMIUM.
type HeuristicClassifier struct {
	LongPromptChars  int
	ShortPromptChars int
	PremiumKeywords  []string
	BalancedKeywords []string
}

func NewHeuristicClassifier(cfg config.ClassifierConfig) *HeuristicClassifier {
	c := &HeuristicClassifier{
		LongPromptChars:  cfg.LongPromptChars,
		ShortPromptChars: cfg.ShortPromptChars,
		PremiumKeywords:  lowerAll(cfg.PremiumKeywords),
		BalancedKeywords: lowerAll(cfg.BalancedKeywords),
	}
	if c.LongPromptChars <= 0 {
		c.LongPromptChars = 500
	}
	if c.ShortPromptChars <= 0 {
		c.ShortPromptChars = 100
	}
	if len(c.PremiumKeywords) == 0 {
		c.PremiumKeywords = []string{"code", "implement", "complex", "analyze", "refactor"}
	}
	if len(c.BalancedKeywords) == 0 {
		c.BalancedKeywords = []string{"explain", "how"}
	}
	return c
}

func (c *HeuristicClassifier) Classify(req *api.ChatRequest) Tier {
	text := req.LastUserMessage()
	length := utf8.RuneCountInString(text)
	lower := strings.ToLower(text)

	if length > c.LongPromptChars || containsAny(lower, c.PremiumKeywords) {
		return TierPremium
	}
	if length < c.ShortPromptChars && !containsAny(lower, c.BalancedKeywords) {
		return TierEco
	}
	return TierBalanced
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
