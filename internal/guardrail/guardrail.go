// Package guardrail holds the text filters applied to request and response
// content. A filter either rewrites the text or rejects it with ErrRejected.
package guardrail

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrRejected = errors.New("content rejected by moderation")

// Filter is a text -> text transformation that may refuse its input.
type Filter interface {
	Name() string
	Apply(text string) (string, error)
}

// Chain applies filters in order and stops at the first rejection.
type Chain []Filter

func (c Chain) Apply(text string) (string, error) {
	var err error
	for _, f := range c {
		text, err = f.Apply(text)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Name(), err)
		}
	}
	return text, nil
}

// PIIMasker replaces emails, card numbers and phone numbers with fixed
// markers. Cards are matched before phones since both are digit runs.
type PIIMasker struct{}

var piiPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b\d(?:[ \-]?\d){12,15}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`(?:\+?\d{1,2}[ .\-]?)?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`), "[REDACTED_PHONE]"},
}

func (PIIMasker) Name() string { return "pii_masking" }

func (PIIMasker) Apply(text string) (string, error) {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text, nil
}

// Moderator rejects text containing any blocked term, case-insensitively.
type Moderator struct {
	terms []string
}

func NewModerator(terms []string) *Moderator {
	m := &Moderator{}
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			m.terms = append(m.terms, t)
		}
	}
	return m
}

func (m *Moderator) Name() string { return "content_moderation" }

func (m *Moderator) Apply(text string) (string, error) {
	lower := strings.ToLower(text)
	for _, t := range m.terms {
		if strings.Contains(lower, t) {
			return "", fmt.Errorf("%w: blocked term %q", ErrRejected, t)
		}
	}
	return text, nil
}
