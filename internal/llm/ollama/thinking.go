package ollama

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// stripThinking drops every <think>...</think> block from text. An
// unterminated block swallows the rest of the text.
func stripThinking(text string) string {
	var f thinkFilter
	return f.Feed(text) + f.Flush()
}

// thinkFilter removes reasoning blocks from a stream of fragments. Tags may
// be split across fragments, so a possible tag prefix at the end of a
// fragment is held back until the next one arrives.
type thinkFilter struct {
	inside  bool
	pending string
}

// Feed returns the visible part of fragment.
func (f *thinkFilter) Feed(fragment string) string {
	text := f.pending + fragment
	f.pending = ""

	var out strings.Builder
	for text != "" {
		tag := thinkOpen
		if f.inside {
			tag = thinkClose
		}

		if i := strings.Index(text, tag); i >= 0 {
			if !f.inside {
				out.WriteString(text[:i])
			}
			text = text[i+len(tag):]
			f.inside = !f.inside
			continue
		}

		keep := partialSuffix(text, tag)
		if !f.inside {
			out.WriteString(text[:len(text)-keep])
		}
		f.pending = text[len(text)-keep:]
		break
	}
	return out.String()
}

// Flush releases a held back fragment once the stream has ended.
func (f *thinkFilter) Flush() string {
	p := f.pending
	f.pending = ""
	if f.inside {
		return ""
	}
	return p
}

// partialSuffix is the length of the longest suffix of text that is a
// proper prefix of tag.
func partialSuffix(text, tag string) int {
	for n := min(len(tag)-1, len(text)); n > 0; n-- {
		if strings.HasPrefix(tag, text[len(text)-n:]) {
			return n
		}
	}
	return 0
}
