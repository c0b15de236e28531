package tokenizer

import (
	"strings"
	"sync"

	"github.com/nulzo/tier-router/pkg/api"
	"github.com/pkoukk/tiktoken-go"
)

const (
	tokensPerMessage = 3
	replyPriming     = 3
)

// Counter estimates token counts. OpenAI model families use tiktoken;
// everything else falls back to len/4.
type Counter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
	failed    map[string]bool
}

func NewCounter() *Counter {
	return &Counter{
		encodings: make(map[string]*tiktoken.Tiktoken),
		failed:    make(map[string]bool),
	}
}

// Longer prefixes first so gpt-4o wins over gpt-4.
var modelEncoding = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}

func encodingForModel(modelName string) string {
	for _, m := range modelEncoding {
		if strings.HasPrefix(modelName, m.prefix) {
			return m.encoding
		}
	}
	return ""
}

func (c *Counter) getEncoding(modelName string) *tiktoken.Tiktoken {
	encName := encodingForModel(modelName)
	if encName == "" {
		return nil
	}

	c.mu.RLock()
	enc, ok := c.encodings[encName]
	failed := c.failed[encName]
	c.mu.RUnlock()
	if ok {
		return enc
	}
	if failed {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[encName]; ok {
		return enc
	}

	enc, err := tiktoken.GetEncoding(encName)
	if err != nil {
		// BPE files are fetched lazily; offline hosts keep using the heuristic.
		c.failed[encName] = true
		return nil
	}
	c.encodings[encName] = enc
	return enc
}

// CountMessages estimates the prompt size of a conversation.
func (c *Counter) CountMessages(modelName string, messages []api.ChatMessage) int {
	enc := c.getEncoding(modelName)
	if enc == nil {
		return fallbackCount(messages)
	}

	tokens := 0
	for _, msg := range messages {
		tokens += tokensPerMessage
		tokens += len(enc.Encode(string(msg.Role), nil, nil))
		tokens += len(enc.Encode(msg.Content, nil, nil))
	}
	return tokens + replyPriming
}

// CountText estimates the token count for a single text string.
func (c *Counter) CountText(modelName string, text string) int {
	enc := c.getEncoding(modelName)
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func fallbackCount(messages []api.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content) / 4
	}
	return total
}
