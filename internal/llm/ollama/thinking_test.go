package ollama

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripThinking(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "plain answer", "plain answer"},
		{"leading block", "<think>hmm</think>The answer is 4.", "The answer is 4."},
		{"two blocks", "a<think>x</think>b<think>y</think>c", "abc"},
		{"unterminated", "before<think>never ends", "before"},
		{"stray close", "a</think>b", "a</think>b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripThinking(tt.in))
		})
	}
}

func TestThinkFilter_SplitTags(t *testing.T) {
	var f thinkFilter
	var got string
	for _, part := range []string{"Hi <th", "ink>secret</thi", "nk> there", " <", "b>"} {
		got += f.Feed(part)
	}
	got += f.Flush()
	assert.Equal(t, "Hi  there <b>", got)
}

func TestThinkFilter_HoldsPartialUntilFlush(t *testing.T) {
	var f thinkFilter
	assert.Equal(t, "x", f.Feed("x<thi"))
	assert.Equal(t, "<thi", f.Flush())
}
