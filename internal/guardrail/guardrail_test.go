package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMasker(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "mail me at jane.doe@example.com please", "mail me at [REDACTED_EMAIL] please"},
		{"phone", "call 555-123-4567 now", "call [REDACTED_PHONE] now"},
		{"card", "card 4111 1111 1111 1111 ok", "card [REDACTED_CARD] ok"},
		{"clean", "nothing to see", "nothing to see"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PIIMasker{}.Apply(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModerator(t *testing.T) {
	m := NewModerator([]string{" Forbidden ", ""})

	_, err := m.Apply("this is FORBIDDEN text")
	assert.ErrorIs(t, err, ErrRejected)

	out, err := m.Apply("fine")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestChain(t *testing.T) {
	c := Chain{PIIMasker{}, NewModerator([]string{"redacted_email"})}

	_, err := c.Apply("a@b.io")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "content_moderation")

	out, err := Chain{}.Apply("x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}
