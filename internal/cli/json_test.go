package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlightJSON(t *testing.T) {
	disableColor = false
	t.Cleanup(func() { disableColor = checkNoColor() })

	out := HighlightJSON(`{"tier":"ECO","ok":true,"n":3,"x":null}`)
	assert.Contains(t, out, Blue+`"tier"`+ResetCode+":")
	assert.Contains(t, out, Green+`"ECO"`+ResetCode)
	assert.Contains(t, out, Yellow+"true"+ResetCode)
	assert.Contains(t, out, Purple+"3"+ResetCode)
	assert.Contains(t, out, DimCode+"null"+ResetCode)
}

func TestHighlightJSON_Disabled(t *testing.T) {
	disableColor = true
	t.Cleanup(func() { disableColor = checkNoColor() })

	in := `{"a":1}`
	assert.Equal(t, in, HighlightJSON(in))
	assert.Equal(t, "ECO", Stylize("ECO", TierColor("ECO")))
}
