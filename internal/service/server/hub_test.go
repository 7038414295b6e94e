package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubNotify(t *testing.T) {
	h := NewHub()
	a, unsubA := h.Subscribe("x")
	b, unsubB := h.Subscribe("x")
	c, unsubC := h.Subscribe("y")
	assert.Equal(t, 3, h.Waiting())

	// repeated notifies coalesce instead of blocking
	h.Notify("x")
	h.Notify("x")

	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
	assert.Len(t, c, 0)

	unsubA()
	unsubB()
	unsubC()
	assert.Zero(t, h.Waiting())
	assert.Empty(t, h.subs)

	h.Notify("x")
}
