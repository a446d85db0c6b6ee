package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorForFallbacks(t *testing.T) {
	assert.Equal(t, ColorGreen, colorFor("pull_request", "opened"))
	assert.Equal(t, ColorOrange, colorFor("pull_request_review", "submitted", "changes_requested"))
	// Unknown review states are not painted as failures.
	assert.Equal(t, ColorUnknown, colorFor("pull_request_review", "submitted", "bogus"))
	assert.Equal(t, ColorUnknown, colorFor("pull_request_review", "submitted", "commented"))
	assert.Equal(t, ColorGreen, colorFor("push", ""))
	assert.Equal(t, ColorStarred, colorFor("star", "created"))
	assert.Equal(t, ColorUnstarred, colorFor("star", "deleted"))
	// Action-only table.
	assert.Equal(t, ColorRed, colorFor("some_new_event", "deleted"))
	assert.Equal(t, ColorUnknown, colorFor("some_new_event", "teleported"))
}
