package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(StatusApproved))
	assert.True(t, IsTerminalStatus(StatusCanceled))
	assert.True(t, IsTerminalStatus(StatusRejected))

	assert.False(t, IsTerminalStatus(StatusPending))
	assert.False(t, IsTerminalStatus(""))
	assert.False(t, IsTerminalStatus("approved")) // statuses are case-sensitive
	assert.False(t, IsTerminalStatus("SETTLED"))
}

func TestIsValidTargetStatus(t *testing.T) {
	// PENDING is never a legal transition target, regardless of the
	// transaction's current state.
	assert.False(t, IsValidTargetStatus(StatusPending))

	assert.True(t, IsValidTargetStatus(StatusApproved))
	assert.True(t, IsValidTargetStatus(StatusCanceled))
	assert.True(t, IsValidTargetStatus(StatusRejected))
	assert.False(t, IsValidTargetStatus("UNKNOWN"))
}
