package worker

import (
	"testing"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMapRemoteStatus(t *testing.T) {
	cases := []struct {
		remote  string
		local   string
		changed bool
	}{
		{"APPROVED", models.StatusApproved, true},
		{"DECLINED", models.StatusRejected, true},
		{"REJECTED", models.StatusRejected, true},
		{"ERROR", models.StatusRejected, true},
		{"VOIDED", models.StatusCanceled, true},
		{"CANCELED", models.StatusCanceled, true},
		{"PENDING", "", false},
		{"IN_PROGRESS", "", false}, // unknown statuses change nothing
		{"", "", false},
	}

	for _, tc := range cases {
		local, changed := MapRemoteStatus(tc.remote)
		assert.Equal(t, tc.changed, changed, "remote=%s", tc.remote)
		if tc.changed {
			assert.Equal(t, tc.local, local, "remote=%s", tc.remote)
		}
	}
}

func TestMappedStatusesAreTerminal(t *testing.T) {
	// Every mapped status must be a legal transition target; the sweep
	// never writes PENDING.
	for remote, local := range remoteStatusMapping {
		assert.True(t, models.IsValidTargetStatus(local), "remote=%s", remote)
	}
}
