package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/status"
)

func TestDecideMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         ModeInput
		wantMode   status.SyncMode
		wantReason string
		forced     bool
	}{
		{
			name:       "flagged tenant",
			in:         ModeInput{RequiresFullSync: true, HasPriorSuccess: true, IncrementalRequested: true},
			wantMode:   status.SyncModeFull,
			wantReason: ReasonRequiresFullSync,
			forced:     true,
		},
		{
			name:       "full requested",
			in:         ModeInput{FullRequested: true, HasPriorSuccess: true},
			wantMode:   status.SyncModeFull,
			wantReason: ReasonFullRequested,
			forced:     true,
		},
		{
			name:       "never synced",
			in:         ModeInput{IncrementalRequested: true},
			wantMode:   status.SyncModeFull,
			wantReason: ReasonNoPriorSuccess,
		},
		{
			name:       "incremental requested",
			in:         ModeInput{IncrementalRequested: true, HasPriorSuccess: true},
			wantMode:   status.SyncModeIncremental,
			wantReason: ReasonIncrementalRequested,
		},
		{
			name:       "auto",
			in:         ModeInput{HasPriorSuccess: true},
			wantMode:   status.SyncModeIncremental,
			wantReason: ReasonIncremental,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mode, reason := DecideMode(tt.in)
			assert.Equal(t, tt.wantMode, mode)
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.forced, IsForcedFull(reason))
		})
	}
}
