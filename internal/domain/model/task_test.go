package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"starting to running", TaskStatusStarting, TaskStatusRunning, true},
		{"starting to paused", TaskStatusStarting, TaskStatusPaused, true},
		{"starting to cancelled", TaskStatusStarting, TaskStatusCancelled, true},
		{"running to paused", TaskStatusRunning, TaskStatusPaused, true},
		{"paused to running", TaskStatusPaused, TaskStatusRunning, true},
		{"paused to cancelled", TaskStatusPaused, TaskStatusCancelled, true},
		{"self transition is idempotent", TaskStatusPaused, TaskStatusPaused, true},
		{"starting to completed skips running", TaskStatusStarting, TaskStatusCompleted, false},
		{"completed is terminal", TaskStatusCompleted, TaskStatusRunning, false},
		{"cancelled is terminal", TaskStatusCancelled, TaskStatusPaused, false},
		{"failed is terminal", TaskStatusFailed, TaskStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskStatusStarting.Terminal())
	assert.False(t, TaskStatusRunning.Terminal())
	assert.False(t, TaskStatusPaused.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
	assert.True(t, TaskStatusCancelled.Terminal())
}
