package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "in_progress", "completed", "blocked", "failed"} {
		s, err := ParseStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, TaskStatus(valid), s)
	}

	for _, invalid := range []string{"", "done", "PENDING", "in-progress"} {
		_, err := ParseStatus(invalid)
		assert.ErrorIs(t, err, ErrInvalidStatus, "input %q", invalid)
	}
}

func TestParsePriority(t *testing.T) {
	for _, valid := range []string{"low", "medium", "high", "critical"} {
		p, err := ParsePriority(valid)
		require.NoError(t, err)
		assert.Equal(t, TaskPriority(valid), p)
	}

	for _, invalid := range []string{"", "urgent", "High"} {
		_, err := ParsePriority(invalid)
		assert.ErrorIs(t, err, ErrInvalidPriority, "input %q", invalid)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusInProgress.IsTerminal())
	assert.False(t, TaskStatusBlocked.IsTerminal())
}
