package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardsAndSprints(t *testing.T) {
	s := seededStore(t)

	boards := s.Boards()
	require.Len(t, boards, 1)
	assert.Equal(t, "DEV", boards[0].Project)

	sprints, err := s.Sprints(1)
	require.NoError(t, err)
	require.Len(t, sprints, 2)
	assert.Equal(t, SprintActive, sprints[0].State)
	assert.Equal(t, SprintFuture, sprints[1].State)

	_, err = s.Sprints(42)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestBacklog(t *testing.T) {
	s := seededStore(t)

	// DEV-1 is in Sprint 1, DEV-2 is not; SUP-1 belongs to another project.
	backlog, err := s.Backlog(1)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, "DEV-2", backlog[0].Key)
}

func TestMoveToSprint(t *testing.T) {
	s := seededStore(t)

	require.NoError(t, s.MoveToSprint(2, []string{"DEV-2"}))

	issues, err := s.SprintIssues(2)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "DEV-2", issues[0].Key)

	backlog, err := s.Backlog(1)
	require.NoError(t, err)
	assert.Empty(t, backlog)
}

func TestMoveToSprintFailsWholeBatch(t *testing.T) {
	s := seededStore(t)

	err := s.MoveToSprint(2, []string{"DEV-2", "GONE-1"})
	require.Error(t, err)

	// No issue moved.
	issues, err := s.SprintIssues(2)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestSprintStateMachine(t *testing.T) {
	s := seededStore(t)

	// Sprint 2 is future; it can only activate.
	sp, err := s.UpdateSprintState(2, SprintActive)
	require.NoError(t, err)
	assert.Equal(t, SprintActive, sp.State)
	assert.False(t, sp.Start.IsZero(), "activation stamps the start date")

	sp, err = s.UpdateSprintState(2, SprintClosed)
	require.NoError(t, err)
	assert.Equal(t, SprintClosed, sp.State)
	assert.False(t, sp.End.IsZero())

	tests := []struct {
		name  string
		id    int
		state string
	}{
		{"closed cannot reopen", 2, SprintActive},
		{"closed cannot go future", 2, SprintFuture},
		{"active cannot go future", 1, SprintFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdateSprintState(tt.id, tt.state)
			var conflict *ConflictError
			assert.ErrorAs(t, err, &conflict)
		})
	}

	_, err = s.UpdateSprintState(1, "paused")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSprintStateSkipIsConflict(t *testing.T) {
	s := seededStore(t)

	// future -> closed skips active.
	_, err := s.UpdateSprintState(2, SprintClosed)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	sp, err := s.SprintByID(2)
	require.NoError(t, err)
	assert.Equal(t, SprintFuture, sp.State)
}
