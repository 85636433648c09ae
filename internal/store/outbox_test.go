package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_PendingAndMarkPublished(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedCommitCatalog(t, s)
	workoutID := seedWorkout(t, s, "2021-03-04T10:00:00Z", 30, 6, 1)

	res, err := s.CommitOutcome(ctx, commitFixture(t, s, workoutID, 6))
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Less(t, pending[0].Seq, pending[1].Seq)
	assert.Equal(t, res.Events[0].ID, pending[0].Event.ID)
	assert.Equal(t, res.Events[0].UserAchievementID, pending[0].Event.UserAchievementID)
	assert.Equal(t, "run-1", pending[0].RunID)

	limited, err := s.PendingEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.MarkPublished(ctx, []string{pending[0].Event.ID}, date("2021-03-04T12:00:00Z")))

	rest, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, pending[1].Event.ID, rest[0].Event.ID)

	require.NoError(t, s.MarkPublished(ctx, nil, date("2021-03-04T12:00:00Z")))
}
