package kv

import (
	"context"
	"fmt"
	"testing"

	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func makeSubmission(contributorID string, n int) *state.BlockSubmission {
	return &state.BlockSubmission{
		ContributorID:        contributorID,
		BlockID:              fmt.Sprintf("2025-06-10-b0-%d", n),
		BlockType:            state.BlockTypeInference,
		ResourceUsage:        0.4,
		DifficultyMultiplier: 1.0,
		ValidationPassed:     true,
		Timestamp:            "2025-06-10T13:00:00.000Z",
	}
}

func TestStore_SubmissionsArrivalOrder(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, db.AppendSubmissions(ctx, "2025-06-10", []*state.BlockSubmission{
		makeSubmission("ai4a-alice", 0),
		makeSubmission("ai4a-bob", 1),
	}))
	require.NoError(t, db.AppendSubmissions(ctx, "2025-06-10", []*state.BlockSubmission{
		makeSubmission("ai4a-alice", 2),
	}))

	subs, err := db.SubmissionsByDay(ctx, "2025-06-10")
	require.NoError(t, err)
	require.Equal(t, 3, len(subs))
	assert.Equal(t, "2025-06-10-b0-0", subs[0].BlockID)
	assert.Equal(t, "2025-06-10-b0-1", subs[1].BlockID)
	assert.Equal(t, "2025-06-10-b0-2", subs[2].BlockID)

	byNode, err := db.SubmissionsByNode(ctx, "2025-06-10", "ai4a-alice")
	require.NoError(t, err)
	require.Equal(t, 2, len(byNode))
	assert.Equal(t, "2025-06-10-b0-0", byNode[0].BlockID)
	assert.Equal(t, "2025-06-10-b0-2", byNode[1].BlockID)

	otherDay, err := db.SubmissionsByDay(ctx, "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, 0, len(otherDay))
}
