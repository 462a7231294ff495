package day

import (
	"context"
	"testing"

	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestWorkFor_ReturnsAssignment(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	alice := registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")

	// A single contributor wins every batch.
	resp, err := srv.WorkFor(ctx, alice, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-28", resp.DayID)
	assert.Equal(t, true, resp.Assigned)
	require.NotNil(t, resp.Assignment)
	assert.Equal(t, 6, len(resp.Assignment.BlockIDs))
	assert.Equal(t, 3, resp.Assignment.BatchNumber)
	assert.Equal(t, "", resp.Reason)
}

func TestWorkFor_RequiresActiveDay(t *testing.T) {
	srv, _ := setupService(t)
	alice := registerAccount(t, srv)

	_, err := srv.WorkFor(context.Background(), alice, "")
	require.Equal(t, ErrDayNotStarted, err)
}

func TestWorkFor_DayMismatch(t *testing.T) {
	srv, _ := setupService(t)
	alice := registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")

	_, err := srv.WorkFor(context.Background(), alice, "2026-01-29")
	require.Equal(t, ErrDayMismatch, err)
}

func TestWorkFor_LateRegistrationLockedOut(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	registerAccount(t, srv)
	mustStartDay(t, srv, "")
	bob := registerAccount(t, srv)

	resp, err := srv.WorkFor(ctx, bob, "")
	require.NoError(t, err)
	assert.Equal(t, false, resp.Assigned)
	assert.Equal(t, true, resp.Assignment == nil)
	assert.Equal(t, ReasonRosterLocked, resp.Reason)
}

func TestWorkFor_RosterMemberWithoutBatches(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	// Twenty contributors chase three batches, so most of the roster wins
	// nothing. Those members are in the day but hold no assignment.
	accounts := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		accounts = append(accounts, registerAccount(t, srv))
	}
	mustStartDay(t, srv, "")

	var loser string
	for _, id := range accounts {
		if srv.day.AssignmentFor(id) == nil {
			loser = id
			break
		}
	}
	require.NotEqual(t, "", loser, "expected at least one contributor without an assignment")

	resp, err := srv.WorkFor(ctx, loser, "")
	require.NoError(t, err)
	assert.Equal(t, false, resp.Assigned)
	assert.Equal(t, true, resp.Assignment == nil)
	assert.Equal(t, "", resp.Reason, "roster members without batches carry no rejection reason")
}
