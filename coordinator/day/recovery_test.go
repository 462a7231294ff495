package day

import (
	"context"
	"testing"

	dbtest "github.com/ai4all-network/coordinator/coordinator/db/testing"
	dbtypes "github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestRestore_ResumesActiveDay(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	params.OverrideCoordinatorConfig(params.MinimalConfig())
	ctx := context.Background()
	d := dbtest.SetupMemoryDB(t)

	a, _ := newTestService(t, d)
	alice := registerAccount(t, a)
	mustStartDay(t, a, "2026-01-28")
	blocks := nonCanaryBlocks(t, a, alice)
	out := submitOne(t, a, alice, goodSubmission(blocks[0]))

	// A second service over the same store plays the part of the restarted
	// process.
	b, _ := newTestService(t, d)
	assert.Equal(t, a.emitter.PrevHash(), b.emitter.PrevHash())

	status := b.DayStatus()
	assert.Equal(t, string(state.PhaseActive), status.Phase)
	assert.Equal(t, "2026-01-28", status.DayID)
	assert.Equal(t, 1, status.RosterSize)
	assert.Equal(t, 1, status.PendingSubmissions)

	// The projected state carries the processed block.
	c := b.netState.Contributors[alice]
	require.NotNil(t, c)
	assert.Equal(t, 1, len(c.CompletedBlocks))

	// Clients retrying across the restart hit the re-seeded cache: same
	// outcome, no new log entries.
	before, err := d.EventsByDay(ctx, "2026-01-28")
	require.NoError(t, err)
	again := submitOne(t, b, alice, goodSubmission(blocks[0]))
	assert.DeepEqual(t, out, again)
	after, err := d.EventsByDay(ctx, "2026-01-28")
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))

	// The resumed day keeps working end to end.
	submitOne(t, b, alice, goodSubmission(blocks[1]))
	res, err := b.FinalizeDay(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, res.Verification)
	assert.Equal(t, true, res.Verification.Valid())
}

func TestRestore_IdleAfterFinalizedDay(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	params.OverrideCoordinatorConfig(params.MinimalConfig())
	ctx := context.Background()
	d := dbtest.SetupMemoryDB(t)

	a, _ := newTestService(t, d)
	alice := registerAccount(t, a)
	mustStartDay(t, a, "2026-01-28")
	submitOne(t, a, alice, goodSubmission(nonCanaryBlocks(t, a, alice)[0]))
	res, err := a.FinalizeDay(ctx, "")
	require.NoError(t, err)

	b, _ := newTestService(t, d)
	assert.Equal(t, state.PhaseIdle, b.day.Phase)
	assert.Equal(t, int64(1), b.netState.DayNumber)
	// The restored state hashes to the committed state hash.
	hash, err := b.netState.Hash()
	require.NoError(t, err)
	assert.Equal(t, res.StateHash, hash)

	// The chain head survives the restart: the next event links to the
	// reward commitment.
	head := a.emitter.PrevHash()
	registerAccount(t, b)
	evs, err := d.EventsByDay(ctx, "2026-01-28")
	require.NoError(t, err)
	assert.Equal(t, head, evs[len(evs)-1].PrevEventHash)
}

func TestRestore_CompletesInterruptedFinalization(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	params.OverrideCoordinatorConfig(params.MinimalConfig())
	ctx := context.Background()

	// Run a full day on the first store, then rebuild a second store that
	// looks like a crash after the commit hit the log but before any
	// post-commit persistence: events and assignments only, checkpoint
	// still FINALIZING, no snapshot, no state blob, no credits.
	src := dbtest.SetupMemoryDB(t)
	a, _ := newTestService(t, src)
	alice := registerAccount(t, a)
	mustStartDay(t, a, "2026-01-28")
	submitOne(t, a, alice, goodSubmission(nonCanaryBlocks(t, a, alice)[0]))
	res, err := a.FinalizeDay(ctx, "")
	require.NoError(t, err)

	crashed := dbtest.SetupMemoryDB(t)
	evs, err := src.EventsSince(ctx, "")
	require.NoError(t, err)
	require.NoError(t, crashed.AppendEvents(ctx, evs))
	assignments, err := src.AssignmentsByDay(ctx, "2026-01-28")
	require.NoError(t, err)
	require.NoError(t, crashed.SaveAssignments(ctx, "2026-01-28", assignments))
	key, err := src.NodeKey(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, crashed.SaveNodeKey(ctx, alice, key))
	require.NoError(t, crashed.SaveDayLifecycle(ctx, &dbtypes.DayLifecycle{
		Phase: string(state.PhaseFinalizing),
		DayID: "2026-01-28",
	}))

	b, _ := newTestService(t, crashed)
	assert.Equal(t, state.PhaseIdle, b.day.Phase)
	assert.Equal(t, int64(1), b.netState.DayNumber)

	// All three post-commit artifacts were backfilled.
	snap, err := crashed.Snapshot(ctx, "2026-01-28")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, res.StateHash, snap.StateHash)
	srcSnap, err := src.Snapshot(ctx, "2026-01-28")
	require.NoError(t, err)
	assert.Equal(t, srcSnap.RewardHash, snap.RewardHash)
	assert.Equal(t, srcSnap.LastEventHash, snap.LastEventHash)

	blob, err := crashed.State(ctx, "2026-01-28")
	require.NoError(t, err)
	require.NotNil(t, blob)

	wantRow, err := src.Balance(ctx, alice)
	require.NoError(t, err)
	gotRow, err := crashed.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, wantRow.BalanceMicro, gotRow.BalanceMicro)

	lc, err := crashed.DayLifecycle(ctx)
	require.NoError(t, err)
	require.NotNil(t, lc)
	assert.Equal(t, string(state.PhaseIdle), lc.Phase)
}

func TestRestore_RevertsUncommittedFinalizing(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	params.OverrideCoordinatorConfig(params.MinimalConfig())
	ctx := context.Background()
	d := dbtest.SetupMemoryDB(t)

	a, _ := newTestService(t, d)
	alice := registerAccount(t, a)
	mustStartDay(t, a, "2026-01-28")
	blocks := nonCanaryBlocks(t, a, alice)
	submitOne(t, a, alice, goodSubmission(blocks[0]))

	// Simulate a crash between entering FINALIZING and the commit: the
	// checkpoint says FINALIZING but no commit event exists.
	lc, err := d.DayLifecycle(ctx)
	require.NoError(t, err)
	lc.Phase = string(state.PhaseFinalizing)
	require.NoError(t, d.SaveDayLifecycle(ctx, lc))

	b, _ := newTestService(t, d)
	assert.Equal(t, state.PhaseActive, b.day.Phase)
	saved, err := d.DayLifecycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(state.PhaseActive), saved.Phase)

	// Nothing was lost: the day accepts work and finalizes cleanly.
	submitOne(t, b, alice, goodSubmission(blocks[1]))
	res, err := b.FinalizeDay(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, res.Verification)
	assert.Equal(t, true, res.Verification.Valid())
}
