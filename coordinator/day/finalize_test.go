package day

import (
	"context"
	"testing"
	"time"

	dbtypes "github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/ledger"
	"github.com/ai4all-network/coordinator/coordinator/rewards"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestFinalizeDay_EndToEnd(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	alice := registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")
	submitOne(t, srv, alice, goodSubmission(nonCanaryBlocks(t, srv, alice)[0]))

	res, err := srv.FinalizeDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-28", res.DayID)
	assert.Equal(t, int64(1), res.DayNumber)
	assert.Equal(t, 64, len(res.RewardRoot))
	assert.Equal(t, 64, len(res.StateHash))
	assert.Equal(t, true, res.Credited)

	require.NotNil(t, res.Distribution)
	assert.Equal(t, 100.0, res.Distribution.TotalEmissions)
	assert.Equal(t, 1, res.Distribution.ActiveContributorCount)
	require.Equal(t, 1, len(res.Distribution.Rewards))
	entry := res.Distribution.Rewards[0]
	assert.Equal(t, alice, entry.AccountID)
	// A lone active contributor takes both pools.
	approxEqual(t, 100.0, entry.TotalReward, "total reward")

	// The service verified its own finalization before reporting it.
	require.NotNil(t, res.Verification)
	assert.Equal(t, true, res.Verification.Valid())

	// Back to idle, day counter advanced, retry cache dropped.
	assert.Equal(t, state.PhaseIdle, srv.day.Phase)
	assert.Equal(t, int64(1), srv.netState.DayNumber)
	assert.Equal(t, 0, srv.processed.ItemCount())

	snap, err := srv.cfg.Database.Snapshot(ctx, "2026-01-28")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, res.StateHash, snap.StateHash)
	assert.Equal(t, int64(1), snap.DayNumber)
	assert.Equal(t, srv.emitter.PrevHash(), snap.LastEventHash)
	wantRewardHash, err := rewards.Hash(res.Distribution.Rewards)
	require.NoError(t, err)
	assert.Equal(t, wantRewardHash, snap.RewardHash)

	blob, err := srv.cfg.Database.State(ctx, "2026-01-28")
	require.NoError(t, err)
	require.NotNil(t, blob)
	blobHash, err := blob.Hash()
	require.NoError(t, err)
	assert.Equal(t, snap.StateHash, blobHash)

	row, err := srv.cfg.Database.Balance(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, ledger.ToMicro(entry.TotalReward), row.BalanceMicro)
	assert.Equal(t, "2026-01-28", row.LastRewardDay)

	history, err := srv.cfg.Database.BalanceHistory(ctx, alice, 10)
	require.NoError(t, err)
	require.Equal(t, 1, len(history))
	assert.Equal(t, dbtypes.EntryTypeReward, history[0].EntryType)
	assert.Equal(t, row.BalanceMicro, history[0].BalanceAfterMicro)

	assert.Equal(t, 1, countEvents(t, srv, "2026-01-28", events.TypeDayFinalized))
	assert.Equal(t, 1, countEvents(t, srv, "2026-01-28", events.TypeRewardsCommitted))

	// The day is closed: a second finalize has nothing to act on.
	_, err = srv.FinalizeDay(ctx, "")
	require.Equal(t, ErrDayNotStarted, err)
}

func TestFinalizeDay_RequiresActiveDay(t *testing.T) {
	srv, _ := setupService(t)
	_, err := srv.FinalizeDay(context.Background(), "")
	require.Equal(t, ErrDayNotStarted, err)
}

func TestFinalizeDay_DayMismatch(t *testing.T) {
	srv, _ := setupService(t)
	registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")

	_, err := srv.FinalizeDay(context.Background(), "2026-01-29")
	require.Equal(t, ErrDayMismatch, err)
}

func TestFinalizeDay_EmptyDayCommits(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	mustStartDay(t, srv, "2026-01-28")
	res, err := srv.FinalizeDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DayNumber)
	assert.Equal(t, 0, len(res.Distribution.Rewards))
	require.NotNil(t, res.Verification)
	assert.Equal(t, true, res.Verification.Valid())

	supply, err := srv.cfg.Database.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), supply)
}

func TestFinalizeDay_SubmissionsRejectedAfterClose(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	alice := registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")
	blockID := nonCanaryBlocks(t, srv, alice)[0]

	_, err := srv.FinalizeDay(ctx, "")
	require.NoError(t, err)

	_, err = srv.SubmitWork(ctx, alice, "", []*state.BlockSubmission{goodSubmission(blockID)})
	require.Equal(t, ErrDayNotStarted, err)
}

func TestFinalizeDay_ChainContinuesAcrossDays(t *testing.T) {
	srv, clock := setupService(t)
	ctx := context.Background()

	registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")
	_, err := srv.FinalizeDay(ctx, "")
	require.NoError(t, err)
	head := srv.emitter.PrevHash()

	clock.advance(24 * time.Hour)
	mustStartDay(t, srv, "2026-01-29")

	evs, err := srv.cfg.Database.EventsByDay(ctx, "2026-01-29")
	require.NoError(t, err)
	require.Equal(t, 3, len(evs))
	// The chain never restarts: the new day links to the previous day's
	// reward commitment.
	assert.Equal(t, head, evs[0].PrevEventHash)
	assert.Equal(t, int64(0), evs[0].SequenceNumber)
}

func TestFinalizeDay_InactiveContributorExcluded(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	alice := registerAccount(t, srv)
	bob := registerAccount(t, srv)
	mustStartDay(t, srv, "2026-01-28")

	// Whoever won the draw works; the other contributor sits the day out
	// and earns nothing.
	worker, bystander := alice, bob
	if srv.day.AssignmentFor(worker) == nil {
		worker, bystander = bob, alice
	}
	submitOne(t, srv, worker, goodSubmission(nonCanaryBlocks(t, srv, worker)[0]))

	res, err := srv.FinalizeDay(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, len(res.Distribution.Rewards))
	assert.Equal(t, worker, res.Distribution.Rewards[0].AccountID)
	approxEqual(t, 100.0, res.Distribution.Rewards[0].TotalReward, "sole active contributor takes both pools")

	row, err := srv.cfg.Database.Balance(ctx, bystander)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.BalanceMicro)
}
