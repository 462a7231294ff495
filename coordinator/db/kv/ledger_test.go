package kv

import (
	"context"
	"testing"

	"github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestStore_CreditRewards_IdempotentPerDay(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	entries := []*state.RewardEntry{
		{AccountID: "ai4a-alice", TotalReward: 1.5},
		{AccountID: "ai4a-bob", TotalReward: 0.5},
	}
	credited, err := db.CreditRewards(ctx, "2025-06-10", entries)
	require.NoError(t, err)
	assert.Equal(t, true, credited)

	// Replaying the same day is a no-op.
	credited, err = db.CreditRewards(ctx, "2025-06-10", entries)
	require.NoError(t, err)
	assert.Equal(t, false, credited)

	alice, err := db.Balance(ctx, "ai4a-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), alice.BalanceMicro)
	assert.Equal(t, int64(1_500_000), alice.TotalEarnedMicro)
	assert.Equal(t, "2025-06-10", alice.LastRewardDay)

	// A different day credits on top.
	credited, err = db.CreditRewards(ctx, "2025-06-11", entries[:1])
	require.NoError(t, err)
	assert.Equal(t, true, credited)

	alice, err = db.Balance(ctx, "ai4a-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), alice.BalanceMicro)
	assert.Equal(t, "2025-06-11", alice.LastRewardDay)
}

func TestStore_Credit_IdempotentPerEntry(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	credited, err := db.Credit(ctx, "ai4a-alice", "2025-06-10", types.EntryTypeCrawl, 250_000)
	require.NoError(t, err)
	assert.Equal(t, true, credited)

	credited, err = db.Credit(ctx, "ai4a-alice", "2025-06-10", types.EntryTypeCrawl, 250_000)
	require.NoError(t, err)
	assert.Equal(t, false, credited)

	// Same day, different entry type is a distinct credit.
	credited, err = db.Credit(ctx, "ai4a-alice", "2025-06-10", types.EntryTypeTask, 100_000)
	require.NoError(t, err)
	assert.Equal(t, true, credited)

	row, err := db.Balance(ctx, "ai4a-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(350_000), row.BalanceMicro)
	assert.Equal(t, "", row.LastRewardDay, "non-reward credits must not move the reward day marker")
}

func TestStore_BalanceHistory(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.Credit(ctx, "ai4a-alice", "2025-06-09", types.EntryTypeReward, 1_000_000)
	require.NoError(t, err)
	_, err = db.Credit(ctx, "ai4a-alice", "2025-06-10", types.EntryTypeReward, 2_000_000)
	require.NoError(t, err)
	_, err = db.Credit(ctx, "ai4a-alice", "2025-06-10", types.EntryTypeCrawl, 50_000)
	require.NoError(t, err)
	_, err = db.Credit(ctx, "ai4a-bob", "2025-06-10", types.EntryTypeReward, 500_000)
	require.NoError(t, err)

	history, err := db.BalanceHistory(ctx, "ai4a-alice", 0)
	require.NoError(t, err)
	require.Equal(t, 3, len(history))
	assert.Equal(t, "2025-06-10", history[0].DayID)
	assert.Equal(t, "2025-06-10", history[1].DayID)
	assert.Equal(t, "2025-06-09", history[2].DayID)

	// Each row carries the running balance at the instant it was written.
	assert.Equal(t, types.EntryTypeCrawl, history[0].EntryType)
	assert.Equal(t, int64(3_050_000), history[0].BalanceAfterMicro)
	assert.Equal(t, types.EntryTypeReward, history[1].EntryType)
	assert.Equal(t, int64(3_000_000), history[1].BalanceAfterMicro)
	assert.Equal(t, int64(1_000_000), history[2].BalanceAfterMicro)

	limited, err := db.BalanceHistory(ctx, "ai4a-alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, len(limited))
}

func TestStore_LeaderboardAndSupply(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.Credit(ctx, "ai4a-alice", "2025-06-10", types.EntryTypeReward, 3_000_000)
	require.NoError(t, err)
	_, err = db.Credit(ctx, "ai4a-bob", "2025-06-10", types.EntryTypeReward, 1_000_000)
	require.NoError(t, err)
	_, err = db.Credit(ctx, "ai4a-carol", "2025-06-10", types.EntryTypeReward, 3_000_000)
	require.NoError(t, err)

	board, err := db.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 3, len(board))
	assert.Equal(t, "ai4a-alice", board[0].AccountID, "equal totals break ties by account id")
	assert.Equal(t, "ai4a-carol", board[1].AccountID)
	assert.Equal(t, "ai4a-bob", board[2].AccountID)

	top, err := db.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, len(top))

	supply, err := db.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7_000_000), supply)
}
