package rewards

import (
	"math"
	"testing"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/hashutil"
	"github.com/ai4all-network/coordinator/shared/merkle"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func testRewardConfig() *params.RewardConfig {
	return &params.RewardConfig{
		DailyEmissions:             10000,
		BasePoolPercentage:         0.3,
		PerformancePoolPercentage:  0.7,
		PerformanceLookbackDays:    7,
		MinBlocksForActive:         1,
		ReputationFloor:            0.1,
		CanaryFailureCooldownHours: 24,
		CanaryPenalty:              0.2,
	}
}

func workingContributor(id string, blocks int, usage, difficulty float64) *state.Contributor {
	c := state.NewContributor(id)
	for i := 0; i < blocks; i++ {
		c.CompletedBlocks = append(c.CompletedBlocks, &state.CompletedBlock{
			BlockType:            state.BlockTypeInference,
			ResourceUsage:        usage,
			DifficultyMultiplier: difficulty,
			ValidationPassed:     true,
			Timestamp:            "2026-01-28T09:00:00.000Z",
		})
	}
	return c
}

func ref() time.Time { return time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC) }

func approxEqual(t *testing.T, want, got float64, msg string) {
	t.Helper()
	if math.Abs(want-got) > 1e-9 {
		t.Errorf("%s: got %v, wanted %v", msg, got, want)
	}
}

func TestCompute_SingleActiveContributorTakesBothPools(t *testing.T) {
	cfg := testRewardConfig()
	contributors := map[string]*state.Contributor{
		"ai4a0a": workingContributor("ai4a0a", 1, 0.9, 1.0),
	}
	dist := Compute("2026-01-28", contributors, cfg, ref())

	require.Equal(t, 1, dist.ActiveContributorCount)
	require.Equal(t, 1, len(dist.Rewards))
	approxEqual(t, 3000, dist.Rewards[0].BasePoolReward, "base pool")
	approxEqual(t, 7000, dist.Rewards[0].PerformancePoolReward, "performance pool")
	approxEqual(t, 10000, dist.Rewards[0].TotalReward, "total")
}

func TestCompute_PerformanceSplitsBySqrtPoints(t *testing.T) {
	cfg := testRewardConfig()
	// Points 1.0 vs 4.0 (both reputation 1), sqrt ratio 1:2.
	contributors := map[string]*state.Contributor{
		"ai4a0a": workingContributor("ai4a0a", 1, 1.0, 1.0),
		"ai4a0b": workingContributor("ai4a0b", 2, 1.0, 2.0),
	}
	dist := Compute("2026-01-28", contributors, cfg, ref())

	require.Equal(t, 2, len(dist.Rewards))
	byID := map[string]*state.RewardEntry{}
	for _, e := range dist.Rewards {
		byID[e.AccountID] = e
	}
	approxEqual(t, 1500, byID["ai4a0a"].BasePoolReward, "equal base share")
	approxEqual(t, 1500, byID["ai4a0b"].BasePoolReward, "equal base share")
	approxEqual(t, 7000.0/3.0, byID["ai4a0a"].PerformancePoolReward, "one third of performance pool")
	approxEqual(t, 14000.0/3.0, byID["ai4a0b"].PerformancePoolReward, "two thirds of performance pool")
}

func TestCompute_EligibilityGates(t *testing.T) {
	cfg := testRewardConfig()
	cfg.MinBlocksForActive = 2

	lowRep := workingContributor("ai4a-lowrep", 3, 0.9, 1.0)
	lowRep.ReputationMultiplier = 0.05

	coolingDown := workingContributor("ai4a-cooldown", 3, 0.9, 1.0)
	coolingDown.LastCanaryFailureTime = "2026-01-28T08:00:00.000Z"

	idleToday := workingContributor("ai4a-idle", 3, 0.9, 1.0)
	for _, b := range idleToday.CompletedBlocks {
		b.Timestamp = "2026-01-26T09:00:00.000Z"
	}

	fewBlocks := workingContributor("ai4a-few", 1, 0.9, 1.0)

	// Canary-only history yields zero points even though the blocks count
	// toward the daily activity minimum.
	noPoints := state.NewContributor("ai4a-nopoints")
	for i := 0; i < 3; i++ {
		correct := true
		noPoints.CompletedBlocks = append(noPoints.CompletedBlocks, &state.CompletedBlock{
			BlockType:            state.BlockTypeValidation,
			ResourceUsage:        0.9,
			DifficultyMultiplier: 1.0,
			ValidationPassed:     true,
			Timestamp:            "2026-01-28T09:00:00.000Z",
			IsCanary:             true,
			CanaryAnswerCorrect:  &correct,
		})
	}

	healthy := workingContributor("ai4a-ok", 3, 0.9, 1.0)

	contributors := map[string]*state.Contributor{
		lowRep.AccountID:      lowRep,
		coolingDown.AccountID: coolingDown,
		idleToday.AccountID:   idleToday,
		fewBlocks.AccountID:   fewBlocks,
		noPoints.AccountID:    noPoints,
		healthy.AccountID:     healthy,
	}
	dist := Compute("2026-01-28", contributors, cfg, ref())

	require.Equal(t, 1, dist.ActiveContributorCount)
	require.Equal(t, 1, len(dist.Rewards))
	assert.Equal(t, "ai4a-ok", dist.Rewards[0].AccountID)
	approxEqual(t, 10000, dist.Rewards[0].TotalReward, "sole active contributor")
}

func TestCompute_NoActiveContributors(t *testing.T) {
	cfg := testRewardConfig()
	dist := Compute("2026-01-28", map[string]*state.Contributor{
		"ai4a0a": state.NewContributor("ai4a0a"),
	}, cfg, ref())

	assert.Equal(t, 0, dist.ActiveContributorCount)
	assert.Equal(t, 0, len(dist.Rewards))
	approxEqual(t, 3000, dist.BasePoolTotal, "base pool total still reported")
	approxEqual(t, 7000, dist.PerformancePoolTotal, "performance pool total still reported")
}

func TestCompute_TotalsNeverExceedEmissions(t *testing.T) {
	cfg := testRewardConfig()
	contributors := map[string]*state.Contributor{}
	for _, id := range []string{"ai4a0a", "ai4a0b", "ai4a0c", "ai4a0d", "ai4a0e"} {
		contributors[id] = workingContributor(id, len(id)%3+1, 0.7, 1.3)
	}
	dist := Compute("2026-01-28", contributors, cfg, ref())

	sum := 0.0
	for _, e := range dist.Rewards {
		approxEqual(t, e.BasePoolReward+e.PerformancePoolReward, e.TotalReward, "entry total")
		sum += e.TotalReward
	}
	if sum > cfg.DailyEmissions+1e-9 {
		t.Errorf("distributed %v which exceeds daily emissions %v", sum, cfg.DailyEmissions)
	}
	approxEqual(t, cfg.DailyEmissions, sum, "full emission distributed across pools")
}

func TestCompute_EntriesSortedByAccountID(t *testing.T) {
	cfg := testRewardConfig()
	contributors := map[string]*state.Contributor{
		"ai4a0c": workingContributor("ai4a0c", 1, 0.5, 1.0),
		"ai4a0a": workingContributor("ai4a0a", 1, 0.5, 1.0),
		"ai4a0b": workingContributor("ai4a0b", 1, 0.5, 1.0),
	}
	dist := Compute("2026-01-28", contributors, cfg, ref())
	require.Equal(t, 3, len(dist.Rewards))
	assert.Equal(t, "ai4a0a", dist.Rewards[0].AccountID)
	assert.Equal(t, "ai4a0b", dist.Rewards[1].AccountID)
	assert.Equal(t, "ai4a0c", dist.Rewards[2].AccountID)
}

func TestHash_Deterministic(t *testing.T) {
	entries := []*state.RewardEntry{
		{AccountID: "ai4a0a", BasePoolReward: 1500, PerformancePoolReward: 7000.0 / 3.0, TotalReward: 1500 + 7000.0/3.0},
	}
	h1, err := Hash(entries)
	require.NoError(t, err)
	h2, err := Hash(entries)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 64, len(h1))
}

func TestMerkleTree_RootAndProofs(t *testing.T) {
	entries := []*state.RewardEntry{
		{AccountID: "ai4a0a", BasePoolReward: 1, PerformancePoolReward: 2, TotalReward: 3},
		{AccountID: "ai4a0b", BasePoolReward: 1, PerformancePoolReward: 4, TotalReward: 5},
		{AccountID: "ai4a0c", BasePoolReward: 1, PerformancePoolReward: 6, TotalReward: 7},
	}
	tree, err := MerkleTree(entries)
	require.NoError(t, err)
	require.Equal(t, 3, tree.LeafCount())

	for i, e := range entries {
		proof, err := tree.Proof(i)
		require.NoError(t, err)
		leaf, err := hashutil.HashObject(e)
		require.NoError(t, err)
		assert.Equal(t, true, merkle.VerifyProof(leaf, proof, tree.Root()), "proof for %s", e.AccountID)
	}
}
