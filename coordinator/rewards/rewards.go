// Package rewards implements the daily two-pool emission split. The
// calculator is a pure function of the contributor set, the reward
// config and a pinned reference instant, so recomputing any historical
// day reproduces the committed distribution bit for bit.
package rewards

import (
	"math"
	"sort"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/hashutil"
	"github.com/ai4all-network/coordinator/shared/merkle"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/pkg/errors"
)

// Compute splits the day's emissions across active contributors: the
// base pool equally, the performance pool by square root of lookback
// points. ref is the pinned instant (the day's noon UTC) against which
// cooldowns and lookback windows are measured. Reward entries come back
// sorted by account id.
func Compute(dayID string, contributors map[string]*state.Contributor, cfg *params.RewardConfig, ref time.Time) *state.RewardDistribution {
	dist := &state.RewardDistribution{
		Date:                 dayID,
		Config:               *cfg,
		TotalEmissions:       cfg.DailyEmissions,
		BasePoolTotal:        cfg.DailyEmissions * cfg.BasePoolPercentage,
		PerformancePoolTotal: cfg.DailyEmissions * cfg.PerformancePoolPercentage,
		Rewards:              make([]*state.RewardEntry, 0),
	}

	ids := make([]string, 0, len(contributors))
	for id := range contributors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type activeEntry struct {
		id         string
		sqrtPoints float64
	}
	active := make([]activeEntry, 0, len(ids))
	sqrtSum := 0.0
	cooldown := time.Duration(cfg.CanaryFailureCooldownHours) * time.Hour
	for _, id := range ids {
		c := contributors[id]
		points := c.RewardPoints(cfg.PerformanceLookbackDays, ref)
		if !isActive(c, cfg, dayID, ref, cooldown, points) {
			continue
		}
		sp := math.Sqrt(points)
		active = append(active, activeEntry{id: id, sqrtPoints: sp})
		sqrtSum += sp
	}
	dist.ActiveContributorCount = len(active)
	if len(active) == 0 {
		return dist
	}

	baseShare := dist.BasePoolTotal / float64(len(active))
	equalPerfShare := dist.PerformancePoolTotal / float64(len(active))
	for _, a := range active {
		perf := equalPerfShare
		if sqrtSum > 0 {
			perf = dist.PerformancePoolTotal * (a.sqrtPoints / sqrtSum)
		}
		dist.Rewards = append(dist.Rewards, &state.RewardEntry{
			AccountID:             a.id,
			BasePoolReward:        baseShare,
			PerformancePoolReward: perf,
			TotalReward:           baseShare + perf,
		})
	}
	return dist
}

// isActive applies the four-part eligibility gate for the day.
func isActive(c *state.Contributor, cfg *params.RewardConfig, dayID string, ref time.Time, cooldown time.Duration, points float64) bool {
	if c.InCanaryCooldown(ref, cooldown) {
		return false
	}
	if c.BlocksCompletedOn(dayID) < cfg.MinBlocksForActive {
		return false
	}
	if c.ReputationMultiplier < cfg.ReputationFloor {
		return false
	}
	return points > 0
}

// Hash returns the canonical-json hash of the distribution's reward
// entries. This is the rewardHash committed in the day's snapshot.
func Hash(entries []*state.RewardEntry) (string, error) {
	h, err := hashutil.HashObject(entries)
	if err != nil {
		return "", errors.Wrap(err, "could not hash reward entries")
	}
	return h, nil
}

// MerkleTree builds the day's reward commitment tree. Leaves are the
// canonical-json hashes of the entries in their committed (account id)
// order.
func MerkleTree(entries []*state.RewardEntry) (*merkle.Tree, error) {
	leaves := make([]string, 0, len(entries))
	for _, e := range entries {
		leaf, err := hashutil.HashObject(e)
		if err != nil {
			return nil, errors.Wrapf(err, "could not hash reward entry for %s", e.AccountID)
		}
		leaves = append(leaves, leaf)
	}
	return merkle.NewTree(leaves), nil
}
