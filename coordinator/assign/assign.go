// Package assign implements the deterministic daily work lottery. Given
// a locked roster and the seed derived from it, every node (and every
// auditor replaying the day) computes the identical assignment table and
// canary set: same winners, same block ids, same order.
package assign

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/prng"
)

// RosterHash hashes the sorted account ids joined by commas. The input
// is sorted defensively; callers normally pass an already sorted roster.
func RosterHash(accountIDs []string) string {
	ids := make([]string, len(accountIDs))
	copy(ids, accountIDs)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return fmt.Sprintf("%x", sum)
}

// DeriveSeed folds the day id and roster hash into the 32-bit lottery
// seed: the first four bytes of SHA-256(dayId + ":" + rosterHash),
// big-endian.
func DeriveSeed(dayID, rosterHash string) uint32 {
	sum := sha256.Sum256([]byte(dayID + ":" + rosterHash))
	return binary.BigEndian.Uint32(sum[:4])
}

// BlockID names the index-th block of a batch.
func BlockID(dayID string, batch, index int) string {
	return fmt.Sprintf("%s-b%d-%d", dayID, batch, index)
}

// Result is a complete day's worth of assignments.
type Result struct {
	// Assignments in roster order, one entry per contributor that won at
	// least one batch.
	Assignments []*state.BlockAssignment
	// CanaryBlockIDs in selection order.
	CanaryBlockIDs []string
	TotalBlocks    int
}

// Compute runs the lottery. The roster must be sorted by account id;
// weightRef pins the instant against which lookback points are measured
// so a recomputation of a historical day sees the same weights. The
// assignedAt stamp is carried verbatim onto every assignment.
func Compute(dayID string, seed uint32, roster []*state.Contributor, cfg *params.AssignmentConfig, weightRef time.Time, assignedAt string) *Result {
	totalBlocks := cfg.TotalBlocks()
	res := &Result{
		Assignments:    make([]*state.BlockAssignment, 0, len(roster)),
		CanaryBlockIDs: make([]string, 0),
		TotalBlocks:    totalBlocks,
	}
	if len(roster) == 0 {
		return res
	}

	// Contributor weight grows with the square root of recent validated
	// work, with a floor of one so newcomers stay in the draw.
	weights := make([]float64, len(roster))
	totalWeight := 0.0
	for i, c := range roster {
		weights[i] = 1 + math.Sqrt(c.RewardPoints(cfg.LookbackDays, weightRef))
		totalWeight += weights[i]
	}

	rng := prng.New(seed)
	blocksByWinner := make(map[string][]string, len(roster))
	batchesByWinner := make(map[string]int, len(roster))
	pool := make([]string, 0, totalBlocks)

	for batch := 0; batch < cfg.MaxBatches; batch++ {
		r := rng.Float64() * totalWeight
		winner := roster[len(roster)-1].AccountID
		acc := 0.0
		for i, w := range weights {
			acc += w
			if r < acc {
				winner = roster[i].AccountID
				break
			}
		}
		for i := 0; i < cfg.BlocksPerBatch; i++ {
			id := BlockID(dayID, batch, i)
			blocksByWinner[winner] = append(blocksByWinner[winner], id)
			pool = append(pool, id)
		}
		batchesByWinner[winner]++
	}

	for _, c := range roster {
		ids, ok := blocksByWinner[c.AccountID]
		if !ok {
			continue
		}
		res.Assignments = append(res.Assignments, &state.BlockAssignment{
			ContributorID: c.AccountID,
			BlockIDs:      ids,
			AssignedAt:    assignedAt,
			BatchNumber:   batchesByWinner[c.AccountID],
		})
	}

	res.CanaryBlockIDs = selectCanaries(pool, canaryCount(totalBlocks, cfg.CanaryPercentage), rng)
	return res
}

func canaryCount(totalBlocks int, pct float64) int {
	n := int(math.Ceil(float64(totalBlocks) * pct))
	if n > totalBlocks {
		n = totalBlocks
	}
	return n
}

// selectCanaries draws count blocks from the pool without replacement,
// preserving pool order between draws so the selection is a pure
// function of the rng stream.
func selectCanaries(pool []string, count int, rng *prng.Source) []string {
	remaining := make([]string, len(pool))
	copy(remaining, pool)
	picked := make([]string, 0, count)
	for i := 0; i < count && len(remaining) > 0; i++ {
		j := rng.Intn(len(remaining))
		picked = append(picked, remaining[j])
		remaining = append(remaining[:j], remaining[j+1:]...)
	}
	return picked
}
