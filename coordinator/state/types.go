// Package state defines the projected network state and the entities that
// flow through the daily work cycle: contributors and their completed
// blocks, the per-day assignment and submission records, reward
// distributions and the finalization snapshot. The json form of these
// types is load-bearing: canonical-json hashes of state and rewards are
// committed into the event log, so field names and presence rules here
// are part of the protocol.
package state

import (
	"math"
	"strings"
	"time"

	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/mohae/deepcopy"
)

// BlockType enumerates the kinds of work a block can carry.
type BlockType string

// Block types accepted from contributors.
const (
	BlockTypeInference  BlockType = "INFERENCE"
	BlockTypeEmbeddings BlockType = "EMBEDDINGS"
	BlockTypeValidation BlockType = "VALIDATION"
	BlockTypeTraining   BlockType = "TRAINING"
)

// ValidBlockType reports whether t is one of the accepted block types.
func ValidBlockType(t BlockType) bool {
	switch t {
	case BlockTypeInference, BlockTypeEmbeddings, BlockTypeValidation, BlockTypeTraining:
		return true
	default:
		return false
	}
}

// Bounds on the self-reported block attributes.
const (
	MinResourceUsage        = 0.0
	MaxResourceUsage        = 1.0
	MinDifficultyMultiplier = 0.5
	MaxDifficultyMultiplier = 3.0
)

// CompletedBlock is one unit of processed work recorded against a
// contributor. Canary blocks are recorded too, flagged so that reward
// points can exclude them at read time.
type CompletedBlock struct {
	BlockType            BlockType `json:"blockType"`
	ResourceUsage        float64   `json:"resourceUsage"`
	DifficultyMultiplier float64   `json:"difficultyMultiplier"`
	ValidationPassed     bool      `json:"validationPassed"`
	Timestamp            string    `json:"timestamp"`
	IsCanary             bool      `json:"isCanary"`
	// CanaryAnswerCorrect is only present on canary blocks. A pointer keeps
	// an explicit false distinct from the field being absent.
	CanaryAnswerCorrect *bool `json:"canaryAnswerCorrect,omitempty"`
}

// Contributor is the full per-account record carried in NetworkState.
type Contributor struct {
	AccountID            string            `json:"accountId"`
	CompletedBlocks      []*CompletedBlock `json:"completedBlocks"`
	ReputationMultiplier float64           `json:"reputationMultiplier"`
	CanaryFailures       int               `json:"canaryFailures"`
	CanaryPasses         int               `json:"canaryPasses"`
	// LastCanaryFailureTime is empty until the first failed canary. It is
	// omitted from the json form while empty so the state hash does not
	// depend on a placeholder.
	LastCanaryFailureTime string `json:"lastCanaryFailureTime,omitempty"`
}

// NewContributor returns a fresh contributor with full reputation and an
// allocated, empty block history. The empty slice matters: a nil slice
// would serialize as null and change the state hash.
func NewContributor(accountID string) *Contributor {
	return &Contributor{
		AccountID:            accountID,
		CompletedBlocks:      make([]*CompletedBlock, 0),
		ReputationMultiplier: 1.0,
	}
}

// Copy returns a deep copy of the contributor.
func (c *Contributor) Copy() *Contributor {
	cp := deepcopy.Copy(*c).(Contributor)
	if cp.CompletedBlocks == nil {
		cp.CompletedBlocks = make([]*CompletedBlock, 0)
	}
	return &cp
}

// RewardPoints sums resourceUsage x difficultyMultiplier x the current
// reputation multiplier over the contributor's validated, non-canary
// blocks no older than lookbackDays before ref. There is no upper bound
// on the window: blocks stamped after the pinned reference instant (work
// submitted in the afternoon of the day being finalized) still count.
func (c *Contributor) RewardPoints(lookbackDays int, ref time.Time) float64 {
	cutoff := ref.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	points := 0.0
	for _, b := range c.CompletedBlocks {
		if b.IsCanary || !b.ValidationPassed {
			continue
		}
		ts, err := timeutil.ParseISO(b.Timestamp)
		if err != nil || ts.Before(cutoff) {
			continue
		}
		points += b.ResourceUsage * b.DifficultyMultiplier * c.ReputationMultiplier
	}
	return points
}

// BlocksCompletedOn counts the blocks (canaries included) recorded on the
// given UTC calendar day.
func (c *Contributor) BlocksCompletedOn(dayID string) int {
	n := 0
	for _, b := range c.CompletedBlocks {
		if strings.HasPrefix(b.Timestamp, dayID) {
			n++
		}
	}
	return n
}

// InCanaryCooldown reports whether the contributor's most recent canary
// failure is within the cooldown window ending at ref. A failure stamped
// after ref (possible when ref is the pinned noon of the day being
// finalized) does not put the contributor in cooldown.
func (c *Contributor) InCanaryCooldown(ref time.Time, cooldown time.Duration) bool {
	if c.LastCanaryFailureTime == "" {
		return false
	}
	last, err := timeutil.ParseISO(c.LastCanaryFailureTime)
	if err != nil {
		return false
	}
	since := ref.Sub(last)
	return since >= 0 && since < cooldown
}

// ApplyCanaryPenalty decays the reputation multiplier by the configured
// penalty fraction, flooring at zero.
func (c *Contributor) ApplyCanaryPenalty(penalty float64) {
	c.ReputationMultiplier = math.Max(0, c.ReputationMultiplier*(1-penalty))
}

// BlockAssignment records the blocks a contributor won in the daily
// lottery. BatchNumber is the number of batches won.
type BlockAssignment struct {
	ContributorID string   `json:"contributorId"`
	BlockIDs      []string `json:"blockIds"`
	AssignedAt    string   `json:"assignedAt"`
	BatchNumber   int      `json:"batchNumber"`
}

// Copy returns a deep copy of the assignment.
func (a *BlockAssignment) Copy() *BlockAssignment {
	cp := deepcopy.Copy(*a).(BlockAssignment)
	if cp.BlockIDs == nil {
		cp.BlockIDs = make([]string, 0)
	}
	return &cp
}

// BlockSubmission is a contributor's claim of completed work on one
// assigned block. ContributorID and Timestamp are stamped by the
// coordinator, never trusted from the wire.
type BlockSubmission struct {
	ContributorID        string    `json:"contributorId"`
	BlockID              string    `json:"blockId"`
	BlockType            BlockType `json:"blockType"`
	ResourceUsage        float64   `json:"resourceUsage"`
	DifficultyMultiplier float64   `json:"difficultyMultiplier"`
	ValidationPassed     bool      `json:"validationPassed"`
	CanaryAnswerCorrect  *bool     `json:"canaryAnswerCorrect,omitempty"`
	Timestamp            string    `json:"timestamp"`
}

// RewardEntry is one contributor's share of a day's emissions. Its
// canonical-json hash is the Merkle leaf for the day's reward commitment.
type RewardEntry struct {
	AccountID             string  `json:"accountId"`
	BasePoolReward        float64 `json:"basePoolReward"`
	PerformancePoolReward float64 `json:"performancePoolReward"`
	TotalReward           float64 `json:"totalReward"`
}

// RewardDistribution is the full result of a day's reward computation.
// The config is embedded so a historical distribution remains
// self-describing after parameter changes.
type RewardDistribution struct {
	Date                   string              `json:"date"`
	Config                 params.RewardConfig `json:"config"`
	TotalEmissions         float64             `json:"totalEmissions"`
	BasePoolTotal          float64             `json:"basePoolTotal"`
	PerformancePoolTotal   float64             `json:"performancePoolTotal"`
	ActiveContributorCount int                 `json:"activeContributorCount"`
	Rewards                []*RewardEntry      `json:"rewards"`
}

// StateSnapshot is the per-day finalization record binding the event
// chain position to the projected state and reward commitments.
type StateSnapshot struct {
	DayID            string `json:"dayId"`
	DayNumber        int64  `json:"dayNumber"`
	StateHash        string `json:"stateHash"`
	LastEventHash    string `json:"lastEventHash"`
	RewardHash       string `json:"rewardHash"`
	ContributorCount int    `json:"contributorCount"`
	CreatedAt        string `json:"createdAt"`
}
