package state

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func boolPtr(b bool) *bool { return &b }

func TestContributor_RewardPoints(t *testing.T) {
	ref := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	c := NewContributor("ai4a01")
	c.ReputationMultiplier = 0.8
	c.CompletedBlocks = []*CompletedBlock{
		// Counts: validated, in window.
		{BlockType: BlockTypeInference, ResourceUsage: 0.9, DifficultyMultiplier: 2.0, ValidationPassed: true, Timestamp: "2026-01-28T09:00:00.000Z"},
		// Counts: stamped after the pinned reference, same day.
		{BlockType: BlockTypeInference, ResourceUsage: 0.5, DifficultyMultiplier: 1.0, ValidationPassed: true, Timestamp: "2026-01-28T18:00:00.000Z"},
		// Excluded: canary.
		{BlockType: BlockTypeValidation, ResourceUsage: 1.0, DifficultyMultiplier: 3.0, ValidationPassed: true, Timestamp: "2026-01-28T10:00:00.000Z", IsCanary: true, CanaryAnswerCorrect: boolPtr(true)},
		// Excluded: failed validation.
		{BlockType: BlockTypeTraining, ResourceUsage: 1.0, DifficultyMultiplier: 3.0, ValidationPassed: false, Timestamp: "2026-01-28T11:00:00.000Z"},
		// Excluded: older than the lookback window.
		{BlockType: BlockTypeEmbeddings, ResourceUsage: 1.0, DifficultyMultiplier: 1.0, ValidationPassed: true, Timestamp: "2026-01-20T12:00:00.000Z"},
	}
	got := c.RewardPoints(7, ref)
	want := 0.9*2.0*0.8 + 0.5*1.0*0.8
	if diff := got - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("RewardPoints() = %v, wanted %v", got, want)
	}
}

func TestContributor_BlocksCompletedOn(t *testing.T) {
	c := NewContributor("ai4a01")
	c.CompletedBlocks = []*CompletedBlock{
		{Timestamp: "2026-01-28T09:00:00.000Z"},
		{Timestamp: "2026-01-28T23:59:59.999Z", IsCanary: true},
		{Timestamp: "2026-01-27T09:00:00.000Z"},
	}
	assert.Equal(t, 2, c.BlocksCompletedOn("2026-01-28"))
	assert.Equal(t, 1, c.BlocksCompletedOn("2026-01-27"))
	assert.Equal(t, 0, c.BlocksCompletedOn("2026-01-26"))
}

func TestContributor_InCanaryCooldown(t *testing.T) {
	ref := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	cooldown := 24 * time.Hour
	tests := []struct {
		name string
		last string
		want bool
	}{
		{name: "never failed", last: "", want: false},
		{name: "failed an hour ago", last: "2026-01-28T11:00:00.000Z", want: true},
		{name: "failed just inside the window", last: "2026-01-27T12:00:00.001Z", want: true},
		{name: "failed exactly a cooldown ago", last: "2026-01-27T12:00:00.000Z", want: false},
		{name: "failed after the reference instant", last: "2026-01-28T15:00:00.000Z", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewContributor("ai4a01")
			c.LastCanaryFailureTime = tt.last
			assert.Equal(t, tt.want, c.InCanaryCooldown(ref, cooldown))
		})
	}
}

func TestContributor_ApplyCanaryPenalty(t *testing.T) {
	c := NewContributor("ai4a01")
	c.ApplyCanaryPenalty(0.2)
	assert.Equal(t, 0.8, c.ReputationMultiplier)
	c.ReputationMultiplier = 0.05
	c.ApplyCanaryPenalty(1.5)
	assert.Equal(t, 0.0, c.ReputationMultiplier)
}

func TestContributor_CopyIsIndependent(t *testing.T) {
	orig := NewContributor("ai4a01")
	orig.CompletedBlocks = append(orig.CompletedBlocks, &CompletedBlock{
		BlockType: BlockTypeInference, ResourceUsage: 0.5, DifficultyMultiplier: 1.0,
		ValidationPassed: true, Timestamp: "2026-01-28T09:00:00.000Z",
	})
	cp := orig.Copy()
	cp.CanaryFailures = 3
	cp.CompletedBlocks[0].ResourceUsage = 0.9
	cp.CompletedBlocks = append(cp.CompletedBlocks, &CompletedBlock{})

	assert.Equal(t, 0, orig.CanaryFailures)
	assert.Equal(t, 0.5, orig.CompletedBlocks[0].ResourceUsage)
	assert.Equal(t, 1, len(orig.CompletedBlocks))
}

func TestNetworkState_HashStableAcrossCopies(t *testing.T) {
	s := NewNetworkState()
	s.DayNumber = 41
	a := s.EnsureContributor("ai4a0a")
	a.CompletedBlocks = append(a.CompletedBlocks, &CompletedBlock{
		BlockType: BlockTypeInference, ResourceUsage: 0.9, DifficultyMultiplier: 1.0,
		ValidationPassed: true, Timestamp: "2026-01-28T09:00:00.000Z",
	})
	s.EnsureContributor("ai4a0b")

	h1, err := s.Hash()
	require.NoError(t, err)
	h2, err := s.Copy().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 64, len(h1))
}

func TestNetworkState_HashChangesWithState(t *testing.T) {
	s := NewNetworkState()
	s.EnsureContributor("ai4a0a")
	h1, err := s.Hash()
	require.NoError(t, err)

	s.Contributors["ai4a0a"].CanaryPasses = 1
	h2, err := s.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestNetworkState_FreshContributorSerializesEmptyBlocks(t *testing.T) {
	// A nil slice would marshal as null and silently fork the state hash
	// between a live node and a replay.
	raw, err := json.Marshal(NewContributor("ai4a0a"))
	require.NoError(t, err)
	assert.Equal(t, true, strings.Contains(string(raw), `"completedBlocks":[]`))
	assert.Equal(t, false, strings.Contains(string(raw), "lastCanaryFailureTime"))
}

func TestNetworkState_AccountIDsSorted(t *testing.T) {
	s := NewNetworkState()
	s.EnsureContributor("ai4a0c")
	s.EnsureContributor("ai4a0a")
	s.EnsureContributor("ai4a0b")
	assert.DeepEqual(t, []string{"ai4a0a", "ai4a0b", "ai4a0c"}, s.AccountIDs())
}

func TestDayContext_Membership(t *testing.T) {
	d := NewDayContext()
	d.DayID = "2026-01-28"
	d.Phase = PhaseActive
	d.Roster = []string{"ai4a0a", "ai4a0b"}
	d.Assignments["ai4a0a"] = &BlockAssignment{
		ContributorID: "ai4a0a",
		BlockIDs:      []string{"2026-01-28-b0-0", "2026-01-28-b0-1"},
		BatchNumber:   1,
	}
	d.CanaryBlockIDs["2026-01-28-b0-1"] = struct{}{}

	assert.Equal(t, true, d.InRoster("ai4a0a"))
	assert.Equal(t, true, d.InRoster("ai4a0b"))
	assert.Equal(t, false, d.InRoster("ai4a0c"))
	assert.Equal(t, true, d.OwnsBlock("ai4a0a", "2026-01-28-b0-0"))
	assert.Equal(t, false, d.OwnsBlock("ai4a0a", "2026-01-28-b9-0"))
	assert.Equal(t, false, d.OwnsBlock("ai4a0b", "2026-01-28-b0-0"))
	assert.Equal(t, true, d.IsCanary("2026-01-28-b0-1"))
	assert.Equal(t, false, d.IsCanary("2026-01-28-b0-0"))
}

func TestDayContext_AssignmentForReturnsCopy(t *testing.T) {
	d := NewDayContext()
	d.Assignments["ai4a0a"] = &BlockAssignment{
		ContributorID: "ai4a0a",
		BlockIDs:      []string{"2026-01-28-b0-0"},
	}
	cp := d.AssignmentFor("ai4a0a")
	require.NotNil(t, cp)
	cp.BlockIDs[0] = "tampered"
	assert.Equal(t, "2026-01-28-b0-0", d.Assignments["ai4a0a"].BlockIDs[0])
	if d.AssignmentFor("ai4a0b") != nil {
		t.Error("expected nil assignment for unknown account")
	}
}
