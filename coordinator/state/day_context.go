package state

import "time"

// Phase is the coordinator's position in the daily cycle.
type Phase string

// The three phases of the day lifecycle. Transitions are
// IDLE -> ACTIVE -> FINALIZING -> IDLE, with FINALIZING falling back to
// ACTIVE when finalization fails.
const (
	PhaseIdle       Phase = "IDLE"
	PhaseActive     Phase = "ACTIVE"
	PhaseFinalizing Phase = "FINALIZING"
)

// DayContext is the live, in-memory context of the current day: the
// locked roster, the deterministic seed, the assignment table and the
// canary set. It is never hashed and never part of NetworkState; after a
// restart it is rebuilt from the operational store.
type DayContext struct {
	DayID              string
	Phase              Phase
	Seed               uint32
	RosterHash         string
	Roster             []string
	CanaryBlockIDs     map[string]struct{}
	Assignments        map[string]*BlockAssignment
	PendingSubmissions []*BlockSubmission
	StartedAt          time.Time
}

// NewDayContext returns an idle context with no day loaded.
func NewDayContext() *DayContext {
	return &DayContext{
		Phase:          PhaseIdle,
		CanaryBlockIDs: make(map[string]struct{}),
		Assignments:    make(map[string]*BlockAssignment),
	}
}

// InRoster reports whether the account was registered when the day's
// roster was locked.
func (d *DayContext) InRoster(accountID string) bool {
	_, ok := d.Assignments[accountID]
	if ok {
		return true
	}
	for _, id := range d.Roster {
		if id == accountID {
			return true
		}
	}
	return false
}

// IsCanary reports whether the block id was selected as a canary.
func (d *DayContext) IsCanary(blockID string) bool {
	_, ok := d.CanaryBlockIDs[blockID]
	return ok
}

// AssignmentFor returns a copy of the account's assignment for the day,
// or nil if the account won no batches.
func (d *DayContext) AssignmentFor(accountID string) *BlockAssignment {
	a, ok := d.Assignments[accountID]
	if !ok {
		return nil
	}
	return a.Copy()
}

// OwnsBlock reports whether the block id was assigned to the account.
func (d *DayContext) OwnsBlock(accountID, blockID string) bool {
	a, ok := d.Assignments[accountID]
	if !ok {
		return false
	}
	for _, id := range a.BlockIDs {
		if id == blockID {
			return true
		}
	}
	return false
}
