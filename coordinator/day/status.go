package day

import (
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/timeutil"
)

// DayStatus is the operator view of the coordinator.
type DayStatus struct {
	Phase                string `json:"phase"`
	DayID                string `json:"dayId,omitempty"`
	DayNumber            int64  `json:"dayNumber"`
	Contributors         int    `json:"contributors"`
	RosterSize           int    `json:"rosterSize"`
	Assignments          int    `json:"assignments"`
	AssignedBlocks       int    `json:"assignedBlocks"`
	CanaryCount          int    `json:"canaryCount"`
	PendingSubmissions   int    `json:"pendingSubmissions"`
	SubmissionsPerMinute int64  `json:"submissionsPerMinute"`
	ChainHead            string `json:"chainHead"`
	StartedAt            string `json:"startedAt,omitempty"`
}

// DayStatus reports the live phase, roster and throughput numbers.
func (s *Service) DayStatus() *DayStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := &DayStatus{
		Phase:                string(s.day.Phase),
		DayNumber:            s.netState.DayNumber,
		Contributors:         len(s.netState.Contributors),
		SubmissionsPerMinute: s.subRate.Rate(),
		ChainHead:            s.emitter.PrevHash(),
	}
	if s.day.Phase == state.PhaseIdle {
		return st
	}
	st.DayID = s.day.DayID
	st.RosterSize = len(s.day.Roster)
	st.Assignments = len(s.day.Assignments)
	for _, a := range s.day.Assignments {
		st.AssignedBlocks += len(a.BlockIDs)
	}
	st.CanaryCount = len(s.day.CanaryBlockIDs)
	st.PendingSubmissions = len(s.day.PendingSubmissions)
	if !s.day.StartedAt.IsZero() {
		st.StartedAt = timeutil.ISO(s.day.StartedAt)
	}
	return st
}

// HealthStatus is the minimal liveness view served unauthenticated.
type HealthStatus struct {
	Status               string `json:"status"`
	Phase                string `json:"phase"`
	DayID                string `json:"dayId,omitempty"`
	DayNumber            int64  `json:"dayNumber"`
	Contributors         int    `json:"contributors"`
	PendingSubmissions   int    `json:"pendingSubmissions"`
	SubmissionsPerMinute int64  `json:"submissionsPerMinute"`
}

// Health reports the coordinator's liveness summary.
func (s *Service) Health() *HealthStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	return &HealthStatus{
		Status:               "ok",
		Phase:                string(s.day.Phase),
		DayID:                s.day.DayID,
		DayNumber:            s.netState.DayNumber,
		Contributors:         len(s.netState.Contributors),
		PendingSubmissions:   len(s.day.PendingSubmissions),
		SubmissionsPerMinute: s.subRate.Rate(),
	}
}

// CurrentDayID returns the id of the day in progress, or empty.
func (s *Service) CurrentDayID() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.day.Phase == state.PhaseIdle {
		return ""
	}
	return s.day.DayID
}
