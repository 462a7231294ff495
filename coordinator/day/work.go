package day

import (
	"context"

	"github.com/ai4all-network/coordinator/coordinator/state"
)

// WorkResponse is an account's view of the current day's assignment.
type WorkResponse struct {
	DayID    string `json:"dayId"`
	Assigned bool   `json:"assigned"`
	// Assignment is nil for roster members that won no batches today.
	Assignment *state.BlockAssignment `json:"assignment,omitempty"`
	// Reason is set when the account cannot hold an assignment at all,
	// e.g. it registered after the roster was locked.
	Reason string `json:"reason,omitempty"`
}

// WorkFor returns the account's assignment for the active day. Accounts
// outside the locked roster get an empty response carrying a reason.
func (s *Service) WorkFor(ctx context.Context, accountID, dayID string) (*WorkResponse, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch s.day.Phase {
	case state.PhaseIdle:
		return nil, ErrDayNotStarted
	case state.PhaseFinalizing:
		return nil, ErrDayFinalizing
	}
	if dayID != "" && dayID != s.day.DayID {
		return nil, ErrDayMismatch
	}
	resp := &WorkResponse{DayID: s.day.DayID}
	if !s.day.InRoster(accountID) {
		resp.Reason = ReasonRosterLocked
		return resp, nil
	}
	if a := s.day.AssignmentFor(accountID); a != nil {
		resp.Assigned = true
		resp.Assignment = a
	}
	return resp, nil
}
