package day

import (
	"context"

	"github.com/ai4all-network/coordinator/coordinator/assign"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// StartResult summarizes a freshly started day.
type StartResult struct {
	DayID       string `json:"dayId"`
	Phase       string `json:"phase"`
	RosterSize  int    `json:"rosterSize"`
	RosterHash  string `json:"rosterHash"`
	Seed        uint32 `json:"seed"`
	TotalBlocks int    `json:"totalBlocks"`
	Assignments int    `json:"assignments"`
	CanaryCount int    `json:"canaryCount"`
}

// StartDay locks the roster, runs the work lottery and opens the day for
// submissions. Only valid while no day is active. An empty dayID starts
// the current UTC calendar day; an explicit dayID drives a past or future
// day, which the scheduler never does but operators occasionally need.
func (s *Service) StartDay(ctx context.Context, dayID string) (*StartResult, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch s.day.Phase {
	case state.PhaseActive:
		return nil, ErrDayAlreadyActive
	case state.PhaseFinalizing:
		return nil, ErrDayFinalizing
	}
	now := s.cfg.Now()
	if dayID == "" {
		dayID = timeutil.DayID(now)
	}
	if !timeutil.ValidDayID(dayID) {
		return nil, errors.Errorf("invalid day id %q", dayID)
	}

	ids := s.netState.AccountIDs()
	roster := make([]*state.Contributor, 0, len(ids))
	for _, id := range ids {
		roster = append(roster, s.netState.Contributors[id])
	}
	rosterHash := assign.RosterHash(ids)
	seed := assign.DeriveSeed(dayID, rosterHash)
	// Lottery weights are measured against the day's pinned noon so that
	// recomputing the same day later reproduces the identical table.
	weightRef, err := timeutil.NoonUTC(dayID)
	if err != nil {
		return nil, err
	}
	cfg := params.CoordinatorConfig()
	res := assign.Compute(dayID, seed, roster, &cfg.Assignment, weightRef, timeutil.ISO(now))

	if err := s.cfg.Database.SaveAssignments(ctx, dayID, res.Assignments); err != nil {
		return nil, errors.Wrap(err, "could not persist assignments")
	}

	batch := s.emitter.Begin()
	rosterPayload, err := events.RosterLockedPayload(rosterHash, seed, ids)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, dayID, events.TypeRosterLocked, "", rosterPayload, now); err != nil {
		return nil, err
	}
	workPayload, err := events.WorkAssignedPayload(res.Assignments, res.TotalBlocks)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, dayID, events.TypeWorkAssigned, "", workPayload, now); err != nil {
		return nil, err
	}
	canaryPayload, err := events.CanariesSelectedPayload(res.CanaryBlockIDs)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, dayID, events.TypeCanariesSelected, "", canaryPayload, now); err != nil {
		return nil, err
	}
	if err := s.appendBatch(ctx, batch); err != nil {
		return nil, err
	}

	d := state.NewDayContext()
	d.DayID = dayID
	d.Phase = state.PhaseActive
	d.Seed = seed
	d.RosterHash = rosterHash
	d.Roster = ids
	d.StartedAt = now
	for _, id := range res.CanaryBlockIDs {
		d.CanaryBlockIDs[id] = struct{}{}
	}
	for _, a := range res.Assignments {
		d.Assignments[a.ContributorID] = a
	}
	s.day = d
	setPhaseMetric(state.PhaseActive)

	if err := s.saveLifecycle(ctx); err != nil {
		// The day is committed in the event log either way, but without the
		// checkpoint a restart will come back IDLE and the day needs an
		// operator restart.
		log.WithError(err).Error("Could not checkpoint day lifecycle")
	}

	log.WithFields(logrus.Fields{
		"day":      dayID,
		"roster":   len(ids),
		"blocks":   res.TotalBlocks,
		"canaries": len(res.CanaryBlockIDs),
	}).Info("Started new day")

	return &StartResult{
		DayID:       dayID,
		Phase:       string(state.PhaseActive),
		RosterSize:  len(ids),
		RosterHash:  rosterHash,
		Seed:        seed,
		TotalBlocks: res.TotalBlocks,
		Assignments: len(res.Assignments),
		CanaryCount: len(res.CanaryBlockIDs),
	}, nil
}
