package day

import (
	"context"

	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/replay"
	"github.com/ai4all-network/coordinator/coordinator/rewards"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FinalizeResult reports a committed day.
type FinalizeResult struct {
	DayID        string                    `json:"dayId"`
	DayNumber    int64                     `json:"dayNumber"`
	RewardRoot   string                    `json:"rewardRoot"`
	StateHash    string                    `json:"stateHash"`
	Distribution *state.RewardDistribution `json:"distribution"`
	// Credited is false when the ledger had already been credited for the
	// day, e.g. by a recovery pass after a crash.
	Credited bool `json:"credited"`
	// Verification carries the immediate self-replay of the committed day.
	// Nil only when the replay itself errored, which is logged.
	Verification *replay.Result `json:"verification,omitempty"`
}

// FinalizeDay computes the day's rewards, commits them to the event log
// and retires the day. Only valid while the day is ACTIVE. The event
// append is the single commit boundary: any failure before it reverts the
// phase to ACTIVE for an operator retry, and every persistence step after
// it is recoverable from the log.
func (s *Service) FinalizeDay(ctx context.Context, dayID string) (*FinalizeResult, error) {
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
	day := s.day.DayID
	s.day.Phase = state.PhaseFinalizing
	setPhaseMetric(state.PhaseFinalizing)
	if err := s.saveLifecycle(ctx); err != nil {
		log.WithError(err).Error("Could not checkpoint finalizing phase")
	}

	res, err := s.finalizeLocked(ctx, day)
	if err != nil {
		s.day.Phase = state.PhaseActive
		setPhaseMetric(state.PhaseActive)
		if lerr := s.saveLifecycle(ctx); lerr != nil {
			log.WithError(lerr).Error("Could not checkpoint reverted phase")
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) finalizeLocked(ctx context.Context, day string) (*FinalizeResult, error) {
	// All reward windows are measured against the day's pinned noon, never
	// the wall clock, so replays land on the identical distribution.
	noon, err := timeutil.NoonUTC(day)
	if err != nil {
		return nil, err
	}
	cfg := params.CoordinatorConfig()
	dist := rewards.Compute(day, s.netState.Contributors, &cfg.Rewards, noon)
	tree, err := rewards.MerkleTree(dist.Rewards)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	rewardHash, err := rewards.Hash(dist.Rewards)
	if err != nil {
		return nil, err
	}

	final := s.netState.Copy()
	final.DayNumber++
	stateHash, err := final.Hash()
	if err != nil {
		return nil, errors.Wrap(err, "could not hash finalized state")
	}

	now := s.cfg.Now()
	batch := s.emitter.Begin()
	finalizedPayload, err := events.DayFinalizedPayload(dist, root, stateHash)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, day, events.TypeDayFinalized, "", finalizedPayload, now); err != nil {
		return nil, err
	}
	committedPayload := events.RewardsCommittedPayload(final.DayNumber, root)
	if _, err := batch.Add(ctx, day, events.TypeRewardsCommitted, "", committedPayload, now); err != nil {
		return nil, err
	}
	if err := s.appendBatch(ctx, batch); err != nil {
		return nil, err
	}
	// The day is committed. Failures from here on are logged, not returned:
	// the startup recovery path re-derives all of it from the log.
	s.netState = final
	s.day = state.NewDayContext()
	s.processed.Flush()
	setPhaseMetric(state.PhaseIdle)
	dayNumberGauge.Set(float64(final.DayNumber))
	daysFinalizedTotal.Inc()
	if err := s.saveLifecycle(ctx); err != nil {
		log.WithError(err).Error("Could not checkpoint idle phase")
	}

	credited, err := s.cfg.Database.CreditRewards(ctx, day, dist.Rewards)
	if err != nil {
		log.WithError(err).Error("Could not credit reward balances")
	}
	if err := s.cfg.Database.SaveState(ctx, day, final); err != nil {
		log.WithError(err).Error("Could not persist state blob")
	}
	snap := &state.StateSnapshot{
		DayID:            day,
		DayNumber:        final.DayNumber,
		StateHash:        stateHash,
		LastEventHash:    s.emitter.PrevHash(),
		RewardHash:       rewardHash,
		ContributorCount: len(final.Contributors),
		CreatedAt:        timeutil.ISO(now),
	}
	if err := s.cfg.Database.SaveSnapshot(ctx, snap); err != nil {
		log.WithError(err).Error("Could not persist day snapshot")
	}

	verification, err := replay.Day(ctx, s.cfg.Database, day)
	if err != nil {
		log.WithError(err).Error("Could not self-verify finalized day")
	} else if !verification.Valid() {
		log.WithFields(logrus.Fields{
			"day":            day,
			"hashChainValid": verification.HashChainValid,
			"stateMatch":     verification.StateMatch,
			"rewardsMatch":   verification.RewardsMatch,
		}).Error("Replay verification failed for finalized day")
	}

	log.WithFields(logrus.Fields{
		"day":       day,
		"dayNumber": final.DayNumber,
		"active":    dist.ActiveContributorCount,
		"emissions": humanize.Commaf(dist.TotalEmissions),
		"root":      root,
	}).Info("Finalized day")

	return &FinalizeResult{
		DayID:        day,
		DayNumber:    final.DayNumber,
		RewardRoot:   root,
		StateHash:    stateHash,
		Distribution: dist,
		Credited:     credited,
		Verification: verification,
	}, nil
}
