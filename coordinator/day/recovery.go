package day

import (
	"context"
	"encoding/json"

	dbtypes "github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/rewards"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// restore rebuilds the in-memory world from the stores: the emitter's
// chain position, the projected network state and, when the process died
// mid-day, the live day context.
func (s *Service) restore(ctx context.Context) error {
	head, err := s.cfg.Database.LastEvent(ctx)
	if err != nil {
		return errors.Wrap(err, "could not read event chain head")
	}
	if head != nil {
		s.emitter = events.NewEmitter(s.cfg.Database, head.EventHash)
	}

	st, err := s.restoreState(ctx)
	if err != nil {
		return err
	}
	s.netState = st
	registeredContributorsGauge.Set(float64(len(st.Contributors)))
	dayNumberGauge.Set(float64(st.DayNumber))

	lc, err := s.cfg.Database.DayLifecycle(ctx)
	if err != nil {
		return errors.Wrap(err, "could not read day lifecycle")
	}
	if lc == nil || lc.Phase == string(state.PhaseIdle) {
		setPhaseMetric(state.PhaseIdle)
		log.WithFields(logrus.Fields{
			"contributors": len(st.Contributors),
			"dayNumber":    st.DayNumber,
		}).Info("Restored coordinator state, no day in progress")
		return nil
	}

	// A day was live when the process stopped. If its commit made it into
	// the log the finalization just needs its post-commit persistence
	// completed; otherwise the day resumes ACTIVE.
	committed, err := s.dayWasCommitted(ctx, lc.DayID)
	if err != nil {
		return err
	}
	if committed {
		return s.completeFinalizedDay(ctx, lc)
	}
	return s.resumeActiveDay(ctx, lc)
}

// restoreState projects the network state: the newest snapshot's blob
// plus every event after its commit point. Without a usable snapshot the
// whole log is projected from empty, which stays affordable because
// snapshots are written every finalized day.
func (s *Service) restoreState(ctx context.Context) (*state.NetworkState, error) {
	snap, err := s.cfg.Database.LatestSnapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not read latest snapshot")
	}
	st := state.NewNetworkState()
	sinceDay := ""
	anchorDay := ""
	anchorSeq := int64(-1)
	if snap != nil {
		blob, err := s.cfg.Database.State(ctx, snap.DayID)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load state blob for day %s", snap.DayID)
		}
		anchor, err := s.cfg.Database.EventByHash(ctx, snap.LastEventHash)
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve commit event for day %s", snap.DayID)
		}
		if blob != nil && anchor != nil {
			st = blob
			sinceDay = snap.DayID
			anchorDay = anchor.DayID
			anchorSeq = anchor.SequenceNumber
		} else {
			log.WithField("day", snap.DayID).Warn("Snapshot is missing its state blob, projecting from genesis")
		}
	}
	evs, err := s.cfg.Database.EventsSince(ctx, sinceDay)
	if err != nil {
		return nil, errors.Wrap(err, "could not load events")
	}
	for _, ev := range evs {
		// Events of the snapshot day at or before its commit point are
		// already inside the blob.
		if ev.DayID == anchorDay && ev.SequenceNumber <= anchorSeq {
			continue
		}
		if err := events.Project(st, ev); err != nil {
			return nil, errors.Wrap(err, "could not project events")
		}
	}
	return st, nil
}

func (s *Service) dayWasCommitted(ctx context.Context, dayID string) (bool, error) {
	evs, err := s.cfg.Database.EventsByType(ctx, events.TypeRewardsCommitted, dayID, dayID)
	if err != nil {
		return false, errors.Wrapf(err, "could not check commit events for day %s", dayID)
	}
	return len(evs) > 0, nil
}

// completeFinalizedDay finishes a finalization whose commit landed in the
// log but whose post-commit persistence was interrupted: ledger credits,
// the state blob and the snapshot. Every step is idempotent.
func (s *Service) completeFinalizedDay(ctx context.Context, lc *dbtypes.DayLifecycle) error {
	day := lc.DayID
	commits, err := s.cfg.Database.EventsByType(ctx, events.TypeRewardsCommitted, day, day)
	if err != nil {
		return errors.Wrapf(err, "could not load commit events for day %s", day)
	}
	commit := commits[len(commits)-1]
	finals, err := s.cfg.Database.EventsByType(ctx, events.TypeDayFinalized, day, day)
	if err != nil {
		return errors.Wrapf(err, "could not load finalize events for day %s", day)
	}
	if len(finals) == 0 {
		return errors.Errorf("day %s committed rewards without a finalize event", day)
	}
	dist, stateHash, err := decodeFinalizePayload(finals[len(finals)-1].Payload)
	if err != nil {
		return errors.Wrapf(err, "could not decode finalize payload for day %s", day)
	}

	credited, err := s.cfg.Database.CreditRewards(ctx, day, dist.Rewards)
	if err != nil {
		return errors.Wrapf(err, "could not credit rewards for day %s", day)
	}
	if credited {
		log.WithField("day", day).Info("Backfilled ledger credits for interrupted finalization")
	}

	snap, err := s.cfg.Database.Snapshot(ctx, day)
	if err != nil {
		return errors.Wrapf(err, "could not load snapshot for day %s", day)
	}
	blob, err := s.cfg.Database.State(ctx, day)
	if err != nil {
		return errors.Wrapf(err, "could not load state blob for day %s", day)
	}
	if snap == nil || blob == nil {
		committed, err := s.projectThrough(ctx, commit)
		if err != nil {
			return errors.Wrapf(err, "could not rebuild committed state for day %s", day)
		}
		if blob == nil {
			if err := s.cfg.Database.SaveState(ctx, day, committed); err != nil {
				return errors.Wrapf(err, "could not persist state blob for day %s", day)
			}
		}
		if snap == nil {
			rewardHash, err := rewards.Hash(dist.Rewards)
			if err != nil {
				return err
			}
			snap = &state.StateSnapshot{
				DayID:            day,
				DayNumber:        committed.DayNumber,
				StateHash:        stateHash,
				LastEventHash:    commit.EventHash,
				RewardHash:       rewardHash,
				ContributorCount: len(committed.Contributors),
				CreatedAt:        timeutil.ISO(s.cfg.Now()),
			}
			if err := s.cfg.Database.SaveSnapshot(ctx, snap); err != nil {
				return errors.Wrapf(err, "could not persist snapshot for day %s", day)
			}
		}
	}

	s.day = state.NewDayContext()
	setPhaseMetric(state.PhaseIdle)
	if err := s.saveLifecycle(ctx); err != nil {
		return errors.Wrap(err, "could not checkpoint idle phase")
	}
	log.WithField("day", day).Info("Completed interrupted finalization")
	return nil
}

// projectThrough replays the log from the beginning up to and including
// the target event. Only the rare crash-mid-finalize path pays this cost.
func (s *Service) projectThrough(ctx context.Context, target *events.Event) (*state.NetworkState, error) {
	evs, err := s.cfg.Database.EventsSince(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "could not load events")
	}
	st := state.NewNetworkState()
	for _, ev := range evs {
		if err := events.Project(st, ev); err != nil {
			return nil, err
		}
		if ev.EventHash == target.EventHash {
			return st, nil
		}
	}
	return nil, errors.Errorf("event %s not found in the log", target.EventHash)
}

// resumeActiveDay rebuilds the live day context from the lifecycle
// checkpoint, the assignment table, the submission log and the recorded
// processing decisions. A crash mid-finalize that never reached the
// commit lands here too and the day simply resumes ACTIVE.
func (s *Service) resumeActiveDay(ctx context.Context, lc *dbtypes.DayLifecycle) error {
	assignments, err := s.cfg.Database.AssignmentsByDay(ctx, lc.DayID)
	if err != nil {
		return errors.Wrapf(err, "could not load assignments for day %s", lc.DayID)
	}
	subs, err := s.cfg.Database.SubmissionsByDay(ctx, lc.DayID)
	if err != nil {
		return errors.Wrapf(err, "could not load submissions for day %s", lc.DayID)
	}

	d := state.NewDayContext()
	d.DayID = lc.DayID
	d.Phase = state.PhaseActive
	d.Seed = lc.Seed
	d.RosterHash = lc.RosterHash
	d.Roster = lc.Roster
	d.PendingSubmissions = subs
	for _, id := range lc.CanaryBlockIDs {
		d.CanaryBlockIDs[id] = struct{}{}
	}
	for _, a := range assignments {
		d.Assignments[a.ContributorID] = a
	}
	if lc.StartedAt != "" {
		startedAt, err := timeutil.ParseISO(lc.StartedAt)
		if err != nil {
			return errors.Wrapf(err, "could not parse day start time for day %s", lc.DayID)
		}
		d.StartedAt = startedAt
	}

	// Re-seed the idempotency cache from the recorded decisions so clients
	// retrying across the restart get their cached outcomes back.
	processed, err := s.cfg.Database.EventsByType(ctx, events.TypeSubmissionProcessed, lc.DayID, lc.DayID)
	if err != nil {
		return errors.Wrapf(err, "could not load processed submissions for day %s", lc.DayID)
	}
	for _, ev := range processed {
		out, accountID, err := outcomeFromEvent(ev)
		if err != nil {
			return errors.Wrapf(err, "could not decode processed submission %s", ev.EventID)
		}
		s.processed.Set(idempotencyKey(accountID, out.BlockID, lc.DayID), out, cache.DefaultExpiration)
	}

	s.day = d
	setPhaseMetric(state.PhaseActive)
	if lc.Phase == string(state.PhaseFinalizing) {
		// The previous process died between entering FINALIZING and the
		// commit: nothing was emitted, so the day safely reopens.
		if err := s.saveLifecycle(ctx); err != nil {
			log.WithError(err).Error("Could not checkpoint resumed phase")
		}
		log.WithField("day", lc.DayID).Warn("Finalization was interrupted before commit, day resumed ACTIVE")
	}
	log.WithFields(logrus.Fields{
		"day":         lc.DayID,
		"roster":      len(d.Roster),
		"submissions": len(subs),
	}).Info("Resumed active day")
	return nil
}

// decodeFinalizePayload rebuilds the committed distribution and state
// hash from a DAY_FINALIZED payload.
func decodeFinalizePayload(payload map[string]interface{}) (*state.RewardDistribution, string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "could not re-encode payload")
	}
	dist := &state.RewardDistribution{}
	if err := json.Unmarshal(raw, dist); err != nil {
		return nil, "", errors.Wrap(err, "could not decode distribution")
	}
	stateHash, ok := payload["stateHash"].(string)
	if !ok {
		return nil, "", errors.New("payload missing stateHash")
	}
	return dist, stateHash, nil
}

// outcomeFromEvent rebuilds a cached submission outcome from its
// SUBMISSION_PROCESSED event.
func outcomeFromEvent(ev *events.Event) (*SubmissionOutcome, string, error) {
	var rec struct {
		AccountID      string `json:"accountId"`
		BlockID        string `json:"blockId"`
		Accepted       bool   `json:"accepted"`
		Reason         string `json:"reason"`
		CanaryDetected bool   `json:"canaryDetected"`
		CanaryPassed   bool   `json:"canaryPassed"`
		PenaltyApplied bool   `json:"penaltyApplied"`
	}
	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "could not re-encode payload")
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, "", errors.Wrap(err, "could not decode payload")
	}
	return &SubmissionOutcome{
		BlockID:        rec.BlockID,
		Accepted:       rec.Accepted,
		Reason:         rec.Reason,
		CanaryDetected: rec.CanaryDetected,
		CanaryPassed:   rec.CanaryPassed,
		PenaltyApplied: rec.PenaltyApplied,
	}, rec.AccountID, nil
}
