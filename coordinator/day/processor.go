package day

import (
	"context"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// Submission rejection reasons.
const (
	ReasonNotAssigned          = "NOT_ASSIGNED"
	ReasonInvalidBlockType     = "INVALID_BLOCK_TYPE"
	ReasonResourceOutOfRange   = "RESOURCE_USAGE_OUT_OF_RANGE"
	ReasonDifficultyOutOfRange = "DIFFICULTY_OUT_OF_RANGE"
)

// SubmissionOutcome is the processor's decision for one submitted block.
// Outcomes are cached per (account, block, day), so a client retrying a
// submission receives the identical object without any reprocessing.
type SubmissionOutcome struct {
	BlockID        string `json:"blockId"`
	Accepted       bool   `json:"accepted"`
	Reason         string `json:"reason,omitempty"`
	CanaryDetected bool   `json:"canaryDetected"`
	CanaryPassed   bool   `json:"canaryPassed"`
	PenaltyApplied bool   `json:"penaltyApplied"`
}

// SubmitWork runs a batch of submissions through the processor in order.
// Only valid while the day is ACTIVE; an optional dayID pins the batch to
// the day the client believes is running.
func (s *Service) SubmitWork(ctx context.Context, accountID, dayID string, subs []*state.BlockSubmission) ([]*SubmissionOutcome, error) {
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
	outcomes := make([]*SubmissionOutcome, 0, len(subs))
	for _, sub := range subs {
		out, err := s.processOne(ctx, accountID, sub)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (s *Service) processOne(ctx context.Context, accountID string, sub *state.BlockSubmission) (*SubmissionOutcome, error) {
	if sub == nil {
		return nil, errors.New("nil submission")
	}
	key := idempotencyKey(accountID, sub.BlockID, s.day.DayID)
	if cached, ok := s.processed.Get(key); ok {
		return copyOutcome(cached.(*SubmissionOutcome)), nil
	}
	// Blocks the account does not own are rejected without touching the
	// event log; the decision is still cached so retries stay cheap.
	if !s.day.OwnsBlock(accountID, sub.BlockID) {
		out := &SubmissionOutcome{BlockID: sub.BlockID, Reason: ReasonNotAssigned}
		s.processed.Set(key, out, cache.DefaultExpiration)
		submissionsProcessedTotal.WithLabelValues("rejected").Inc()
		return copyOutcome(out), nil
	}

	now := s.cfg.Now()
	stamped := *sub
	stamped.ContributorID = accountID
	stamped.Timestamp = timeutil.ISO(now)
	if sub.CanaryAnswerCorrect != nil {
		v := *sub.CanaryAnswerCorrect
		stamped.CanaryAnswerCorrect = &v
	}

	if reason := validateSubmission(&stamped); reason != "" {
		return s.rejectSubmission(ctx, accountID, &stamped, reason, now, key)
	}
	return s.acceptSubmission(ctx, accountID, &stamped, now, key)
}

func validateSubmission(sub *state.BlockSubmission) string {
	if !state.ValidBlockType(sub.BlockType) {
		return ReasonInvalidBlockType
	}
	if sub.ResourceUsage < state.MinResourceUsage || sub.ResourceUsage > state.MaxResourceUsage {
		return ReasonResourceOutOfRange
	}
	if sub.DifficultyMultiplier < state.MinDifficultyMultiplier || sub.DifficultyMultiplier > state.MaxDifficultyMultiplier {
		return ReasonDifficultyOutOfRange
	}
	return ""
}

// rejectSubmission records a malformed submission in the log without
// mutating any contributor.
func (s *Service) rejectSubmission(ctx context.Context, accountID string, sub *state.BlockSubmission, reason string, now time.Time, key string) (*SubmissionOutcome, error) {
	batch := s.emitter.Begin()
	received, err := events.SubmissionReceivedPayload(sub)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, s.day.DayID, events.TypeSubmissionReceived, accountID, received, now); err != nil {
		return nil, err
	}
	processed, err := events.SubmissionProcessedPayload(accountID, sub, false, reason, nil, false, false, false)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, s.day.DayID, events.TypeSubmissionProcessed, accountID, processed, now); err != nil {
		return nil, err
	}
	if err := s.appendBatch(ctx, batch); err != nil {
		return nil, err
	}
	out := &SubmissionOutcome{BlockID: sub.BlockID, Reason: reason}
	s.processed.Set(key, out, cache.DefaultExpiration)
	submissionsProcessedTotal.WithLabelValues("rejected").Inc()
	s.subRate.Incr(1)
	return copyOutcome(out), nil
}

// acceptSubmission classifies the block, stages the contributor update,
// commits the decision to the log and only then adopts the staged copy.
func (s *Service) acceptSubmission(ctx context.Context, accountID string, sub *state.BlockSubmission, now time.Time, key string) (*SubmissionOutcome, error) {
	cfg := params.CoordinatorConfig()
	staged := s.netState.EnsureContributor(accountID).Copy()
	isCanary := s.day.IsCanary(sub.BlockID)

	block := &state.CompletedBlock{
		BlockType:            sub.BlockType,
		ResourceUsage:        sub.ResourceUsage,
		DifficultyMultiplier: sub.DifficultyMultiplier,
		ValidationPassed:     sub.ValidationPassed,
		Timestamp:            sub.Timestamp,
		IsCanary:             isCanary,
	}
	canaryPassed := false
	penaltyApplied := false
	if isCanary {
		correct := sub.CanaryAnswerCorrect != nil && *sub.CanaryAnswerCorrect
		block.CanaryAnswerCorrect = &correct
		if correct {
			canaryPassed = true
			staged.CanaryPasses++
		} else {
			// Cooldown is checked against the previous failure before this one
			// is stamped: repeated failures inside the window still count but
			// only decay reputation once.
			cooldown := time.Duration(cfg.Rewards.CanaryFailureCooldownHours) * time.Hour
			inCooldown := staged.InCanaryCooldown(now, cooldown)
			staged.CanaryFailures++
			if !inCooldown {
				staged.ApplyCanaryPenalty(cfg.Rewards.CanaryPenalty)
				penaltyApplied = true
			}
			staged.LastCanaryFailureTime = sub.Timestamp
		}
	}
	staged.CompletedBlocks = append(staged.CompletedBlocks, block)

	batch := s.emitter.Begin()
	received, err := events.SubmissionReceivedPayload(sub)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, s.day.DayID, events.TypeSubmissionReceived, accountID, received, now); err != nil {
		return nil, err
	}
	processed, err := events.SubmissionProcessedPayload(accountID, sub, true, "", block, isCanary, canaryPassed, penaltyApplied)
	if err != nil {
		return nil, err
	}
	if _, err := batch.Add(ctx, s.day.DayID, events.TypeSubmissionProcessed, accountID, processed, now); err != nil {
		return nil, err
	}
	if isCanary {
		if canaryPassed {
			payload := events.CanaryPassedPayload(accountID, staged.CanaryPasses)
			if _, err := batch.Add(ctx, s.day.DayID, events.TypeCanaryPassed, accountID, payload, now); err != nil {
				return nil, err
			}
		} else {
			payload := events.CanaryFailedPayload(accountID, staged.CanaryFailures, staged.ReputationMultiplier, staged.LastCanaryFailureTime, penaltyApplied)
			if _, err := batch.Add(ctx, s.day.DayID, events.TypeCanaryFailed, accountID, payload, now); err != nil {
				return nil, err
			}
		}
	}
	if err := s.appendBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.netState.Contributors[accountID] = staged
	s.day.PendingSubmissions = append(s.day.PendingSubmissions, sub)
	if err := s.cfg.Database.AppendSubmissions(ctx, s.day.DayID, []*state.BlockSubmission{sub}); err != nil {
		// The event log is the system of record; the submission log only
		// speeds up restart recovery.
		log.WithError(err).Error("Could not persist submission")
	}

	out := &SubmissionOutcome{
		BlockID:        sub.BlockID,
		Accepted:       true,
		CanaryDetected: isCanary,
		CanaryPassed:   canaryPassed,
		PenaltyApplied: penaltyApplied,
	}
	s.processed.Set(key, out, cache.DefaultExpiration)
	submissionsProcessedTotal.WithLabelValues("accepted").Inc()
	if isCanary {
		if canaryPassed {
			canaryChecksTotal.WithLabelValues("pass").Inc()
		} else {
			canaryChecksTotal.WithLabelValues("fail").Inc()
		}
	}
	s.subRate.Incr(1)
	return copyOutcome(out), nil
}

// copyOutcome shields the cached outcome from caller mutation.
func copyOutcome(out *SubmissionOutcome) *SubmissionOutcome {
	cp := *out
	return &cp
}
