// Package replay re-derives finalized days from the event log and checks
// them against their committed snapshots. It is the audit path of the
// coordinator: nothing here re-runs decision logic, it only projects
// recorded decisions and compares hashes. A day verifies when its hash
// chain is intact, the projected state hash matches the snapshot and the
// recomputed reward hash matches the committed one.
package replay

import (
	"context"
	"encoding/json"

	"github.com/ai4all-network/coordinator/coordinator/db/iface"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/rewards"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "replay")

// Store is the read-only slice of the database replay runs against.
type Store interface {
	iface.EventStore
	iface.StateStore
}

// Result of replaying one day against its committed snapshot.
type Result struct {
	DayID              string               `json:"dayId"`
	EventCount         int                  `json:"eventCount"`
	HashChainValid     bool                 `json:"hashChainValid"`
	StateMatch         bool                 `json:"stateMatch"`
	RewardsMatch       bool                 `json:"rewardsMatch"`
	ReplayedStateHash  string               `json:"replayedStateHash"`
	ReplayedRewardHash string               `json:"replayedRewardHash"`
	Snapshot           *state.StateSnapshot `json:"snapshot"`
}

// Valid reports whether every check passed.
func (r *Result) Valid() bool {
	return r.HashChainValid && r.StateMatch && r.RewardsMatch
}

// Day replays the given finalized day. The prior state is resolved from
// the most recent earlier snapshot plus any events between that
// snapshot's commit point and the day under verification.
func Day(ctx context.Context, store Store, dayID string) (*Result, error) {
	initial, err := initialState(ctx, store, dayID)
	if err != nil {
		return nil, err
	}
	return DayWithState(ctx, store, dayID, initial)
}

// DayWithState replays dayID on top of the supplied prior state. Callers
// chaining multiple days can thread their own continuity state through
// here instead of re-deriving it per day.
func DayWithState(ctx context.Context, store Store, dayID string, initial *state.NetworkState) (*Result, error) {
	snap, err := store.Snapshot(ctx, dayID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load snapshot for day %s", dayID)
	}
	if snap == nil {
		return nil, errors.Errorf("day %s has no snapshot to verify against", dayID)
	}
	evs, err := store.EventsByDay(ctx, dayID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load events for day %s", dayID)
	}
	if len(evs) == 0 {
		return nil, errors.Errorf("day %s has no events", dayID)
	}

	res := &Result{DayID: dayID, EventCount: len(evs), Snapshot: snap}
	res.HashChainValid = verifyChain(ctx, store, evs)

	// Project only through the snapshot's commit point: events appended to
	// the same day after finalization (late registrations) are part of the
	// chain but not of the committed state.
	commitIdx := len(evs) - 1
	for i, ev := range evs {
		if ev.EventHash == snap.LastEventHash {
			commitIdx = i
			break
		}
	}
	st := initial.Copy()
	if err := events.Project(st, evs[:commitIdx+1]...); err != nil {
		return nil, errors.Wrapf(err, "could not project day %s", dayID)
	}
	stateHash, err := st.Hash()
	if err != nil {
		return nil, errors.Wrapf(err, "could not hash replayed state for day %s", dayID)
	}
	res.ReplayedStateHash = stateHash
	res.StateMatch = stateHash == snap.StateHash

	// Rewards are recomputed from the replayed contributors with the config
	// recorded in the day's DAY_FINALIZED payload, pinned to the day's noon.
	cfg, ok, err := finalizeConfig(evs[:commitIdx+1])
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode reward config for day %s", dayID)
	}
	if ok {
		noon, err := timeutil.NoonUTC(dayID)
		if err != nil {
			return nil, err
		}
		dist := rewards.Compute(dayID, st.Contributors, cfg, noon)
		rewardHash, err := rewards.Hash(dist.Rewards)
		if err != nil {
			return nil, errors.Wrapf(err, "could not hash replayed rewards for day %s", dayID)
		}
		res.ReplayedRewardHash = rewardHash
		res.RewardsMatch = rewardHash == snap.RewardHash
	}
	return res, nil
}

// Range replays every finalized day in the inclusive day range, in
// chronological order.
func Range(ctx context.Context, store Store, fromDay, toDay string) ([]*Result, error) {
	finals, err := store.EventsByType(ctx, events.TypeDayFinalized, fromDay, toDay)
	if err != nil {
		return nil, errors.Wrap(err, "could not list finalized days")
	}
	results := make([]*Result, 0, len(finals))
	seen := make(map[string]bool, len(finals))
	for _, ev := range finals {
		if seen[ev.DayID] {
			continue
		}
		seen[ev.DayID] = true
		res, err := Day(ctx, store, ev.DayID)
		if err != nil {
			return nil, errors.Wrapf(err, "could not replay day %s", ev.DayID)
		}
		results = append(results, res)
	}
	return results, nil
}

// initialState reconstructs the network state as it stood just before
// dayID: the newest earlier snapshot's blob plus every event between that
// snapshot's commit point and the start of dayID. Without a usable
// snapshot the state is projected from the beginning of the log.
func initialState(ctx context.Context, store Store, dayID string) (*state.NetworkState, error) {
	prior, err := store.LatestSnapshotBefore(ctx, dayID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not find a snapshot before day %s", dayID)
	}
	st := state.NewNetworkState()
	sinceDay := ""
	anchorDay := ""
	anchorSeq := int64(-1)
	if prior != nil {
		blob, err := store.State(ctx, prior.DayID)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load state blob for day %s", prior.DayID)
		}
		anchor, err := store.EventByHash(ctx, prior.LastEventHash)
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve commit event for day %s", prior.DayID)
		}
		if blob != nil && anchor != nil {
			st = blob
			sinceDay = prior.DayID
			anchorDay = anchor.DayID
			anchorSeq = anchor.SequenceNumber
		} else {
			log.WithField("day", prior.DayID).Warn("Snapshot is missing its state blob, projecting from genesis")
		}
	}
	evs, err := store.EventsSince(ctx, sinceDay)
	if err != nil {
		return nil, errors.Wrap(err, "could not load events")
	}
	for _, ev := range evs {
		// Events come back in (day, sequence) order; everything from the
		// target day onward belongs to the replay itself.
		if ev.DayID >= dayID {
			break
		}
		if ev.DayID == anchorDay && ev.SequenceNumber <= anchorSeq {
			continue
		}
		if err := events.Project(st, ev); err != nil {
			return nil, errors.Wrap(err, "could not project prior events")
		}
	}
	return st, nil
}

// finalizeConfig pulls the reward config out of the day's DAY_FINALIZED
// payload. The config rides inside the committed distribution, so reward
// recomputation always uses the parameters the day actually ran with.
func finalizeConfig(evs []*events.Event) (*params.RewardConfig, bool, error) {
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].EventType != events.TypeDayFinalized {
			continue
		}
		raw, err := json.Marshal(evs[i].Payload["config"])
		if err != nil {
			return nil, false, errors.Wrap(err, "could not re-encode recorded config")
		}
		cfg := &params.RewardConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, false, errors.Wrap(err, "could not decode recorded config")
		}
		return cfg, true, nil
	}
	return nil, false, nil
}

// verifyChain checks every recorded hash, the in-day links and the
// anchoring of the day's first event to the wider chain.
func verifyChain(ctx context.Context, store Store, evs []*events.Event) bool {
	for i, ev := range evs {
		if err := ev.CheckHash(); err != nil {
			log.WithError(err).WithField("day", ev.DayID).Warn("Event hash mismatch")
			return false
		}
		if ev.SequenceNumber != int64(i) {
			log.WithFields(logrus.Fields{
				"day": ev.DayID, "sequence": ev.SequenceNumber, "expected": i,
			}).Warn("Event sequence gap")
			return false
		}
		if i > 0 && ev.PrevEventHash != evs[i-1].EventHash {
			log.WithFields(logrus.Fields{
				"day": ev.DayID, "sequence": ev.SequenceNumber,
			}).Warn("Broken chain link")
			return false
		}
	}
	first := evs[0]
	if first.PrevEventHash == events.GenesisHash {
		return true
	}
	prev, err := store.EventByHash(ctx, first.PrevEventHash)
	if err != nil || prev == nil {
		log.WithField("day", first.DayID).Warn("Day does not anchor to a known event")
		return false
	}
	return true
}
