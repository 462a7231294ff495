package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/rewards"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/merkle"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/pkg/errors"
)

// dayCommitment is a finalized day's reward commitment as read back
// from its DAY_FINALIZED event.
type dayCommitment struct {
	Distribution *state.RewardDistribution
	RewardRoot   string
}

// commitmentFor loads and caches the reward commitment of a finalized
// day. Returns nil when the day has not finalized. Commitments are
// immutable once written, so cache entries never go stale; the event
// feed still drops entries on DAY_FINALIZED as a guard.
func (s *Service) commitmentFor(ctx context.Context, dayID string) (*dayCommitment, error) {
	if v, ok := s.dists.Get(dayID); ok {
		distCacheHit.Inc()
		return v.(*dayCommitment), nil
	}
	distCacheMiss.Inc()
	evs, err := s.cfg.Database.EventsByType(ctx, events.TypeDayFinalized, dayID, dayID)
	if err != nil {
		return nil, errors.Wrap(err, "could not read finalization event")
	}
	if len(evs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(evs[0].Payload)
	if err != nil {
		return nil, errors.Wrap(err, "could not re-encode finalization payload")
	}
	dist := &state.RewardDistribution{}
	if err := json.Unmarshal(raw, dist); err != nil {
		return nil, errors.Wrap(err, "could not decode reward distribution")
	}
	root, ok := evs[0].Payload["rewardRoot"].(string)
	if !ok {
		return nil, errors.Errorf("finalization event for %s carries no reward root", dayID)
	}
	cd := &dayCommitment{Distribution: dist, RewardRoot: root}
	s.dists.Add(dayID, cd)
	return cd, nil
}

// queryCommitment resolves the dayId query parameter to a commitment,
// writing the error response itself when it cannot.
func (s *Service) queryCommitment(w http.ResponseWriter, r *http.Request) (*dayCommitment, string, bool) {
	dayID := r.URL.Query().Get("dayId")
	if !timeutil.ValidDayID(dayID) {
		handleError(w, "a valid dayId query parameter is required", http.StatusBadRequest)
		return nil, "", false
	}
	cd, err := s.commitmentFor(r.Context(), dayID)
	if err != nil {
		log.WithError(err).Error("Could not load reward commitment")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return nil, "", false
	}
	if cd == nil {
		handleError(w, fmt.Sprintf("no finalized rewards for day %s", dayID), http.StatusNotFound)
		return nil, "", false
	}
	return cd, dayID, true
}

// RewardsForDay returns the distribution summary a finalized day
// committed.
func (s *Service) RewardsForDay(w http.ResponseWriter, r *http.Request) {
	cd, _, ok := s.queryCommitment(w, r)
	if !ok {
		return
	}
	writeJson(w, cd.Distribution)
}

// RewardRootResponse is the day's Merkle commitment summary.
type RewardRootResponse struct {
	DayID      string `json:"dayId"`
	RewardRoot string `json:"rewardRoot"`
	LeafCount  int    `json:"leafCount"`
}

// RewardRoot returns the committed Merkle root and leaf count.
func (s *Service) RewardRoot(w http.ResponseWriter, r *http.Request) {
	cd, dayID, ok := s.queryCommitment(w, r)
	if !ok {
		return
	}
	writeJson(w, &RewardRootResponse{
		DayID:      dayID,
		RewardRoot: cd.RewardRoot,
		LeafCount:  len(cd.Distribution.Rewards),
	})
}

// RewardProofResponse carries one reward leaf and its inclusion proof.
type RewardProofResponse struct {
	DayID      string             `json:"dayId"`
	AccountID  string             `json:"accountId"`
	LeafIndex  int                `json:"leafIndex"`
	Leaf       string             `json:"leaf"`
	Proof      []merkle.ProofStep `json:"proof"`
	RewardRoot string             `json:"rewardRoot"`
}

// RewardProof returns the Merkle proof for one account's reward entry.
// The tree is rebuilt from the committed entries; its root matching the
// committed root is exactly what the proof demonstrates.
func (s *Service) RewardProof(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		handleError(w, "an accountId query parameter is required", http.StatusBadRequest)
		return
	}
	cd, dayID, ok := s.queryCommitment(w, r)
	if !ok {
		return
	}
	idx := -1
	for i, entry := range cd.Distribution.Rewards {
		if entry.AccountID == accountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		handleError(w, fmt.Sprintf("no reward entry for account %s on day %s", accountID, dayID), http.StatusNotFound)
		return
	}
	tree, err := rewards.MerkleTree(cd.Distribution.Rewards)
	if err != nil {
		log.WithError(err).Error("Could not rebuild reward tree")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	leaf, err := tree.Leaf(idx)
	if err != nil {
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	proof, err := tree.Proof(idx)
	if err != nil {
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, &RewardProofResponse{
		DayID:      dayID,
		AccountID:  accountID,
		LeafIndex:  idx,
		Leaf:       leaf,
		Proof:      proof,
		RewardRoot: cd.RewardRoot,
	})
}
