package events

import (
	"encoding/json"

	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/pkg/errors"
)

// Payload constructors. Nested structs are flattened through one json
// round trip so that a freshly emitted event and the same event decoded
// from the store carry byte-for-byte identical payload shapes; the
// projector then has a single code path for both.

func jsonValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal payload value")
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "could not normalize payload value")
	}
	return out, nil
}

// NodeRegisteredPayload records a new account joining the network and
// the public key it registered under, so the log itself documents every
// key binding.
func NodeRegisteredPayload(accountID, publicKeyHex string) map[string]interface{} {
	return map[string]interface{}{
		"accountId": accountID,
		"publicKey": publicKeyHex,
	}
}

// RosterLockedPayload records the frozen roster and the seed derived
// from it. The full roster rides along so a from-empty replay of the day
// can reconstruct every member.
func RosterLockedPayload(rosterHash string, seed uint32, roster []string) (map[string]interface{}, error) {
	r, err := jsonValue(roster)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"rosterHash": rosterHash,
		"seed":       float64(seed),
		"roster":     r,
	}, nil
}

// WorkAssignedPayload records the day's full assignment table.
func WorkAssignedPayload(assignments []*state.BlockAssignment, totalBlocks int) (map[string]interface{}, error) {
	a, err := jsonValue(assignments)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"assignments":     a,
		"assignmentCount": float64(len(assignments)),
		"totalBlocks":     float64(totalBlocks),
	}, nil
}

// CanariesSelectedPayload records which block ids carry canaries.
func CanariesSelectedPayload(blockIDs []string) (map[string]interface{}, error) {
	ids, err := jsonValue(blockIDs)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"blockIds": ids,
		"count":    float64(len(blockIDs)),
	}, nil
}

// SubmissionReceivedPayload records a submission exactly as it entered
// the processor. Informational: the projector ignores it.
func SubmissionReceivedPayload(sub *state.BlockSubmission) (map[string]interface{}, error) {
	s, err := jsonValue(sub)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"submission": s,
	}, nil
}

// SubmissionProcessedPayload records the processor's full decision,
// including the resulting completed block when the submission was
// accepted. The projector appends the recorded block verbatim rather
// than re-deriving it.
func SubmissionProcessedPayload(accountID string, out *state.BlockSubmission, accepted bool, reason string, block *state.CompletedBlock, canaryDetected, canaryPassed, penaltyApplied bool) (map[string]interface{}, error) {
	p := map[string]interface{}{
		"accountId":      accountID,
		"blockId":        out.BlockID,
		"accepted":       accepted,
		"canaryDetected": canaryDetected,
		"canaryPassed":   canaryPassed,
		"penaltyApplied": penaltyApplied,
	}
	if reason != "" {
		p["reason"] = reason
	}
	if block != nil {
		b, err := jsonValue(block)
		if err != nil {
			return nil, err
		}
		p["block"] = b
	}
	return p, nil
}

// CanaryPassedPayload records the post-event pass counter.
func CanaryPassedPayload(accountID string, canaryPasses int) map[string]interface{} {
	return map[string]interface{}{
		"accountId":    accountID,
		"canaryPasses": float64(canaryPasses),
	}
}

// CanaryFailedPayload records the post-event failure counter, the new
// reputation multiplier and the failure timestamp. Replay applies these
// recorded values, so penalty math can change without forking history.
func CanaryFailedPayload(accountID string, canaryFailures int, reputation float64, lastFailureTime string, penaltyApplied bool) map[string]interface{} {
	return map[string]interface{}{
		"accountId":             accountID,
		"canaryFailures":        float64(canaryFailures),
		"reputationMultiplier":  reputation,
		"lastCanaryFailureTime": lastFailureTime,
		"penaltyApplied":        penaltyApplied,
	}
}

// DayFinalizedPayload commits the day's reward distribution, the Merkle
// root over its entries and the post-day state hash.
func DayFinalizedPayload(dist *state.RewardDistribution, rewardRoot, stateHash string) (map[string]interface{}, error) {
	d, err := jsonValue(dist)
	if err != nil {
		return nil, err
	}
	p, ok := d.(map[string]interface{})
	if !ok {
		return nil, errors.New("distribution did not normalize to an object")
	}
	p["rewardRoot"] = rewardRoot
	p["stateHash"] = stateHash
	return p, nil
}

// RewardsCommittedPayload records the day number advancing.
func RewardsCommittedPayload(dayNumber int64, rewardRoot string) map[string]interface{} {
	return map[string]interface{}{
		"dayNumber":  float64(dayNumber),
		"rewardRoot": rewardRoot,
	}
}
