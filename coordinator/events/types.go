// Package events defines the append-only domain event log: the event
// types, the hash chain that links them, the emitter that builds
// well-formed batches and the projector that folds events back into
// network state. Every decision the coordinator makes is recorded here
// with enough payload that replaying the log reproduces the exact same
// state without re-running any decision logic.
package events

import (
	"github.com/ai4all-network/coordinator/shared/hashutil"
	"github.com/pkg/errors"
)

// GenesisHash is the prevEventHash of the very first event.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Domain event types, in rough lifecycle order.
const (
	TypeNodeRegistered      = "NODE_REGISTERED"
	TypeRosterLocked        = "ROSTER_LOCKED"
	TypeWorkAssigned        = "WORK_ASSIGNED"
	TypeCanariesSelected    = "CANARIES_SELECTED"
	TypeSubmissionReceived  = "SUBMISSION_RECEIVED"
	TypeSubmissionProcessed = "SUBMISSION_PROCESSED"
	TypeCanaryPassed        = "CANARY_PASSED"
	TypeCanaryFailed        = "CANARY_FAILED"
	TypeDayFinalized        = "DAY_FINALIZED"
	TypeRewardsCommitted    = "REWARDS_COMMITTED"
)

// Event is one link in the hash chain. Sequence numbers restart at zero
// for each day id; the chain itself never restarts.
type Event struct {
	EventID        string                 `json:"eventId"`
	DayID          string                 `json:"dayId"`
	SequenceNumber int64                  `json:"sequenceNumber"`
	Timestamp      string                 `json:"timestamp"`
	EventType      string                 `json:"eventType"`
	ActorID        string                 `json:"actorId,omitempty"`
	Payload        map[string]interface{} `json:"payload"`
	PrevEventHash  string                 `json:"prevEventHash"`
	EventHash      string                 `json:"eventHash"`
}

// ComputeHash returns the canonical-json hash of the event with the
// eventHash field excluded.
func (e *Event) ComputeHash() (string, error) {
	hashable := map[string]interface{}{
		"eventId":        e.EventID,
		"dayId":          e.DayID,
		"sequenceNumber": e.SequenceNumber,
		"timestamp":      e.Timestamp,
		"eventType":      e.EventType,
		"payload":        e.Payload,
		"prevEventHash":  e.PrevEventHash,
	}
	if e.ActorID != "" {
		hashable["actorId"] = e.ActorID
	}
	return hashutil.HashObject(hashable)
}

// CheckHash recomputes the event hash and errors when it does not match
// the recorded one.
func (e *Event) CheckHash() error {
	h, err := e.ComputeHash()
	if err != nil {
		return errors.Wrap(err, "could not hash event")
	}
	if h != e.EventHash {
		return errors.Errorf("event %s hash mismatch: recorded %s, computed %s", e.EventID, e.EventHash, h)
	}
	return nil
}

// Notification is sent on the node's event feed after a batch of events
// has been durably appended.
type Notification struct {
	Batch []*Event
}
