package events

import (
	"encoding/json"

	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/pkg/errors"
)

// Project folds events into the given state in order. It is a pure
// reducer over recorded decisions: payloads carry post-event values and
// resulting blocks, and the projector applies them verbatim. It never
// re-derives penalties, rewards or assignment outcomes.
func Project(st *state.NetworkState, evs ...*Event) error {
	for _, ev := range evs {
		if err := apply(st, ev); err != nil {
			return errors.Wrapf(err, "could not apply event %s (%s seq %d)", ev.EventID, ev.DayID, ev.SequenceNumber)
		}
	}
	return nil
}

func apply(st *state.NetworkState, ev *Event) error {
	switch ev.EventType {
	case TypeNodeRegistered:
		id, err := payloadString(ev.Payload, "accountId")
		if err != nil {
			return err
		}
		st.EnsureContributor(id)

	case TypeRosterLocked:
		// Roster members registered on an earlier day must exist even when
		// the day is replayed in isolation.
		roster, err := payloadStrings(ev.Payload, "roster")
		if err != nil {
			return err
		}
		for _, id := range roster {
			st.EnsureContributor(id)
		}

	case TypeSubmissionProcessed:
		accepted, err := payloadBool(ev.Payload, "accepted")
		if err != nil {
			return err
		}
		if !accepted {
			return nil
		}
		id, err := payloadString(ev.Payload, "accountId")
		if err != nil {
			return err
		}
		block, err := payloadBlock(ev.Payload, "block")
		if err != nil {
			return err
		}
		c := st.EnsureContributor(id)
		c.CompletedBlocks = append(c.CompletedBlocks, block)

	case TypeCanaryPassed:
		id, err := payloadString(ev.Payload, "accountId")
		if err != nil {
			return err
		}
		passes, err := payloadInt(ev.Payload, "canaryPasses")
		if err != nil {
			return err
		}
		st.EnsureContributor(id).CanaryPasses = passes

	case TypeCanaryFailed:
		id, err := payloadString(ev.Payload, "accountId")
		if err != nil {
			return err
		}
		failures, err := payloadInt(ev.Payload, "canaryFailures")
		if err != nil {
			return err
		}
		reputation, err := payloadFloat(ev.Payload, "reputationMultiplier")
		if err != nil {
			return err
		}
		lastFailure, err := payloadString(ev.Payload, "lastCanaryFailureTime")
		if err != nil {
			return err
		}
		c := st.EnsureContributor(id)
		c.CanaryFailures = failures
		c.ReputationMultiplier = reputation
		c.LastCanaryFailureTime = lastFailure

	case TypeRewardsCommitted:
		n, err := payloadInt(ev.Payload, "dayNumber")
		if err != nil {
			return err
		}
		st.DayNumber = int64(n)

	case TypeWorkAssigned, TypeCanariesSelected, TypeSubmissionReceived, TypeDayFinalized:
		// Informational for the projector; carried for audit and replay
		// verification, not state.

	default:
		return errors.Errorf("unknown event type %q", ev.EventType)
	}
	return nil
}

func payloadString(p map[string]interface{}, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", errors.Errorf("payload missing %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("payload field %q is not a string", key)
	}
	return s, nil
}

func payloadBool(p map[string]interface{}, key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, errors.Errorf("payload missing %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("payload field %q is not a bool", key)
	}
	return b, nil
}

func payloadFloat(p map[string]interface{}, key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, errors.Errorf("payload missing %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, errors.Wrapf(err, "payload field %q is not numeric", key)
		}
		return f, nil
	default:
		return 0, errors.Errorf("payload field %q is not numeric", key)
	}
}

func payloadInt(p map[string]interface{}, key string) (int, error) {
	f, err := payloadFloat(p, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func payloadStrings(p map[string]interface{}, key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, errors.Errorf("payload missing %q", key)
	}
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []interface{}:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, errors.Errorf("payload field %q holds a non-string element", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Errorf("payload field %q is not a string list", key)
	}
}

// payloadBlock decodes the recorded completed block through its json
// form so live and store-loaded payloads land on identical structs.
func payloadBlock(p map[string]interface{}, key string) (*state.CompletedBlock, error) {
	v, ok := p[key]
	if !ok {
		return nil, errors.Errorf("payload missing %q", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "could not re-encode payload field %q", key)
	}
	block := &state.CompletedBlock{}
	if err := json.Unmarshal(raw, block); err != nil {
		return nil, errors.Wrapf(err, "could not decode payload field %q as a block", key)
	}
	return block, nil
}
