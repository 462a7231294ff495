package events

import "github.com/pkg/errors"

// VerifyChain checks the integrity of a contiguous run of events: every
// recorded hash must match a recomputation, every prevEventHash must
// point at its predecessor, and sequence numbers must increase by one
// within each day and restart at zero across a day boundary. When
// expectedPrevHash is non-empty the first event must chain onto it.
func VerifyChain(evs []*Event, expectedPrevHash string) error {
	prev := expectedPrevHash
	for i, ev := range evs {
		if err := ev.CheckHash(); err != nil {
			return err
		}
		if prev != "" && ev.PrevEventHash != prev {
			return errors.Errorf("event %s (%s seq %d) chains to %s, expected %s",
				ev.EventID, ev.DayID, ev.SequenceNumber, ev.PrevEventHash, prev)
		}
		if i > 0 {
			last := evs[i-1]
			switch {
			case ev.DayID == last.DayID:
				if ev.SequenceNumber != last.SequenceNumber+1 {
					return errors.Errorf("day %s sequence gap: %d follows %d", ev.DayID, ev.SequenceNumber, last.SequenceNumber)
				}
			case ev.DayID > last.DayID:
				if ev.SequenceNumber != 0 {
					return errors.Errorf("day %s opens at sequence %d, expected 0", ev.DayID, ev.SequenceNumber)
				}
			default:
				return errors.Errorf("day %s follows later day %s", ev.DayID, last.DayID)
			}
		}
		prev = ev.EventHash
	}
	return nil
}
