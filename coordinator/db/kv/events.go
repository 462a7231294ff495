package kv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// eventKey orders events by (day, sequence). Day ids are fixed-width
// YYYY-MM-DD strings and the sequence is zero-padded, so byte order is
// chain order.
func eventKey(dayID string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s:%010d", dayID, seq))
}

func dayPrefix(dayID string) []byte {
	return []byte(dayID + ":")
}

// AppendEvents writes a batch of events in one transaction, maintaining
// the hash index and the chain-head pointer. A batch that would
// overwrite an existing (day, sequence) slot is rejected whole.
func (s *Store) AppendEvents(ctx context.Context, evs []*events.Event) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.AppendEvents")
	defer span.End()
	if len(evs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(eventsBucket)
		idx := tx.Bucket(eventHashIndexBucket)
		var headKey []byte
		for _, ev := range evs {
			key := eventKey(ev.DayID, ev.SequenceNumber)
			if existing := bkt.Get(key); existing != nil {
				return errors.Errorf("event slot %s already occupied", key)
			}
			enc, err := encode(ev)
			if err != nil {
				return err
			}
			if err := bkt.Put(key, enc); err != nil {
				return err
			}
			if err := idx.Put([]byte(ev.EventHash), key); err != nil {
				return err
			}
			headKey = key
		}
		return tx.Bucket(chainMetaBucket).Put(chainHeadKey, headKey)
	})
}

// EventsByDay returns the day's events in sequence order.
func (s *Store) EventsByDay(ctx context.Context, dayID string) ([]*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.EventsByDay")
	defer span.End()
	var out []*events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		prefix := dayPrefix(dayID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			ev := &events.Event{}
			if err := decode(v, ev); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// EventsByType returns events of the given type within the inclusive day
// range. Empty bounds leave that side open.
func (s *Store) EventsByType(ctx context.Context, eventType, fromDay, toDay string) ([]*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.EventsByType")
	defer span.End()
	return s.scanEvents(fromDay, toDay, func(ev *events.Event) bool {
		return ev.EventType == eventType
	})
}

// EventsByActor returns events attributed to the actor within the
// inclusive day range.
func (s *Store) EventsByActor(ctx context.Context, actorID, fromDay, toDay string) ([]*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.EventsByActor")
	defer span.End()
	return s.scanEvents(fromDay, toDay, func(ev *events.Event) bool {
		return ev.ActorID == actorID
	})
}

// EventsSince returns all events of every day >= sinceDay in order. An
// empty sinceDay returns the whole log.
func (s *Store) EventsSince(ctx context.Context, sinceDay string) ([]*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.EventsSince")
	defer span.End()
	return s.scanEvents(sinceDay, "", nil)
}

func (s *Store) scanEvents(fromDay, toDay string, match func(*events.Event) bool) ([]*events.Event, error) {
	var out []*events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		var k, v []byte
		if fromDay == "" {
			k, v = c.First()
		} else {
			k, v = c.Seek(dayPrefix(fromDay))
		}
		// The ":" prefix byte sorts below the digits, so every key of
		// toDay itself still falls under this bound.
		var upper []byte
		if toDay != "" {
			upper = []byte(toDay + ";")
		}
		for ; k != nil; k, v = c.Next() {
			if upper != nil && bytes.Compare(k, upper) > 0 {
				break
			}
			ev := &events.Event{}
			if err := decode(v, ev); err != nil {
				return err
			}
			if match == nil || match(ev) {
				out = append(out, ev)
			}
		}
		return nil
	})
	return out, err
}

// LastEvent returns the chain head, the most recently appended event,
// or nil when the log is empty. Append order is authoritative here, not
// key order: an explicitly driven past day appends after later days.
func (s *Store) LastEvent(ctx context.Context) (*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.LastEvent")
	defer span.End()
	var out *events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		headKey := tx.Bucket(chainMetaBucket).Get(chainHeadKey)
		if headKey == nil {
			return nil
		}
		v := tx.Bucket(eventsBucket).Get(headKey)
		if v == nil {
			return errors.Errorf("chain head %s points at a missing event", headKey)
		}
		ev := &events.Event{}
		if err := decode(v, ev); err != nil {
			return err
		}
		out = ev
		return nil
	})
	return out, err
}

// LastEventForDay returns the newest event of the day, or nil.
func (s *Store) LastEventForDay(ctx context.Context, dayID string) (*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.LastEventForDay")
	defer span.End()
	var out *events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		// Seek just past the day's keyspace, then step back one.
		k, v := c.Seek([]byte(dayID + ";"))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		if k == nil || !bytes.HasPrefix(k, dayPrefix(dayID)) {
			return nil
		}
		ev := &events.Event{}
		if err := decode(v, ev); err != nil {
			return err
		}
		out = ev
		return nil
	})
	return out, err
}

// EventByHash resolves an event through the hash index, or nil when no
// event carries the hash.
func (s *Store) EventByHash(ctx context.Context, eventHash string) (*events.Event, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.EventByHash")
	defer span.End()
	var out *events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(eventHashIndexBucket).Get([]byte(eventHash))
		if key == nil {
			return nil
		}
		v := tx.Bucket(eventsBucket).Get(key)
		if v == nil {
			return errors.Errorf("hash index %s points at a missing event", eventHash)
		}
		ev := &events.Event{}
		if err := decode(v, ev); err != nil {
			return err
		}
		out = ev
		return nil
	})
	return out, err
}

// NextSequence yields the next unused sequence number for a day.
func (s *Store) NextSequence(ctx context.Context, dayID string) (int64, error) {
	last, err := s.LastEventForDay(ctx, dayID)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	return last.SequenceNumber + 1, nil
}
