package kv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ai4all-network/coordinator/coordinator/state"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// submissionKey orders a day's submissions by arrival.
func submissionKey(dayID string, n uint64) []byte {
	return []byte(fmt.Sprintf("%s:%010d", dayID, n))
}

// AppendSubmissions appends submissions to the day's arrival-ordered
// log.
func (s *Store) AppendSubmissions(ctx context.Context, dayID string, subs []*state.BlockSubmission) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.AppendSubmissions")
	defer span.End()
	if len(subs) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(submissionsBucket)
		for _, sub := range subs {
			n, err := bkt.NextSequence()
			if err != nil {
				return err
			}
			enc, err := encode(sub)
			if err != nil {
				return err
			}
			if err := bkt.Put(submissionKey(dayID, n), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubmissionsByDay returns the day's submissions in arrival order.
func (s *Store) SubmissionsByDay(ctx context.Context, dayID string) ([]*state.BlockSubmission, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SubmissionsByDay")
	defer span.End()
	var out []*state.BlockSubmission
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(submissionsBucket).Cursor()
		prefix := dayPrefix(dayID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			sub := &state.BlockSubmission{}
			if err := decode(v, sub); err != nil {
				return err
			}
			out = append(out, sub)
		}
		return nil
	})
	return out, err
}

// SubmissionsByNode returns the account's submissions for the day in
// arrival order.
func (s *Store) SubmissionsByNode(ctx context.Context, dayID, accountID string) ([]*state.BlockSubmission, error) {
	subs, err := s.SubmissionsByDay(ctx, dayID)
	if err != nil {
		return nil, err
	}
	out := make([]*state.BlockSubmission, 0)
	for _, sub := range subs {
		if sub.ContributorID == accountID {
			out = append(out, sub)
		}
	}
	return out, nil
}
