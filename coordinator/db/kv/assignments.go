package kv

import (
	"context"

	"github.com/ai4all-network/coordinator/coordinator/state"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// SaveAssignments persists a day's full assignment table.
func (s *Store) SaveAssignments(ctx context.Context, dayID string, assignments []*state.BlockAssignment) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveAssignments")
	defer span.End()
	enc, err := encode(assignments)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(assignmentsBucket).Put([]byte(dayID), enc)
	})
}

// AssignmentsByDay returns a day's assignment table, or nil when the day
// holds none.
func (s *Store) AssignmentsByDay(ctx context.Context, dayID string) ([]*state.BlockAssignment, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.AssignmentsByDay")
	defer span.End()
	var out []*state.BlockAssignment
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(assignmentsBucket).Get([]byte(dayID))
		if v == nil {
			return nil
		}
		return decode(v, &out)
	})
	return out, err
}

// AssignmentByNode returns the account's assignment for the day, or nil.
func (s *Store) AssignmentByNode(ctx context.Context, dayID, accountID string) (*state.BlockAssignment, error) {
	assignments, err := s.AssignmentsByDay(ctx, dayID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if a.ContributorID == accountID {
			return a, nil
		}
	}
	return nil, nil
}
