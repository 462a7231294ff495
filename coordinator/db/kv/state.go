package kv

import (
	"bytes"
	"context"

	"github.com/ai4all-network/coordinator/coordinator/state"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// SaveSnapshot persists the day's finalization snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *state.StateSnapshot) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveSnapshot")
	defer span.End()
	enc, err := encode(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put([]byte(snap.DayID), enc)
	})
}

// Snapshot returns the snapshot for a day, or nil.
func (s *Store) Snapshot(ctx context.Context, dayID string) (*state.StateSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.Snapshot")
	defer span.End()
	var out *state.StateSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotsBucket).Get([]byte(dayID))
		if v == nil {
			return nil
		}
		snap := &state.StateSnapshot{}
		if err := decode(v, snap); err != nil {
			return err
		}
		out = snap
		return nil
	})
	return out, err
}

// LatestSnapshot returns the newest snapshot, or nil.
func (s *Store) LatestSnapshot(ctx context.Context) (*state.StateSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.LatestSnapshot")
	defer span.End()
	var out *state.StateSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(snapshotsBucket).Cursor().Last()
		if v == nil {
			return nil
		}
		snap := &state.StateSnapshot{}
		if err := decode(v, snap); err != nil {
			return err
		}
		out = snap
		return nil
	})
	return out, err
}

// LatestSnapshotBefore returns the newest snapshot of a day earlier than
// dayID, or nil.
func (s *Store) LatestSnapshotBefore(ctx context.Context, dayID string) (*state.StateSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.LatestSnapshotBefore")
	defer span.End()
	var out *state.StateSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(snapshotsBucket).Cursor()
		k, v := c.Seek([]byte(dayID))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		if k == nil || bytes.Compare(k, []byte(dayID)) >= 0 {
			return nil
		}
		snap := &state.StateSnapshot{}
		if err := decode(v, snap); err != nil {
			return err
		}
		out = snap
		return nil
	})
	return out, err
}

// SaveState persists the full post-day network state blob.
func (s *Store) SaveState(ctx context.Context, dayID string, st *state.NetworkState) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveState")
	defer span.End()
	enc, err := encode(st)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(statesBucket).Put([]byte(dayID), enc)
	})
}

// State returns the post-day network state blob for a day, or nil.
func (s *Store) State(ctx context.Context, dayID string) (*state.NetworkState, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.State")
	defer span.End()
	var out *state.NetworkState
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(statesBucket).Get([]byte(dayID))
		if v == nil {
			return nil
		}
		st := state.NewNetworkState()
		if err := decode(v, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}
