package kv

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/ai4all-network/coordinator/coordinator/db/types"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// SaveNodeKey stores the account's registered public key. First write
// wins at the caller level; the store itself just persists.
func (s *Store) SaveNodeKey(ctx context.Context, accountID string, pubKey []byte) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveNodeKey")
	defer span.End()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(nodeKeysBucket).Put([]byte(accountID), pubKey)
	})
}

// NodeKey returns the account's registered public key, or nil.
func (s *Store) NodeKey(ctx context.Context, accountID string) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.NodeKey")
	defer span.End()
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(nodeKeysBucket).Get([]byte(accountID))
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	return out, err
}

// SaveHeartbeat records the account's last-seen unix time.
func (s *Store) SaveHeartbeat(ctx context.Context, accountID string, unixTime int64) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveHeartbeat")
	defer span.End()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(unixTime))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(heartbeatsBucket).Put([]byte(accountID), buf)
	})
}

// Heartbeat returns the account's last-seen unix time, or zero.
func (s *Store) Heartbeat(ctx context.Context, accountID string) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.Heartbeat")
	defer span.End()
	var out int64
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(heartbeatsBucket).Get([]byte(accountID))
		if len(v) == 8 {
			out = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return out, err
}

// deviceKey namespaces device links per account.
func deviceKey(accountID, deviceID string) []byte {
	return []byte(accountID + ":" + deviceID)
}

// SaveDeviceLink stores a paired device record.
func (s *Store) SaveDeviceLink(ctx context.Context, link *types.DeviceLink) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveDeviceLink")
	defer span.End()
	enc, err := encode(link)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(devicesBucket).Put(deviceKey(link.AccountID, link.DeviceID), enc)
	})
}

// DevicesByAccount returns the account's paired devices.
func (s *Store) DevicesByAccount(ctx context.Context, accountID string) ([]*types.DeviceLink, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.DevicesByAccount")
	defer span.End()
	out := make([]*types.DeviceLink, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(devicesBucket).Cursor()
		prefix := []byte(accountID + ":")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			link := &types.DeviceLink{}
			if err := decode(v, link); err != nil {
				return err
			}
			out = append(out, link)
		}
		return nil
	})
	return out, err
}

// SaveDayLifecycle persists the crash-recovery checkpoint.
func (s *Store) SaveDayLifecycle(ctx context.Context, lc *types.DayLifecycle) error {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.SaveDayLifecycle")
	defer span.End()
	enc, err := encode(lc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(lifecycleBucket).Put(lifecycleKey, enc)
	})
}

// DayLifecycle returns the last persisted checkpoint, or nil.
func (s *Store) DayLifecycle(ctx context.Context) (*types.DayLifecycle, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.DayLifecycle")
	defer span.End()
	var out *types.DayLifecycle
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(lifecycleBucket).Get(lifecycleKey)
		if v == nil {
			return nil
		}
		lc := &types.DayLifecycle{}
		if err := decode(v, lc); err != nil {
			return err
		}
		out = lc
		return nil
	})
	return out, err
}
