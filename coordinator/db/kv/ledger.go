package kv

import (
	"bytes"
	"context"
	"sort"

	"github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/ledger"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"
)

// ledgerEntryKey is unique per (account, day, entry type); a second
// credit with the same key is the idempotency no-op.
func ledgerEntryKey(accountID, dayID string, entryType types.EntryType) []byte {
	return []byte(accountID + ":" + dayID + ":" + string(entryType))
}

// rewardDayMarkerKey marks a whole day's reward distribution as
// credited.
func rewardDayMarkerKey(dayID string) []byte {
	return []byte("day:" + dayID)
}

// CreditRewards applies a day's reward distribution to the ledger in one
// transaction. Idempotent per day: a second call for the same day
// returns false without touching balances.
func (s *Store) CreditRewards(ctx context.Context, dayID string, entries []*state.RewardEntry) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.CreditRewards")
	defer span.End()
	credited := false
	createdAt := timeutil.ISO(timeutil.Now())
	err := s.db.Update(func(tx *bolt.Tx) error {
		entriesBkt := tx.Bucket(ledgerEntriesBucket)
		if entriesBkt.Get(rewardDayMarkerKey(dayID)) != nil {
			return nil
		}
		balancesBkt := tx.Bucket(balancesBucket)
		for _, e := range entries {
			amount := ledger.ToMicro(e.TotalReward)
			if err := creditInTx(balancesBkt, entriesBkt, e.AccountID, dayID, types.EntryTypeReward, amount, createdAt); err != nil {
				return err
			}
		}
		if err := entriesBkt.Put(rewardDayMarkerKey(dayID), []byte(createdAt)); err != nil {
			return err
		}
		credited = true
		return nil
	})
	return credited, err
}

// Credit applies a single credit, idempotent per
// (account, day, entry type).
func (s *Store) Credit(ctx context.Context, accountID, dayID string, entryType types.EntryType, amountMicro int64) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.Credit")
	defer span.End()
	credited := false
	createdAt := timeutil.ISO(timeutil.Now())
	err := s.db.Update(func(tx *bolt.Tx) error {
		entriesBkt := tx.Bucket(ledgerEntriesBucket)
		if entriesBkt.Get(ledgerEntryKey(accountID, dayID, entryType)) != nil {
			return nil
		}
		if err := creditInTx(tx.Bucket(balancesBucket), entriesBkt, accountID, dayID, entryType, amountMicro, createdAt); err != nil {
			return err
		}
		credited = true
		return nil
	})
	return credited, err
}

func creditInTx(balancesBkt, entriesBkt *bolt.Bucket, accountID, dayID string, entryType types.EntryType, amountMicro int64, createdAt string) error {
	row := &types.BalanceRow{AccountID: accountID}
	if v := balancesBkt.Get([]byte(accountID)); v != nil {
		if err := decode(v, row); err != nil {
			return err
		}
	}
	row.BalanceMicro += amountMicro
	row.TotalEarnedMicro += amountMicro
	if entryType == types.EntryTypeReward {
		row.LastRewardDay = dayID
	}
	encRow, err := encode(row)
	if err != nil {
		return err
	}
	if err := balancesBkt.Put([]byte(accountID), encRow); err != nil {
		return err
	}

	entry := &types.BalanceHistoryEntry{
		AccountID:         accountID,
		DayID:             dayID,
		EntryType:         entryType,
		AmountMicro:       amountMicro,
		BalanceAfterMicro: row.BalanceMicro,
		CreatedAt:         createdAt,
	}
	encEntry, err := encode(entry)
	if err != nil {
		return err
	}
	return entriesBkt.Put(ledgerEntryKey(accountID, dayID, entryType), encEntry)
}

// Balance returns the account's ledger row; a never-credited account
// reads as an all-zero row.
func (s *Store) Balance(ctx context.Context, accountID string) (*types.BalanceRow, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.Balance")
	defer span.End()
	row := &types.BalanceRow{AccountID: accountID}
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(balancesBucket).Get([]byte(accountID))
		if v == nil {
			return nil
		}
		return decode(v, row)
	})
	return row, err
}

// BalanceHistory returns the account's credits, newest day first, up to
// limit (zero or negative means no limit).
func (s *Store) BalanceHistory(ctx context.Context, accountID string, limit int) ([]*types.BalanceHistoryEntry, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.BalanceHistory")
	defer span.End()
	out := make([]*types.BalanceHistoryEntry, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(ledgerEntriesBucket).Cursor()
		prefix := []byte(accountID + ":")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			entry := &types.BalanceHistoryEntry{}
			if err := decode(v, entry); err != nil {
				return err
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayID != out[j].DayID {
			return out[i].DayID > out[j].DayID
		}
		return out[i].EntryType < out[j].EntryType
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Leaderboard returns the top accounts by total earned, descending, up
// to limit (zero or negative means no limit).
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]*types.BalanceRow, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.Leaderboard")
	defer span.End()
	out := make([]*types.BalanceRow, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(balancesBucket).ForEach(func(_, v []byte) error {
			row := &types.BalanceRow{}
			if err := decode(v, row); err != nil {
				return err
			}
			out = append(out, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalEarnedMicro != out[j].TotalEarnedMicro {
			return out[i].TotalEarnedMicro > out[j].TotalEarnedMicro
		}
		return out[i].AccountID < out[j].AccountID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TotalSupply sums every account's current balance.
func (s *Store) TotalSupply(ctx context.Context) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "coordinatorDB.TotalSupply")
	defer span.End()
	var total int64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(balancesBucket).ForEach(func(_, v []byte) error {
			row := &types.BalanceRow{}
			if err := decode(v, row); err != nil {
				return err
			}
			total += row.BalanceMicro
			return nil
		})
	})
	return total, err
}
