// Package iface defines the database interfaces the coordinator runs
// against. Two backends satisfy them: the durable bolt store under
// db/kv and the ephemeral map store under db/memory.
package iface

import (
	"context"
	"io"

	"github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/pkg/errors"
)

// ErrBackupUnsupported is returned by Backup on backends that cannot
// produce a file backup.
var ErrBackupUnsupported = errors.New("backup requires the durable store backend")

// EventStore is the append-only domain event log.
type EventStore interface {
	// AppendEvents writes a batch atomically: either every event in the
	// batch becomes visible or none do. Appending over an existing
	// (day, sequence) slot is an error.
	AppendEvents(ctx context.Context, evs []*events.Event) error
	EventsByDay(ctx context.Context, dayID string) ([]*events.Event, error)
	// EventsByType returns matching events within the inclusive day range.
	// Empty bounds leave that side of the range open.
	EventsByType(ctx context.Context, eventType, fromDay, toDay string) ([]*events.Event, error)
	EventsByActor(ctx context.Context, actorID, fromDay, toDay string) ([]*events.Event, error)
	// EventsSince returns all events of every day >= sinceDay in
	// (day, sequence) order.
	EventsSince(ctx context.Context, sinceDay string) ([]*events.Event, error)
	// LastEvent returns the chain head: the most recently appended event.
	LastEvent(ctx context.Context) (*events.Event, error)
	LastEventForDay(ctx context.Context, dayID string) (*events.Event, error)
	// EventByHash resolves an event by its recorded hash, or nil. Replay
	// anchors a day's first link through this.
	EventByHash(ctx context.Context, eventHash string) (*events.Event, error)
	// NextSequence yields the next unused sequence number for a day.
	NextSequence(ctx context.Context, dayID string) (int64, error)
}

// StateStore persists per-day snapshots and full state blobs.
type StateStore interface {
	SaveSnapshot(ctx context.Context, snap *state.StateSnapshot) error
	Snapshot(ctx context.Context, dayID string) (*state.StateSnapshot, error)
	LatestSnapshot(ctx context.Context) (*state.StateSnapshot, error)
	// LatestSnapshotBefore returns the newest snapshot of a day earlier
	// than dayID, or nil.
	LatestSnapshotBefore(ctx context.Context, dayID string) (*state.StateSnapshot, error)
	SaveState(ctx context.Context, dayID string, st *state.NetworkState) error
	State(ctx context.Context, dayID string) (*state.NetworkState, error)
}

// AssignmentStore persists the daily assignment tables.
type AssignmentStore interface {
	SaveAssignments(ctx context.Context, dayID string, assignments []*state.BlockAssignment) error
	AssignmentsByDay(ctx context.Context, dayID string) ([]*state.BlockAssignment, error)
	AssignmentByNode(ctx context.Context, dayID, accountID string) (*state.BlockAssignment, error)
}

// SubmissionStore persists submissions as they arrive so an ACTIVE day
// survives a restart.
type SubmissionStore interface {
	AppendSubmissions(ctx context.Context, dayID string, subs []*state.BlockSubmission) error
	SubmissionsByDay(ctx context.Context, dayID string) ([]*state.BlockSubmission, error)
	SubmissionsByNode(ctx context.Context, dayID, accountID string) ([]*state.BlockSubmission, error)
}

// OperationalStore holds live operational data that is not part of the
// event-sourced state: account keys, heartbeats, paired devices and the
// day lifecycle checkpoint.
type OperationalStore interface {
	SaveNodeKey(ctx context.Context, accountID string, pubKey []byte) error
	NodeKey(ctx context.Context, accountID string) ([]byte, error)
	SaveHeartbeat(ctx context.Context, accountID string, unixTime int64) error
	Heartbeat(ctx context.Context, accountID string) (int64, error)
	SaveDeviceLink(ctx context.Context, link *types.DeviceLink) error
	DevicesByAccount(ctx context.Context, accountID string) ([]*types.DeviceLink, error)
	SaveDayLifecycle(ctx context.Context, lc *types.DayLifecycle) error
	DayLifecycle(ctx context.Context) (*types.DayLifecycle, error)
}

// BalanceLedger tracks credited balances in integer micro-units.
type BalanceLedger interface {
	// CreditRewards applies a day's reward distribution. It is idempotent
	// per day: when any REWARD entry for dayID already exists the call is
	// a no-op and returns false.
	CreditRewards(ctx context.Context, dayID string, entries []*state.RewardEntry) (bool, error)
	// Credit applies a single credit, idempotent per
	// (account, day, entry type).
	Credit(ctx context.Context, accountID, dayID string, entryType types.EntryType, amountMicro int64) (bool, error)
	Balance(ctx context.Context, accountID string) (*types.BalanceRow, error)
	BalanceHistory(ctx context.Context, accountID string, limit int) ([]*types.BalanceHistoryEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]*types.BalanceRow, error)
	TotalSupply(ctx context.Context) (int64, error)
}

// Database is the full persistence surface of a coordinator node.
type Database interface {
	io.Closer
	EventStore
	StateStore
	AssignmentStore
	SubmissionStore
	OperationalStore
	BalanceLedger

	DatabasePath() string
	ClearDB() error
	Backup(ctx context.Context) error
}
