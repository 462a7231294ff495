package db

import "github.com/ai4all-network/coordinator/coordinator/db/iface"

// EventStore exposes the append-only event log operations.
type EventStore = iface.EventStore

// StateStore exposes snapshot and state blob operations.
type StateStore = iface.StateStore

// AssignmentStore exposes the daily assignment table operations.
type AssignmentStore = iface.AssignmentStore

// SubmissionStore exposes the submission log operations.
type SubmissionStore = iface.SubmissionStore

// OperationalStore exposes node key, heartbeat, device and lifecycle
// operations.
type OperationalStore = iface.OperationalStore

// BalanceLedger exposes the balance accounting operations.
type BalanceLedger = iface.BalanceLedger

// Database is the full persistence surface of a coordinator node. Prefer
// a narrower interface from this package where one suffices.
type Database = iface.Database

// ErrBackupUnsupported is returned by Backup on backends that cannot
// produce a file backup.
var ErrBackupUnsupported = iface.ErrBackupUnsupported
