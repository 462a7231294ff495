// Package memory implements the coordinator Database interface entirely
// in process memory. It backs the default development mode and the test
// suites; durability comes from the bolt store under db/kv.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ai4all-network/coordinator/coordinator/db/iface"
	"github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/ledger"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
)

var _ = iface.Database(&Store{})

// Store is the in-memory database. Every read hands back deep copies so
// callers can never reach through and mutate stored records.
type Store struct {
	lock sync.RWMutex

	evs         []*events.Event
	eventSlots  map[string]bool
	eventByHash map[string]*events.Event
	snapshots   map[string]*state.StateSnapshot
	states      map[string]*state.NetworkState
	assignments map[string][]*state.BlockAssignment
	submissions map[string][]*state.BlockSubmission
	nodeKeys    map[string][]byte
	heartbeats  map[string]int64
	devices     map[string][]*types.DeviceLink
	lifecycle   *types.DayLifecycle
	balances    map[string]*types.BalanceRow
	entries     map[string]*types.BalanceHistoryEntry
	rewardDays  map[string]bool
}

// NewStore returns an empty in-memory database.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.evs = make([]*events.Event, 0)
	s.eventSlots = make(map[string]bool)
	s.eventByHash = make(map[string]*events.Event)
	s.snapshots = make(map[string]*state.StateSnapshot)
	s.states = make(map[string]*state.NetworkState)
	s.assignments = make(map[string][]*state.BlockAssignment)
	s.submissions = make(map[string][]*state.BlockSubmission)
	s.nodeKeys = make(map[string][]byte)
	s.heartbeats = make(map[string]int64)
	s.devices = make(map[string][]*types.DeviceLink)
	s.lifecycle = nil
	s.balances = make(map[string]*types.BalanceRow)
	s.entries = make(map[string]*types.BalanceHistoryEntry)
	s.rewardDays = make(map[string]bool)
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// DatabasePath is empty for the memory store.
func (s *Store) DatabasePath() string { return "" }

// ClearDB drops everything.
func (s *Store) ClearDB() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reset()
	return nil
}

// Backup is unsupported without a durable backend.
func (s *Store) Backup(_ context.Context) error {
	return iface.ErrBackupUnsupported
}

func copyEvent(ev *events.Event) *events.Event {
	cp := deepcopy.Copy(*ev).(events.Event)
	return &cp
}

// AppendEvents appends a batch atomically: the batch is validated for
// slot collisions before anything is stored.
func (s *Store) AppendEvents(_ context.Context, evs []*events.Event) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, ev := range evs {
		if s.eventSlots[eventSlot(ev.DayID, ev.SequenceNumber)] {
			return errors.Errorf("event slot %s:%d already occupied", ev.DayID, ev.SequenceNumber)
		}
	}
	for _, ev := range evs {
		cp := copyEvent(ev)
		s.eventSlots[eventSlot(ev.DayID, ev.SequenceNumber)] = true
		s.eventByHash[ev.EventHash] = cp
		s.evs = append(s.evs, cp)
	}
	return nil
}

// EventsByDay returns the day's events in sequence order.
func (s *Store) EventsByDay(_ context.Context, dayID string) ([]*events.Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []*events.Event
	for _, ev := range s.evs {
		if ev.DayID == dayID {
			out = append(out, copyEvent(ev))
		}
	}
	return out, nil
}

// EventsByType filters by event type within the inclusive day range.
func (s *Store) EventsByType(_ context.Context, eventType, fromDay, toDay string) ([]*events.Event, error) {
	return s.filterEvents(func(ev *events.Event) bool {
		return ev.EventType == eventType && inDayRange(ev.DayID, fromDay, toDay)
	})
}

// EventsByActor filters by actor within the inclusive day range.
func (s *Store) EventsByActor(_ context.Context, actorID, fromDay, toDay string) ([]*events.Event, error) {
	return s.filterEvents(func(ev *events.Event) bool {
		return ev.ActorID == actorID && inDayRange(ev.DayID, fromDay, toDay)
	})
}

// EventsSince returns all events of every day >= sinceDay in order.
func (s *Store) EventsSince(_ context.Context, sinceDay string) ([]*events.Event, error) {
	return s.filterEvents(func(ev *events.Event) bool {
		return sinceDay == "" || ev.DayID >= sinceDay
	})
}

// filterEvents returns matches in (day, sequence) order, the same order
// a bolt cursor would walk them in.
func (s *Store) filterEvents(match func(*events.Event) bool) ([]*events.Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []*events.Event
	for _, ev := range s.evs {
		if match(ev) {
			out = append(out, copyEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayID != out[j].DayID {
			return out[i].DayID < out[j].DayID
		}
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out, nil
}

// LastEvent returns the chain head, the most recently appended event,
// or nil when the log is empty.
func (s *Store) LastEvent(_ context.Context) (*events.Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if len(s.evs) == 0 {
		return nil, nil
	}
	return copyEvent(s.evs[len(s.evs)-1]), nil
}

// LastEventForDay returns the day's newest event, or nil.
func (s *Store) LastEventForDay(_ context.Context, dayID string) (*events.Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out *events.Event
	for _, ev := range s.evs {
		if ev.DayID != dayID {
			continue
		}
		if out == nil || ev.SequenceNumber > out.SequenceNumber {
			out = ev
		}
	}
	if out == nil {
		return nil, nil
	}
	return copyEvent(out), nil
}

// EventByHash resolves an event by its chain hash, or nil.
func (s *Store) EventByHash(_ context.Context, eventHash string) (*events.Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	ev, ok := s.eventByHash[eventHash]
	if !ok {
		return nil, nil
	}
	return copyEvent(ev), nil
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

// SaveSnapshot persists the day's finalization snapshot.
func (s *Store) SaveSnapshot(_ context.Context, snap *state.StateSnapshot) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := *snap
	s.snapshots[snap.DayID] = &cp
	return nil
}

// Snapshot returns the day's snapshot, or nil.
func (s *Store) Snapshot(_ context.Context, dayID string) (*state.StateSnapshot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	snap, ok := s.snapshots[dayID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

// LatestSnapshot returns the newest snapshot, or nil.
func (s *Store) LatestSnapshot(_ context.Context) (*state.StateSnapshot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.latestSnapshotBefore(""), nil
}

// LatestSnapshotBefore returns the newest snapshot earlier than dayID,
// or nil.
func (s *Store) LatestSnapshotBefore(_ context.Context, dayID string) (*state.StateSnapshot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.latestSnapshotBefore(dayID), nil
}

func (s *Store) latestSnapshotBefore(dayID string) *state.StateSnapshot {
	best := ""
	for day := range s.snapshots {
		if dayID != "" && day >= dayID {
			continue
		}
		if day > best {
			best = day
		}
	}
	if best == "" {
		return nil
	}
	cp := *s.snapshots[best]
	return &cp
}

// SaveState persists the post-day network state blob.
func (s *Store) SaveState(_ context.Context, dayID string, st *state.NetworkState) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.states[dayID] = st.Copy()
	return nil
}

// State returns the post-day state blob, or nil.
func (s *Store) State(_ context.Context, dayID string) (*state.NetworkState, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	st, ok := s.states[dayID]
	if !ok {
		return nil, nil
	}
	return st.Copy(), nil
}

// SaveAssignments persists a day's assignment table.
func (s *Store) SaveAssignments(_ context.Context, dayID string, assignments []*state.BlockAssignment) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := make([]*state.BlockAssignment, 0, len(assignments))
	for _, a := range assignments {
		cp = append(cp, a.Copy())
	}
	s.assignments[dayID] = cp
	return nil
}

// AssignmentsByDay returns the day's assignment table.
func (s *Store) AssignmentsByDay(_ context.Context, dayID string) ([]*state.BlockAssignment, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	stored, ok := s.assignments[dayID]
	if !ok {
		return nil, nil
	}
	out := make([]*state.BlockAssignment, 0, len(stored))
	for _, a := range stored {
		out = append(out, a.Copy())
	}
	return out, nil
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

// AppendSubmissions appends to the day's arrival-ordered submission log.
func (s *Store) AppendSubmissions(_ context.Context, dayID string, subs []*state.BlockSubmission) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, sub := range subs {
		cp := *sub
		s.submissions[dayID] = append(s.submissions[dayID], &cp)
	}
	return nil
}

// SubmissionsByDay returns the day's submissions in arrival order.
func (s *Store) SubmissionsByDay(_ context.Context, dayID string) ([]*state.BlockSubmission, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	stored := s.submissions[dayID]
	out := make([]*state.BlockSubmission, 0, len(stored))
	for _, sub := range stored {
		cp := *sub
		out = append(out, &cp)
	}
	return out, nil
}

// SubmissionsByNode returns the account's submissions for the day.
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

// SaveNodeKey stores the account's registered public key.
func (s *Store) SaveNodeKey(_ context.Context, accountID string, pubKey []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := make([]byte, len(pubKey))
	copy(cp, pubKey)
	s.nodeKeys[accountID] = cp
	return nil
}

// NodeKey returns the account's registered public key, or nil.
func (s *Store) NodeKey(_ context.Context, accountID string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	stored, ok := s.nodeKeys[accountID]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(stored))
	copy(cp, stored)
	return cp, nil
}

// SaveHeartbeat records the account's last-seen unix time.
func (s *Store) SaveHeartbeat(_ context.Context, accountID string, unixTime int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.heartbeats[accountID] = unixTime
	return nil
}

// Heartbeat returns the account's last-seen unix time, or zero.
func (s *Store) Heartbeat(_ context.Context, accountID string) (int64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.heartbeats[accountID], nil
}

// SaveDeviceLink stores a paired device record.
func (s *Store) SaveDeviceLink(_ context.Context, link *types.DeviceLink) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := *link
	for i, existing := range s.devices[link.AccountID] {
		if existing.DeviceID == link.DeviceID {
			s.devices[link.AccountID][i] = &cp
			return nil
		}
	}
	s.devices[link.AccountID] = append(s.devices[link.AccountID], &cp)
	return nil
}

// DevicesByAccount returns the account's paired devices.
func (s *Store) DevicesByAccount(_ context.Context, accountID string) ([]*types.DeviceLink, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]*types.DeviceLink, 0, len(s.devices[accountID]))
	for _, link := range s.devices[accountID] {
		cp := *link
		out = append(out, &cp)
	}
	return out, nil
}

// SaveDayLifecycle persists the crash-recovery checkpoint.
func (s *Store) SaveDayLifecycle(_ context.Context, lc *types.DayLifecycle) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cp := deepcopy.Copy(*lc).(types.DayLifecycle)
	s.lifecycle = &cp
	return nil
}

// DayLifecycle returns the last persisted checkpoint, or nil.
func (s *Store) DayLifecycle(_ context.Context) (*types.DayLifecycle, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.lifecycle == nil {
		return nil, nil
	}
	cp := deepcopy.Copy(*s.lifecycle).(types.DayLifecycle)
	return &cp, nil
}

// CreditRewards applies a day's reward distribution, idempotent per day.
func (s *Store) CreditRewards(_ context.Context, dayID string, entries []*state.RewardEntry) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.rewardDays[dayID] {
		return false, nil
	}
	createdAt := timeutil.ISO(timeutil.Now())
	for _, e := range entries {
		s.creditLocked(e.AccountID, dayID, types.EntryTypeReward, ledger.ToMicro(e.TotalReward), createdAt)
	}
	s.rewardDays[dayID] = true
	return true, nil
}

// Credit applies one credit, idempotent per (account, day, entry type).
func (s *Store) Credit(_ context.Context, accountID, dayID string, entryType types.EntryType, amountMicro int64) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	key := entryKey(accountID, dayID, entryType)
	if _, exists := s.entries[key]; exists {
		return false, nil
	}
	s.creditLocked(accountID, dayID, entryType, amountMicro, timeutil.ISO(timeutil.Now()))
	return true, nil
}

func (s *Store) creditLocked(accountID, dayID string, entryType types.EntryType, amountMicro int64, createdAt string) {
	row, ok := s.balances[accountID]
	if !ok {
		row = &types.BalanceRow{AccountID: accountID}
		s.balances[accountID] = row
	}
	row.BalanceMicro += amountMicro
	row.TotalEarnedMicro += amountMicro
	if entryType == types.EntryTypeReward {
		row.LastRewardDay = dayID
	}
	s.entries[entryKey(accountID, dayID, entryType)] = &types.BalanceHistoryEntry{
		AccountID:         accountID,
		DayID:             dayID,
		EntryType:         entryType,
		AmountMicro:       amountMicro,
		BalanceAfterMicro: row.BalanceMicro,
		CreatedAt:         createdAt,
	}
}

// Balance returns the account's ledger row; never-credited accounts read
// as zero.
func (s *Store) Balance(_ context.Context, accountID string) (*types.BalanceRow, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	row, ok := s.balances[accountID]
	if !ok {
		return &types.BalanceRow{AccountID: accountID}, nil
	}
	cp := *row
	return &cp, nil
}

// BalanceHistory returns the account's credits, newest day first.
func (s *Store) BalanceHistory(_ context.Context, accountID string, limit int) ([]*types.BalanceHistoryEntry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]*types.BalanceHistoryEntry, 0)
	for key, entry := range s.entries {
		if strings.HasPrefix(key, accountID+":") {
			cp := *entry
			out = append(out, &cp)
		}
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

// Leaderboard returns the top accounts by total earned, descending.
func (s *Store) Leaderboard(_ context.Context, limit int) ([]*types.BalanceRow, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]*types.BalanceRow, 0, len(s.balances))
	for _, row := range s.balances {
		cp := *row
		out = append(out, &cp)
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
func (s *Store) TotalSupply(_ context.Context) (int64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var total int64
	for _, row := range s.balances {
		total += row.BalanceMicro
	}
	return total, nil
}

func eventSlot(dayID string, seq int64) string {
	return dayID + ":" + strconv.FormatInt(seq, 10)
}

func entryKey(accountID, dayID string, entryType types.EntryType) string {
	return accountID + ":" + dayID + ":" + string(entryType)
}

func inDayRange(dayID, fromDay, toDay string) bool {
	if fromDay != "" && dayID < fromDay {
		return false
	}
	if toDay != "" && dayID > toDay {
		return false
	}
	return true
}
