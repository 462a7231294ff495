package state

import (
	"sort"

	"github.com/ai4all-network/coordinator/shared/hashutil"
	"github.com/mohae/deepcopy"
)

// NetworkState is the state projected from the event log: every
// registered contributor plus the monotonically increasing day number.
// The canonical-json hash of this struct is the stateHash committed at
// finalization, so nothing ephemeral (day context, caches) lives here.
type NetworkState struct {
	Contributors map[string]*Contributor `json:"contributors"`
	DayNumber    int64                   `json:"dayNumber"`
}

// NewNetworkState returns an empty state with day number zero.
func NewNetworkState() *NetworkState {
	return &NetworkState{
		Contributors: make(map[string]*Contributor),
	}
}

// Copy returns a deep copy of the state.
func (s *NetworkState) Copy() *NetworkState {
	cp := deepcopy.Copy(*s).(NetworkState)
	if cp.Contributors == nil {
		cp.Contributors = make(map[string]*Contributor)
	}
	for id, c := range cp.Contributors {
		if c.CompletedBlocks == nil {
			c.CompletedBlocks = make([]*CompletedBlock, 0)
			cp.Contributors[id] = c
		}
	}
	return &cp
}

// Contributor returns the contributor for the given account, if any.
func (s *NetworkState) Contributor(accountID string) (*Contributor, bool) {
	c, ok := s.Contributors[accountID]
	return c, ok
}

// EnsureContributor returns the existing contributor for the account or
// adds and returns a fresh one.
func (s *NetworkState) EnsureContributor(accountID string) *Contributor {
	if c, ok := s.Contributors[accountID]; ok {
		return c
	}
	c := NewContributor(accountID)
	s.Contributors[accountID] = c
	return c
}

// AccountIDs returns the registered account ids in ascending order. This
// is the roster ordering used by the daily lottery.
func (s *NetworkState) AccountIDs() []string {
	ids := make([]string, 0, len(s.Contributors))
	for id := range s.Contributors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Hash returns the canonical-json hash of the state.
func (s *NetworkState) Hash() (string, error) {
	return hashutil.HashObject(s)
}
