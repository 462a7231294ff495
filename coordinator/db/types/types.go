// Package types includes the persistence-level record types shared by
// the database backends: the balance ledger rows, the paired-device
// records and the day lifecycle checkpoint used for restart recovery.
package types

// EntryType labels the source of a ledger credit.
type EntryType string

// Ledger entry types. REWARD entries come from daily finalization;
// CRAWL and TASK entries come from out-of-band contribution credits.
const (
	EntryTypeReward EntryType = "REWARD"
	EntryTypeCrawl  EntryType = "CRAWL"
	EntryTypeTask   EntryType = "TASK"
)

// ValidEntryType reports whether t is a known ledger entry type.
func ValidEntryType(t EntryType) bool {
	switch t {
	case EntryTypeReward, EntryTypeCrawl, EntryTypeTask:
		return true
	default:
		return false
	}
}

// BalanceRow is an account's current ledger position. All amounts are
// integer micro-units (one token = 1_000_000 micro).
type BalanceRow struct {
	AccountID        string `json:"accountId"`
	BalanceMicro     int64  `json:"balanceMicro"`
	TotalEarnedMicro int64  `json:"totalEarnedMicro"`
	LastRewardDay    string `json:"lastRewardDay,omitempty"`
}

// BalanceHistoryEntry is one credit applied to an account.
type BalanceHistoryEntry struct {
	AccountID         string    `json:"accountId"`
	DayID             string    `json:"dayId"`
	EntryType         EntryType `json:"entryType"`
	AmountMicro       int64     `json:"amountMicro"`
	BalanceAfterMicro int64     `json:"balanceAfterMicro"`
	CreatedAt         string    `json:"createdAt"`
}

// DeviceLink binds a paired worker device to an account.
type DeviceLink struct {
	DeviceID        string `json:"deviceId"`
	AccountID       string `json:"accountId"`
	DeviceName      string `json:"deviceName"`
	DevicePublicKey string `json:"devicePublicKey"`
	Capabilities    string `json:"capabilities,omitempty"`
	PairedAt        string `json:"pairedAt"`
}

// DayLifecycle is the coordinator's crash-recovery checkpoint: enough of
// the live day context to resume an ACTIVE day after a restart.
type DayLifecycle struct {
	Phase          string   `json:"phase"`
	DayID          string   `json:"dayId,omitempty"`
	DayNumber      int64    `json:"dayNumber"`
	Seed           uint32   `json:"seed"`
	RosterHash     string   `json:"rosterHash,omitempty"`
	Roster         []string `json:"roster,omitempty"`
	CanaryBlockIDs []string `json:"canaryBlockIds,omitempty"`
	StartedAt      string   `json:"startedAt,omitempty"`
}
