package rpc

import (
	"net/http"
	"strconv"

	dbtypes "github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/ledger"
	"github.com/gorilla/mux"
)

// Read-side paging bounds. History serves a worker's own ledger view,
// the leaderboard a public ranking, so their defaults differ.
const (
	defaultHistoryLimit     = 100
	maxHistoryLimit         = 1000
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// queryLimit parses the limit query parameter within (0, max],
// falling back to def when absent or malformed.
func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// AccountBalance returns the account's ledger row. Unknown accounts
// read as zero rather than 404: an account with no credits yet has a
// balance, and it is zero.
func (s *Service) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	row, err := s.cfg.Database.Balance(r.Context(), id)
	if err != nil {
		log.WithError(err).Error("Could not read balance")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, row)
}

// AccountHistoryResponse lists an account's credits, newest first.
type AccountHistoryResponse struct {
	AccountID string                         `json:"accountId"`
	Entries   []*dbtypes.BalanceHistoryEntry `json:"entries"`
}

// AccountHistory returns the account's credit history.
func (s *Service) AccountHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)
	entries, err := s.cfg.Database.BalanceHistory(r.Context(), id, limit)
	if err != nil {
		log.WithError(err).Error("Could not read balance history")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, &AccountHistoryResponse{AccountID: id, Entries: entries})
}

// LeaderboardResponse ranks accounts by total earned.
type LeaderboardResponse struct {
	Accounts []*dbtypes.BalanceRow `json:"accounts"`
}

// Leaderboard returns the top accounts by lifetime earnings.
func (s *Service) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLeaderboardLimit, maxLeaderboardLimit)
	rows, err := s.cfg.Database.Leaderboard(r.Context(), limit)
	if err != nil {
		log.WithError(err).Error("Could not read leaderboard")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, &LeaderboardResponse{Accounts: rows})
}

// SupplyResponse reports the circulating supply in both micro-units and
// whole tokens.
type SupplyResponse struct {
	TotalSupplyMicro  int64   `json:"totalSupplyMicro"`
	TotalSupplyTokens float64 `json:"totalSupplyTokens"`
}

// TotalSupply returns the sum of all credited balances.
func (s *Service) TotalSupply(w http.ResponseWriter, r *http.Request) {
	micro, err := s.cfg.Database.TotalSupply(r.Context())
	if err != nil {
		log.WithError(err).Error("Could not read total supply")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, &SupplyResponse{
		TotalSupplyMicro:  micro,
		TotalSupplyTokens: ledger.ToTokens(micro),
	})
}

// AccountDevicesResponse lists the devices paired to an account.
type AccountDevicesResponse struct {
	AccountID string                `json:"accountId"`
	Devices   []*dbtypes.DeviceLink `json:"devices"`
}

// AccountDevices returns the account's linked devices.
func (s *Service) AccountDevices(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	devices, err := s.cfg.Database.DevicesByAccount(r.Context(), id)
	if err != nil {
		log.WithError(err).Error("Could not read device links")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, &AccountDevicesResponse{AccountID: id, Devices: devices})
}
