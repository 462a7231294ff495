package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/ai4all-network/coordinator/coordinator/state"
)

// WorkRequest asks for the authenticated account's assignment. The
// optional day id pins the request to the day the worker believes is
// running.
type WorkRequest struct {
	AuthFields
	DayID string `json:"dayId,omitempty"`
}

// RequestWork returns the account's assignment for the active day.
func (s *Service) RequestWork(w http.ResponseWriter, r *http.Request) {
	var req WorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if e := s.authenticate(r.Context(), &req.AuthFields); e != nil {
		writeError(w, e)
		return
	}
	res, err := s.cfg.Day.WorkFor(r.Context(), req.AccountID, req.DayID)
	if err != nil {
		writeDayError(w, err)
		return
	}
	writeJson(w, res)
}

// SubmitWorkRequest carries a batch of completed block results.
type SubmitWorkRequest struct {
	AuthFields
	DayID       string                   `json:"dayId,omitempty"`
	Submissions []*state.BlockSubmission `json:"submissions"`
}

// SubmitWorkResponse returns one outcome per submission, in order.
type SubmitWorkResponse struct {
	Results []*day.SubmissionOutcome `json:"results"`
}

// SubmitWork runs a batch of submissions through the processor. The
// processor stamps the authenticated account onto every submission, so
// a worker cannot submit on another account's behalf.
func (s *Service) SubmitWork(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if e := s.authenticate(r.Context(), &req.AuthFields); e != nil {
		writeError(w, e)
		return
	}
	if len(req.Submissions) == 0 {
		handleError(w, "submissions are required", http.StatusBadRequest)
		return
	}
	outcomes, err := s.cfg.Day.SubmitWork(r.Context(), req.AccountID, req.DayID, req.Submissions)
	if err != nil {
		writeDayError(w, err)
		return
	}
	writeJson(w, &SubmitWorkResponse{Results: outcomes})
}
