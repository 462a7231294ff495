package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ai4all-network/coordinator/coordinator/db"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/pkg/errors"
)

// DayRequest optionally pins a lifecycle transition to a day id. Start
// and finalize both default to the current day when the body is empty.
type DayRequest struct {
	DayID string `json:"dayId"`
}

func decodeDayRequest(r *http.Request) (*DayRequest, *ErrorJson) {
	req := &DayRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ErrorJson{Message: "could not decode request body", Code: http.StatusBadRequest}
	}
	if req.DayID != "" && !timeutil.ValidDayID(req.DayID) {
		return nil, &ErrorJson{Message: fmt.Sprintf("invalid day id %q", req.DayID), Code: http.StatusBadRequest}
	}
	return req, nil
}

// StartDay locks the roster and opens a day for submissions.
func (s *Service) StartDay(w http.ResponseWriter, r *http.Request) {
	req, e := decodeDayRequest(r)
	if e != nil {
		writeError(w, e)
		return
	}
	res, err := s.cfg.Day.StartDay(r.Context(), req.DayID)
	if err != nil {
		writeDayError(w, err)
		return
	}
	writeJson(w, res)
}

// FinalizeDay computes and commits the active day's rewards.
func (s *Service) FinalizeDay(w http.ResponseWriter, r *http.Request) {
	req, e := decodeDayRequest(r)
	if e != nil {
		writeError(w, e)
		return
	}
	res, err := s.cfg.Day.FinalizeDay(r.Context(), req.DayID)
	if err != nil {
		writeDayError(w, err)
		return
	}
	writeJson(w, res)
}

// AdminDayStatus reports the full operator status view.
func (s *Service) AdminDayStatus(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, s.cfg.Day.DayStatus())
}

// BackupResponse acknowledges a completed database backup.
type BackupResponse struct {
	Success bool `json:"success"`
}

// BackupDatabase writes a consistent copy of the durable store under the
// database directory. The memory backend cannot produce one.
func (s *Service) BackupDatabase(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Database.Backup(r.Context()); err != nil {
		if errors.Is(err, db.ErrBackupUnsupported) {
			handleError(w, err.Error(), http.StatusNotImplemented)
			return
		}
		log.WithError(err).Error("Could not back up database")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	writeJson(w, &BackupResponse{Success: true})
}
