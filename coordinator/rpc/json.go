package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/pkg/errors"
)

// ErrorJson is the error body every endpoint returns. Reason carries a
// stable conflict code for clients to branch on; the message is for
// humans.
type ErrorJson struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
}

// Stable reason codes for lifecycle and registration conflicts.
const (
	ReasonDayNotStarted    = "DAY_NOT_STARTED"
	ReasonDayAlreadyActive = "DAY_ALREADY_ACTIVE"
	ReasonDayFinalizing    = "DAY_FINALIZING"
	ReasonDayMismatch      = "DAY_MISMATCH"
	ReasonAddressMismatch  = "ADDRESS_MISMATCH"
	ReasonKeyMismatch      = "KEY_MISMATCH"
)

const internalErrorMsg = "internal server error"

func writeJson(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Could not write response body")
	}
}

func writeError(w http.ResponseWriter, e *ErrorJson) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		log.WithError(err).Error("Could not write error body")
	}
}

func handleError(w http.ResponseWriter, message string, code int) {
	writeError(w, &ErrorJson{Message: message, Code: code})
}

func conflict(w http.ResponseWriter, err error, reason string) {
	writeError(w, &ErrorJson{Message: err.Error(), Code: http.StatusConflict, Reason: reason})
}

// writeDayError maps day service errors onto the wire: lifecycle and
// registration conflicts carry 409 with a stable reason, bad address
// derivation carries 400, anything else is internal.
func writeDayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, day.ErrDayNotStarted):
		conflict(w, err, ReasonDayNotStarted)
	case errors.Is(err, day.ErrDayAlreadyActive):
		conflict(w, err, ReasonDayAlreadyActive)
	case errors.Is(err, day.ErrDayFinalizing):
		conflict(w, err, ReasonDayFinalizing)
	case errors.Is(err, day.ErrDayMismatch):
		conflict(w, err, ReasonDayMismatch)
	case errors.Is(err, day.ErrKeyMismatch):
		conflict(w, err, ReasonKeyMismatch)
	case errors.Is(err, day.ErrAddressMismatch):
		writeError(w, &ErrorJson{Message: err.Error(), Code: http.StatusBadRequest, Reason: ReasonAddressMismatch})
	default:
		log.WithError(err).Error("Request failed")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
	}
}
