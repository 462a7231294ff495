package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/ai4all-network/coordinator/shared/pqsig"
	"github.com/ai4all-network/coordinator/shared/version"
)

// RegisterRequest binds an account id to a public key.
type RegisterRequest struct {
	AuthFields
	PublicKey string `json:"publicKey"`
}

// RegisterNode registers a worker account. Registration is first
// contact, so the signature is verified against the presented key; every
// later request verifies against the key stored here.
func (s *Service) RegisterNode(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.PublicKey == "" || req.Timestamp == "" || req.Signature == "" {
		handleError(w, "accountId, publicKey, timestamp and signature are required", http.StatusBadRequest)
		return
	}
	pubKey, err := hex.DecodeString(req.PublicKey)
	if err != nil {
		handleError(w, "could not decode public key", http.StatusBadRequest)
		return
	}
	if _, err := pqsig.PublicKeyFromBytes(pubKey); err != nil {
		handleError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if pqsig.AddressFromPublicKey(pubKey) != req.AccountID {
		writeDayError(w, day.ErrAddressMismatch)
		return
	}
	if e := s.checkTimestamp(req.Timestamp); e != nil {
		writeError(w, e)
		return
	}
	if e := verifySignature(pubKey, AuthMessage(req.AccountID, req.Timestamp), req.Signature); e != nil {
		writeError(w, e)
		return
	}
	res, err := s.cfg.Day.Register(r.Context(), req.AccountID, req.PublicKey)
	if err != nil {
		writeDayError(w, err)
		return
	}
	writeJson(w, res)
}

// HeartbeatResponse tells the worker where the day lifecycle stands.
type HeartbeatResponse struct {
	OK    bool   `json:"ok"`
	DayID string `json:"dayId,omitempty"`
	Phase string `json:"phase"`
}

// NodeHeartbeat records worker liveness. Heartbeats are operational
// data only and never enter the event log.
func (s *Service) NodeHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req AuthFields
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if e := s.authenticate(r.Context(), &req); e != nil {
		writeError(w, e)
		return
	}
	if err := s.cfg.Day.Heartbeat(r.Context(), req.AccountID); err != nil {
		log.WithError(err).Error("Could not record heartbeat")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	st := s.cfg.Day.DayStatus()
	writeJson(w, &HeartbeatResponse{OK: true, DayID: st.DayID, Phase: st.Phase})
}

// HealthResponse is the day service liveness summary plus the build
// version.
type HealthResponse struct {
	*day.HealthStatus
	Version string `json:"version"`
}

// Health serves the public liveness endpoint.
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	writeJson(w, &HealthResponse{
		HealthStatus: s.cfg.Day.Health(),
		Version:      version.GetBuildData(),
	})
}
