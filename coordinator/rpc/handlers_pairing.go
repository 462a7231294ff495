package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	dbtypes "github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/shared/pqsig"
	"github.com/ai4all-network/coordinator/shared/rand"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Pairing session states. A session that falls out of the TTL cache
// reads as EXPIRED regardless of the state it died in.
const (
	PairingPending   = "PENDING"
	PairingApproved  = "APPROVED"
	PairingCompleted = "COMPLETED"
	PairingExpired   = "EXPIRED"
)

// pairingSession is the transient server side of the device pairing
// handshake. Sessions live only in the TTL cache; completing a pairing
// persists nothing but the final device link row.
type pairingSession struct {
	PairingID        string
	DevicePublicKey  string
	DeviceName       string
	Capabilities     []string
	Status           string
	PairingCode      string
	VerificationCode string
	Challenge        string
	AccountID        string
	ExpiresAt        string
}

func pairingKey(id string) string { return "pairing:" + id }

func codeKey(code string) string { return "code:" + strings.ToUpper(code) }

// secureRand backs every pairing secret with CSPRNG randomness.
var secureRand = rand.NewGenerator()

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := secureRand.Read(b); err != nil {
		return nil, errors.Wrap(err, "could not read random bytes")
	}
	return b, nil
}

// newPairingCode returns the 8 character code the account holder types
// to approve a device.
func newPairingCode() (string, error) {
	b, err := randomBytes(4)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// newVerificationCode returns the 4 digit code shown on both ends so a
// user can confirm they are approving the device in front of them.
func newVerificationCode() string {
	return fmt.Sprintf("%04d", secureRand.Intn(10000))
}

// session returns the live pairing session for an id, or nil once it
// has expired out of the cache.
func (s *Service) session(id string) *pairingSession {
	v, ok := s.pairings.Get(pairingKey(id))
	if !ok {
		return nil
	}
	return v.(*pairingSession)
}

// sessionByCode resolves a pairing code through the code index.
func (s *Service) sessionByCode(code string) *pairingSession {
	v, ok := s.pairings.Get(codeKey(code))
	if !ok {
		return nil
	}
	return s.session(v.(string))
}

// StartPairingRequest opens a pairing session for a new device.
type StartPairingRequest struct {
	DevicePublicKey string   `json:"devicePublicKey"`
	DeviceName      string   `json:"deviceName"`
	Capabilities    []string `json:"capabilities,omitempty"`
}

// StartPairingResponse carries the codes the device displays to its
// owner.
type StartPairingResponse struct {
	Success          bool   `json:"success"`
	PairingID        string `json:"pairingId"`
	PairingCode      string `json:"pairingCode"`
	VerificationCode string `json:"verificationCode"`
	ExpiresAt        string `json:"expiresAt"`
}

// StartPairing opens a PENDING pairing session. Unauthenticated: the
// device has no account yet, that is the point of pairing. The session
// holds the device key; approval and completion bind it to an account.
func (s *Service) StartPairing(w http.ResponseWriter, r *http.Request) {
	var req StartPairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if req.DevicePublicKey == "" || req.DeviceName == "" {
		handleError(w, "devicePublicKey and deviceName are required", http.StatusBadRequest)
		return
	}
	keyBytes, err := hex.DecodeString(req.DevicePublicKey)
	if err != nil {
		handleError(w, "could not decode device public key", http.StatusBadRequest)
		return
	}
	if _, err := pqsig.PublicKeyFromBytes(keyBytes); err != nil {
		handleError(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := uuid.NewRandom()
	if err != nil {
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	pairingCode, err := newPairingCode()
	if err != nil {
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	verificationCode := newVerificationCode()
	sess := &pairingSession{
		PairingID:        id.String(),
		DevicePublicKey:  req.DevicePublicKey,
		DeviceName:       req.DeviceName,
		Capabilities:     req.Capabilities,
		Status:           PairingPending,
		PairingCode:      pairingCode,
		VerificationCode: verificationCode,
		ExpiresAt:        timeutil.ISO(s.cfg.Now().Add(pairingTTL)),
	}
	s.pairings.Set(pairingKey(sess.PairingID), sess, cache.DefaultExpiration)
	s.pairings.Set(codeKey(pairingCode), sess.PairingID, cache.DefaultExpiration)
	log.WithField("device", req.DeviceName).Info("Pairing session started")
	writeJson(w, &StartPairingResponse{
		Success:          true,
		PairingID:        sess.PairingID,
		PairingCode:      pairingCode,
		VerificationCode: verificationCode,
		ExpiresAt:        sess.ExpiresAt,
	})
}

// ApprovePairingRequest approves a pending session by its code.
type ApprovePairingRequest struct {
	AuthFields
	PairingCode string `json:"pairingCode"`
}

// ApprovePairingResponse confirms the approval.
type ApprovePairingResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	AccountID string `json:"accountId"`
}

// ApprovePairing binds the authenticated account to a pending session
// and issues the challenge the device must sign to complete.
func (s *Service) ApprovePairing(w http.ResponseWriter, r *http.Request) {
	var req ApprovePairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if e := s.authenticate(r.Context(), &req.AuthFields); e != nil {
		writeError(w, e)
		return
	}
	if req.PairingCode == "" {
		handleError(w, "pairingCode is required", http.StatusBadRequest)
		return
	}
	sess := s.sessionByCode(req.PairingCode)
	if sess == nil {
		handleError(w, "unknown or expired pairing code", http.StatusNotFound)
		return
	}
	challengeBytes, err := randomBytes(32)
	if err != nil {
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	s.pairingLock.Lock()
	if sess.Status != PairingPending {
		s.pairingLock.Unlock()
		handleError(w, "pairing is not pending approval", http.StatusConflict)
		return
	}
	sess.Status = PairingApproved
	sess.AccountID = req.AccountID
	sess.Challenge = hex.EncodeToString(challengeBytes)
	s.pairingLock.Unlock()
	log.WithField("accountId", req.AccountID).Info("Pairing approved")
	writeJson(w, &ApprovePairingResponse{Success: true, Status: PairingApproved, AccountID: req.AccountID})
}

// PairingStatusResponse is the device's polling view of its session.
// The challenge appears once the owner approves.
type PairingStatusResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Challenge string `json:"challenge,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

// PairingStatus reports where a session stands. A session the cache no
// longer holds reads as EXPIRED; the device restarts pairing from
// scratch.
func (s *Service) PairingStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.session(mux.Vars(r)["id"])
	if sess == nil {
		writeJson(w, &PairingStatusResponse{Success: false, Status: PairingExpired})
		return
	}
	s.pairingLock.Lock()
	resp := &PairingStatusResponse{
		Success:   true,
		Status:    sess.Status,
		Challenge: sess.Challenge,
		AccountID: sess.AccountID,
	}
	s.pairingLock.Unlock()
	writeJson(w, resp)
}

// CompletePairingRequest proves device key possession over the
// challenge.
type CompletePairingRequest struct {
	PairingID string `json:"pairingId"`
	Signature string `json:"signature"`
}

// CompletePairingResponse carries the persisted device link id.
type CompletePairingResponse struct {
	Success   bool   `json:"success"`
	DeviceID  string `json:"deviceId"`
	AccountID string `json:"accountId"`
}

// CompletePairing verifies the device's signature over the challenge
// bytes and persists the device link. Only this step writes anything
// durable.
func (s *Service) CompletePairing(w http.ResponseWriter, r *http.Request) {
	var req CompletePairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, "could not decode request body", http.StatusBadRequest)
		return
	}
	if req.PairingID == "" || req.Signature == "" {
		handleError(w, "pairingId and signature are required", http.StatusBadRequest)
		return
	}
	sess := s.session(req.PairingID)
	if sess == nil {
		handleError(w, "unknown or expired pairing session", http.StatusNotFound)
		return
	}
	s.pairingLock.Lock()
	status, challenge, accountID := sess.Status, sess.Challenge, sess.AccountID
	s.pairingLock.Unlock()
	if status != PairingApproved {
		handleError(w, "pairing is not approved", http.StatusConflict)
		return
	}
	challengeBytes, err := hex.DecodeString(challenge)
	if err != nil {
		log.WithError(err).Error("Could not decode stored challenge")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	keyBytes, err := hex.DecodeString(sess.DevicePublicKey)
	if err != nil {
		log.WithError(err).Error("Could not decode stored device key")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	if e := verifySignature(keyBytes, challengeBytes, req.Signature); e != nil {
		writeError(w, e)
		return
	}
	deviceID, err := uuid.NewRandom()
	if err != nil {
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	link := &dbtypes.DeviceLink{
		DeviceID:        deviceID.String(),
		AccountID:       accountID,
		DeviceName:      sess.DeviceName,
		DevicePublicKey: sess.DevicePublicKey,
		Capabilities:    strings.Join(sess.Capabilities, ","),
		PairedAt:        timeutil.ISO(s.cfg.Now()),
	}
	if err := s.cfg.Database.SaveDeviceLink(r.Context(), link); err != nil {
		log.WithError(err).Error("Could not persist device link")
		handleError(w, internalErrorMsg, http.StatusInternalServerError)
		return
	}
	s.pairingLock.Lock()
	sess.Status = PairingCompleted
	s.pairingLock.Unlock()
	log.WithFields(logrus.Fields{
		"accountId": accountID,
		"deviceId":  link.DeviceID,
	}).Info("Device paired")
	writeJson(w, &CompletePairingResponse{Success: true, DeviceID: link.DeviceID, AccountID: accountID})
}
