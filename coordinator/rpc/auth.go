package rpc

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/pqsig"
	"github.com/ai4all-network/coordinator/shared/timeutil"
)

// AuthPrefix versions the signed authentication message format.
const AuthPrefix = "AI4ALL:v1"

// AuthMessage is the byte string workers sign: the versioned prefix, the
// account id and the request timestamp, colon separated.
func AuthMessage(accountID, timestamp string) []byte {
	return []byte(AuthPrefix + ":" + accountID + ":" + timestamp)
}

// AuthFields is the authentication triplet carried in the body of every
// worker-originated request.
type AuthFields struct {
	AccountID string `json:"accountId"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
}

// checkTimestamp rejects auth timestamps outside the configured clock
// skew of server time. Stale timestamps bound how long a captured
// request can be replayed.
func (s *Service) checkTimestamp(timestamp string) *ErrorJson {
	ts, err := timeutil.ParseISO(timestamp)
	if err != nil {
		return &ErrorJson{Message: "could not parse timestamp", Code: http.StatusBadRequest}
	}
	skew := s.cfg.Now().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > params.CoordinatorConfig().AuthClockSkew {
		return &ErrorJson{Message: "timestamp is outside the accepted clock skew", Code: http.StatusUnauthorized}
	}
	return nil
}

// verifySignature checks a hex signature over msg against a raw public
// key.
func verifySignature(pubKey, msg []byte, sigHex string) *ErrorJson {
	pk, err := pqsig.PublicKeyFromBytes(pubKey)
	if err != nil {
		log.WithError(err).Error("Could not parse stored public key")
		return &ErrorJson{Message: internalErrorMsg, Code: http.StatusInternalServerError}
	}
	raw, err := hex.DecodeString(sigHex)
	if err != nil {
		return &ErrorJson{Message: "could not decode signature", Code: http.StatusBadRequest}
	}
	sig, err := pqsig.SignatureFromBytes(raw)
	if err != nil {
		return &ErrorJson{Message: err.Error(), Code: http.StatusBadRequest}
	}
	if !sig.Verify(pk, msg) {
		return &ErrorJson{Message: "invalid signature", Code: http.StatusUnauthorized}
	}
	return nil
}

// authenticate validates the auth triplet against the account's
// registered key. Registration is the one request authenticated against
// a presented key instead; see RegisterNode.
func (s *Service) authenticate(ctx context.Context, a *AuthFields) *ErrorJson {
	if a.AccountID == "" || a.Timestamp == "" || a.Signature == "" {
		return &ErrorJson{Message: "accountId, timestamp and signature are required", Code: http.StatusBadRequest}
	}
	if e := s.checkTimestamp(a.Timestamp); e != nil {
		return e
	}
	key, err := s.cfg.Database.NodeKey(ctx, a.AccountID)
	if err != nil {
		log.WithError(err).Error("Could not read node key")
		return &ErrorJson{Message: internalErrorMsg, Code: http.StatusInternalServerError}
	}
	if key == nil {
		return &ErrorJson{Message: "unknown account", Code: http.StatusUnauthorized}
	}
	return verifySignature(key, AuthMessage(a.AccountID, a.Timestamp), a.Signature)
}

// requireAdminKey guards the /admin subtree with the shared admin key
// header. With no key configured the subtree stays closed; day
// transitions then run through the scheduler only.
func (s *Service) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminKey == "" {
			handleError(w, "admin access is not configured", http.StatusForbidden)
			return
		}
		if r.Header.Get("X-Admin-Key") != s.cfg.AdminKey {
			handleError(w, "invalid admin key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
