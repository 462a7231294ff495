package day

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/pqsig"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/pkg/errors"
)

// RegisterResult reports the outcome of a registration request.
type RegisterResult struct {
	AccountID         string `json:"accountId"`
	AlreadyRegistered bool   `json:"alreadyRegistered"`
	// InActiveRoster reports whether the account is part of the roster of
	// the day currently running. Always false while no day is active.
	InActiveRoster bool `json:"inActiveRoster"`
}

// Register binds an account id to its public key and adds the contributor
// to the network. Allowed in every phase; an account registered while a
// day is ACTIVE joins from the next roster lock. Re-registering the same
// key is idempotent, re-registering under a different key fails.
func (s *Service) Register(ctx context.Context, accountID, publicKeyHex string) (*RegisterResult, error) {
	pubKey, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode public key")
	}
	if _, err := pqsig.PublicKeyFromBytes(pubKey); err != nil {
		return nil, errors.Wrap(err, "could not parse public key")
	}
	if pqsig.AddressFromPublicKey(pubKey) != accountID {
		return nil, ErrAddressMismatch
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	stored, err := s.cfg.Database.NodeKey(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up node key")
	}
	if stored != nil {
		if !bytes.Equal(stored, pubKey) {
			return nil, ErrKeyMismatch
		}
		return &RegisterResult{
			AccountID:         accountID,
			AlreadyRegistered: true,
			InActiveRoster:    s.day.Phase != state.PhaseIdle && s.day.InRoster(accountID),
		}, nil
	}

	now := s.cfg.Now()
	// Registrations during an active day are keyed under that day's id so
	// they stay visible to its replay projection; the calendar day only
	// applies while idle.
	eventDay := timeutil.DayID(now)
	if s.day.Phase != state.PhaseIdle {
		eventDay = s.day.DayID
	}
	batch := s.emitter.Begin()
	payload := events.NodeRegisteredPayload(accountID, publicKeyHex)
	if _, err := batch.Add(ctx, eventDay, events.TypeNodeRegistered, accountID, payload, now); err != nil {
		return nil, err
	}
	if err := s.appendBatch(ctx, batch); err != nil {
		return nil, err
	}
	s.netState.EnsureContributor(accountID)
	registeredContributorsGauge.Set(float64(len(s.netState.Contributors)))

	if err := s.cfg.Database.SaveNodeKey(ctx, accountID, pubKey); err != nil {
		// The registration event is already committed. A retry re-binds the
		// key and appends a second NODE_REGISTERED, which projects to the
		// same state.
		return nil, errors.Wrap(err, "could not persist node key")
	}
	log.WithField("account", accountID).Info("Registered new contributor")
	return &RegisterResult{AccountID: accountID}, nil
}

// Heartbeat records a liveness ping for the account.
func (s *Service) Heartbeat(ctx context.Context, accountID string) error {
	return s.cfg.Database.SaveHeartbeat(ctx, accountID, s.cfg.Now().Unix())
}

// LastHeartbeat returns the unix time of the account's most recent
// heartbeat, or zero when none was ever recorded.
func (s *Service) LastHeartbeat(ctx context.Context, accountID string) (int64, error) {
	return s.cfg.Database.Heartbeat(ctx, accountID)
}
