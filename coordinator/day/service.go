// Package day implements the coordinator's daily lifecycle: roster
// locking and deterministic assignment at day start, the authenticated
// submission pipeline while the day is active, and finalization with
// reward commitment. The service owns the single coordinator mutex; all
// mutations of the live day context and network state pass through it.
package day

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ai4all-network/coordinator/async"
	"github.com/ai4all-network/coordinator/coordinator/db"
	dbtypes "github.com/ai4all-network/coordinator/coordinator/db/types"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/event"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/patrickmn/go-cache"
	"github.com/paulbellamy/ratecounter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "day")

// Lifecycle and registration errors. The rpc layer maps these onto
// state-conflict responses.
var (
	// ErrDayNotStarted rejects operations that need an active day.
	ErrDayNotStarted = errors.New("no day is active")
	// ErrDayAlreadyActive rejects a second day/start.
	ErrDayAlreadyActive = errors.New("a day is already active")
	// ErrDayFinalizing rejects operations while finalization runs.
	ErrDayFinalizing = errors.New("the active day is finalizing")
	// ErrDayMismatch rejects submissions pinned to a different day.
	ErrDayMismatch = errors.New("day id does not match the active day")
	// ErrAddressMismatch rejects registrations whose account id is not
	// derived from the presented public key.
	ErrAddressMismatch = errors.New("account id does not match the public key")
	// ErrKeyMismatch rejects re-registration under a different key.
	ErrKeyMismatch = errors.New("account is already registered with a different key")
)

// ReasonRosterLocked is returned to accounts that registered after the
// day's roster was locked.
const ReasonRosterLocked = "ROSTER_LOCKED"

// Idempotency cache sizing: outcomes only need to survive the day they
// belong to, plus slack for clients retrying across midnight.
const (
	processedCacheTTL   = 48 * time.Hour
	processedCacheSweep = time.Hour
)

// Config options for the day service.
type Config struct {
	Database db.Database
	// EventFeed receives every committed event batch. Optional.
	EventFeed *event.Feed[events.Notification]
	// Now supplies the service clock; defaults to timeutil.Now. Tests pin
	// it to deterministic instants.
	Now func() time.Time
	// MaxRoutines fails the status check when the process leaks
	// goroutines past this bound. Zero disables the check.
	MaxRoutines int
}

// Service is the day lifecycle state machine.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc

	lock      sync.Mutex
	netState  *state.NetworkState
	day       *state.DayContext
	emitter   *events.Emitter
	processed *cache.Cache
	subRate   *ratecounter.RateCounter
}

// NewService initializes the day service from its configuration.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil || cfg.Database == nil {
		return nil, errors.New("day service requires a database")
	}
	if cfg.Now == nil {
		cfg.Now = timeutil.Now
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		netState:  state.NewNetworkState(),
		day:       state.NewDayContext(),
		emitter:   events.NewEmitter(cfg.Database, events.GenesisHash),
		processed: cache.New(processedCacheTTL, processedCacheSweep),
		subRate:   ratecounter.NewRateCounter(time.Minute),
	}, nil
}

// Start restores persisted state and resumes an interrupted day.
func (s *Service) Start() {
	if err := s.restore(s.ctx); err != nil {
		log.Fatalf("Could not restore coordinator state: %v", err)
	}
	if s.cfg.EventFeed != nil {
		go MonitorEventFeed(s.ctx, s.cfg.EventFeed)
	}
	async.RunEvery(s.ctx, gaugeRefreshInterval, s.updateGauges)
}

// Stop the day service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status of the day service.
func (s *Service) Status() error {
	if s.cfg.MaxRoutines > 0 && runtime.NumGoroutine() > s.cfg.MaxRoutines {
		return errors.Errorf("too many goroutines %d", runtime.NumGoroutine())
	}
	return nil
}

// appendBatch durably appends the batch, advances the emitter and fans
// the events out to subscribers. The append is the commit boundary: a
// failure here leaves the chain head untouched.
func (s *Service) appendBatch(ctx context.Context, b *events.Batch) error {
	if b.Empty() {
		return nil
	}
	if err := s.cfg.Database.AppendEvents(ctx, b.Events()); err != nil {
		return errors.Wrap(err, "could not append events")
	}
	s.emitter.Commit(b)
	if s.cfg.EventFeed != nil {
		s.cfg.EventFeed.Send(events.Notification{Batch: b.Events()})
	}
	return nil
}

// saveLifecycle checkpoints the live day context to the operational
// store so a restart can restore it.
func (s *Service) saveLifecycle(ctx context.Context) error {
	lc := &dbtypes.DayLifecycle{
		Phase:     string(s.day.Phase),
		DayID:     s.day.DayID,
		DayNumber: s.netState.DayNumber,
	}
	if s.day.Phase != state.PhaseIdle {
		lc.Seed = s.day.Seed
		lc.RosterHash = s.day.RosterHash
		lc.Roster = s.day.Roster
		lc.CanaryBlockIDs = sortedCanaries(s.day.CanaryBlockIDs)
		lc.StartedAt = timeutil.ISO(s.day.StartedAt)
	}
	return s.cfg.Database.SaveDayLifecycle(ctx, lc)
}

func idempotencyKey(accountID, blockID, dayID string) string {
	return accountID + ":" + blockID + ":" + dayID
}

func sortedCanaries(ids map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
