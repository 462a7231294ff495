// Package rpc serves the coordinator's HTTP/JSON boundary: worker
// registration and work traffic, the admin day lifecycle, reward and
// ledger reads, and the device pairing handshake. Handlers translate
// wire requests into day service and database calls; every domain
// decision stays behind those layers.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/ai4all-network/coordinator/coordinator/db"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/shared/event"
	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "rpc")

// Committed distributions are immutable, so the cache only needs to
// absorb reads spread over recent days.
const distCacheSize = 64

// Pairing sessions expire five minutes after start.
const (
	pairingTTL   = 5 * time.Minute
	pairingSweep = 10 * time.Minute
)

// Config options for the HTTP service.
type Config struct {
	Host     string
	Port     int
	AdminKey string
	// AllowedOrigins for CORS.
	AllowedOrigins []string
	Database       db.Database
	Day            *day.Service
	// EventFeed invalidates cached reward distributions when a day
	// finalizes. Optional.
	EventFeed *event.Feed[events.Notification]
	// Now supplies the service clock; defaults to timeutil.Now. Tests pin
	// it to deterministic instants.
	Now func() time.Time
}

// Service is the coordinator HTTP API server.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
	router *mux.Router
	server *http.Server
	// dists caches committed reward distributions by day id.
	dists *lru.Cache
	// pairings holds live pairing sessions by id plus a code index, both
	// expiring on the session TTL.
	pairings     *cache.Cache
	pairingLock  sync.Mutex
	startFailure error
}

// NewService initializes the HTTP service and registers its routes. The
// server does not listen until Start.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil || cfg.Database == nil || cfg.Day == nil {
		return nil, errors.New("rpc service requires a database and a day service")
	}
	if cfg.Now == nil {
		cfg.Now = timeutil.Now
	}
	dists, err := lru.New(distCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create distribution cache")
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		router:   mux.NewRouter(),
		dists:    dists,
		pairings: cache.New(pairingTTL, pairingSweep),
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.corsMiddleware(s.router),
	}
	return s, nil
}

func (s *Service) registerRoutes() {
	r := s.router
	r.Use(s.instrumentHandler)

	r.HandleFunc("/health", s.Health).Methods(http.MethodGet)

	r.HandleFunc("/nodes/register", s.RegisterNode).Methods(http.MethodPost)
	r.HandleFunc("/nodes/heartbeat", s.NodeHeartbeat).Methods(http.MethodPost)

	r.HandleFunc("/work/request", s.RequestWork).Methods(http.MethodPost)
	r.HandleFunc("/work/submit", s.SubmitWork).Methods(http.MethodPost)

	r.HandleFunc("/rewards/day", s.RewardsForDay).Methods(http.MethodGet)
	r.HandleFunc("/rewards/root", s.RewardRoot).Methods(http.MethodGet)
	r.HandleFunc("/rewards/proof", s.RewardProof).Methods(http.MethodGet)

	r.HandleFunc("/accounts/leaderboard", s.Leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/accounts/supply", s.TotalSupply).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/balance", s.AccountBalance).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/history", s.AccountHistory).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/devices", s.AccountDevices).Methods(http.MethodGet)

	r.HandleFunc("/pairing/start", s.StartPairing).Methods(http.MethodPost)
	r.HandleFunc("/pairing/approve", s.ApprovePairing).Methods(http.MethodPost)
	r.HandleFunc("/pairing/complete", s.CompletePairing).Methods(http.MethodPost)
	r.HandleFunc("/pairing/{id}/status", s.PairingStatus).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdminKey)
	admin.HandleFunc("/day/start", s.StartDay).Methods(http.MethodPost)
	admin.HandleFunc("/day/status", s.AdminDayStatus).Methods(http.MethodGet)
	admin.HandleFunc("/day/finalize", s.FinalizeDay).Methods(http.MethodPost)
	admin.HandleFunc("/db/backup", s.BackupDatabase).Methods(http.MethodPost)
}

// Start the HTTP server.
func (s *Service) Start() {
	if s.cfg.EventFeed != nil {
		go s.watchEventFeed()
	}
	go func() {
		log.WithField("address", s.server.Addr).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start HTTP server")
			s.startFailure = err
		}
	}()
}

// Status of the HTTP server. Returns an error if this service is
// unhealthy.
func (s *Service) Status() error {
	if s.startFailure != nil {
		return s.startFailure
	}
	return nil
}

// Stop the HTTP server with a graceful shutdown.
func (s *Service) Stop() error {
	if s.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer shutdownCancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("Existing connections terminated")
			} else {
				log.WithError(err).Error("Failed to gracefully shut down server")
			}
		}
	}
	s.cancel()
	return nil
}

// watchEventFeed drops cached distributions for days that finalize while
// the server runs, so a later read always reflects the committed log.
func (s *Service) watchEventFeed() {
	ch := make(chan events.Notification, 1)
	sub := s.cfg.EventFeed.Subscribe(ch)
	defer sub.Unsubscribe()
	for {
		select {
		case n := <-ch:
			s.invalidateFinalized(n)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) invalidateFinalized(n events.Notification) {
	for _, ev := range n.Batch {
		if ev.EventType == events.TypeDayFinalized {
			s.dists.Remove(ev.DayID)
		}
	}
}

func (s *Service) corsMiddleware(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
		MaxAge:           600,
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(h)
}
