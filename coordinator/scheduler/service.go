// Package scheduler runs the coordinator's daily clockwork: it starts
// the day shortly after midnight and finalizes it before the day ends,
// on cron schedules from the network config. Both jobs are safe to fire
// redundantly; a day already in the requested phase is simply skipped.
package scheduler

import (
	"context"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "scheduler")

var scheduledRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coordinator",
	Name:      "scheduler_runs_total",
	Help:      "Scheduled lifecycle runs by job and result.",
}, []string{"job", "result"})

// Lifecycle is the slice of the day service the scheduler drives.
type Lifecycle interface {
	StartDay(ctx context.Context, dayID string) (*day.StartResult, error)
	FinalizeDay(ctx context.Context, dayID string) (*day.FinalizeResult, error)
}

// Config options for the scheduler service.
type Config struct {
	Lifecycle    Lifecycle
	StartSpec    string
	FinalizeSpec string
	// Timezone the cron specs are evaluated in. Empty means UTC.
	Timezone string
}

// Service wraps a cron runner around the day lifecycle.
type Service struct {
	cfg        *Config
	ctx        context.Context
	cancel     context.CancelFunc
	cron       *cron.Cron
	startID    cron.EntryID
	finalizeID cron.EntryID
}

// NewService validates the cron specs and timezone and prepares the
// runner without starting it.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil || cfg.Lifecycle == nil {
		return nil, errors.New("scheduler requires a day lifecycle")
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load timezone %q", tz)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		cron:   cron.New(cron.WithLocation(loc)),
	}
	if s.startID, err = s.cron.AddFunc(cfg.StartSpec, s.runStart); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "could not schedule day start %q", cfg.StartSpec)
	}
	if s.finalizeID, err = s.cron.AddFunc(cfg.FinalizeSpec, s.runFinalize); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "could not schedule day finalize %q", cfg.FinalizeSpec)
	}
	return s, nil
}

// Start the cron runner.
func (s *Service) Start() {
	s.cron.Start()
	log.WithFields(logrus.Fields{
		"nextStart":    s.cron.Entry(s.startID).Next,
		"nextFinalize": s.cron.Entry(s.finalizeID).Next,
	}).Info("Day scheduler started")
}

// Stop the cron runner, waiting for any in-flight job to finish.
func (s *Service) Stop() error {
	s.cancel()
	<-s.cron.Stop().Done()
	return nil
}

// Status of the scheduler service.
func (s *Service) Status() error {
	return nil
}

func (s *Service) runStart() {
	res, err := s.cfg.Lifecycle.StartDay(s.ctx, "")
	switch {
	case errors.Is(err, day.ErrDayAlreadyActive), errors.Is(err, day.ErrDayFinalizing):
		scheduledRunsTotal.WithLabelValues("start", "skipped").Inc()
		log.Debug("Day already running, start skipped")
	case err != nil:
		scheduledRunsTotal.WithLabelValues("start", "error").Inc()
		log.WithError(err).Error("Could not start scheduled day")
	default:
		scheduledRunsTotal.WithLabelValues("start", "ok").Inc()
		log.WithFields(logrus.Fields{
			"day":    res.DayID,
			"roster": res.RosterSize,
			"blocks": res.TotalBlocks,
		}).Info("Scheduled day start completed")
	}
}

func (s *Service) runFinalize() {
	res, err := s.cfg.Lifecycle.FinalizeDay(s.ctx, "")
	switch {
	case errors.Is(err, day.ErrDayNotStarted):
		scheduledRunsTotal.WithLabelValues("finalize", "skipped").Inc()
		log.Debug("No day in progress, finalize skipped")
	case err != nil:
		scheduledRunsTotal.WithLabelValues("finalize", "error").Inc()
		log.WithError(err).Error("Could not finalize scheduled day")
	default:
		scheduledRunsTotal.WithLabelValues("finalize", "ok").Inc()
		log.WithFields(logrus.Fields{
			"day":       res.DayID,
			"dayNumber": res.DayNumber,
		}).Info("Scheduled day finalize completed")
	}
}
