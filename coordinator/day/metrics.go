package day

import (
	"context"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registeredContributorsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coordinator",
		Name:      "registered_contributors",
		Help:      "Total number of registered contributor accounts.",
	})
	dayNumberGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coordinator",
		Name:      "day_number",
		Help:      "Monotonic network day number, advanced at finalization.",
	})
	dayPhaseGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coordinator",
		Name:      "day_phase",
		Help:      "Current day phase: 0 idle, 1 active, 2 finalizing.",
	})
	submissionsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "submissions_processed_total",
		Help:      "Block submissions run through the processor, by result.",
	}, []string{"result"})
	canaryChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "canary_checks_total",
		Help:      "Canary blocks detected among submissions, by outcome.",
	}, []string{"outcome"})
	daysFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "days_finalized_total",
		Help:      "Days successfully finalized since process start.",
	})
	eventsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "events_emitted_total",
		Help:      "Domain events durably appended to the log.",
	})
	pendingSubmissionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coordinator",
		Name:      "pending_submissions",
		Help:      "Submissions accepted for the active day and awaiting finalization.",
	})
	submissionRateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coordinator",
		Name:      "submissions_per_minute",
		Help:      "Block submissions observed over the trailing minute.",
	})
)

// gaugeRefreshInterval paces the periodic gauge resample in Start.
const gaugeRefreshInterval = 30 * time.Second

// updateGauges resamples the gauges that track in-memory day state
// rather than discrete processing steps.
func (s *Service) updateGauges() {
	s.lock.Lock()
	defer s.lock.Unlock()
	pendingSubmissionsGauge.Set(float64(len(s.day.PendingSubmissions)))
	submissionRateGauge.Set(float64(s.subRate.Rate()))
}

func setPhaseMetric(p state.Phase) {
	switch p {
	case state.PhaseActive:
		dayPhaseGauge.Set(1)
	case state.PhaseFinalizing:
		dayPhaseGauge.Set(2)
	default:
		dayPhaseGauge.Set(0)
	}
}

// MonitorEventFeed counts committed events as they fan out on the node's
// event feed. Runs until the context is canceled.
func MonitorEventFeed(ctx context.Context, feed *event.Feed[events.Notification]) {
	ch := make(chan events.Notification, 16)
	sub := feed.Subscribe(ch)
	defer sub.Unsubscribe()
	for {
		select {
		case n := <-ch:
			eventsEmittedTotal.Add(float64(len(n.Batch)))
		case <-ctx.Done():
			return
		}
	}
}
