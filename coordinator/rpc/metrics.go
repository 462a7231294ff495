package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "rpc_requests_total",
		Help:      "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})
	httpRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coordinator",
		Name:      "rpc_request_latency_seconds",
		Help:      "HTTP request latency, by route.",
		Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2.5},
	}, []string{"route"})
	distCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "distribution_cache_hit",
		Help:      "The number of reward distribution reads served from the cache.",
	})
	distCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coordinator",
		Name:      "distribution_cache_miss",
		Help:      "The number of reward distribution reads that missed the cache.",
	})
)

// instrumentHandler records request counts and latency per route
// template, so /accounts/{id}/balance aggregates as one series.
func (s *Service) instrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequestCount.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		httpRequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
