package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewsync", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviewsync", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewsync", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"}, // status 0 = transport failure
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviewsync", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewsync", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	SyncLocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewsync", Name: "sync_locations_total", Help: "Per-location sync outcomes."},
		[]string{"provider", "outcome", "code"}, // outcome: success|skipped|failed
	)
	ReviewsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviewsync", Name: "reviews_written_total", Help: "Reviews written by the upsert engine."},
		[]string{"provider", "kind"}, // kind: inserted|updated
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "reviewsync", Name: "circuit_breaker_state", Help: "0 closed, 1 half-open, 2 open."},
		[]string{"name"},
	)
)

// Serve exposes reg on a side port; empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		SyncLocations, ReviewsWritten, BreakerState)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSyncLocation(provider, outcome, code string) {
	SyncLocations.WithLabelValues(provider, outcome, code).Inc()
}

func ObserveWrites(provider string, inserted, updated int) {
	ReviewsWritten.WithLabelValues(provider, "inserted").Add(float64(inserted))
	ReviewsWritten.WithLabelValues(provider, "updated").Add(float64(updated))
}

func SetBreakerState(name string, v float64) {
	BreakerState.WithLabelValues(name).Set(v)
}
