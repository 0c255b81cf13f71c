package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviews", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels and refused stale fills."},
		[]string{"cache", "event"}, // event: hit|miss|set|stale|del
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "submitted_total", Help: "Reviews submitted, by moderation decision."},
		[]string{"status"},
	)
	Publishes = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "reviews", Name: "published_total", Help: "Reviews moved to published by the publish workflow."},
	)
	Materializations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reviews", Name: "top5_materializations_total", Help: "Top-5 cache recomputations."},
		[]string{"result"},
	)
	TxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reviews", Name: "tx_duration_seconds",
			Help:    "Store transaction duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"}, // result: commit|rollback
	)
)

// Serve exposes reg on a side port. Empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
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
	reg.MustRegister(HTTPRequests, HTTPLatency, CacheEvents, Submissions, Publishes, Materializations, TxDuration)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|stale|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSubmission(status string) { Submissions.WithLabelValues(status).Inc() }

func ObservePublish() { Publishes.Inc() }

func ObserveMaterialization(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Materializations.WithLabelValues(result).Inc()
}

func ObserveTx(result string, dur time.Duration) {
	TxDuration.WithLabelValues(result).Observe(dur.Seconds())
}
