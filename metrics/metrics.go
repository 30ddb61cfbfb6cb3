// Package metrics holds the Prometheus collectors for quest completions,
// reward oracle calls, logins, storage failures and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gami"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	questCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quests",
			Name:      "completions_total",
			Help:      "Quest completion attempts by mode and result.",
		},
		[]string{"mode", "result"},
	)

	oracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "decision_duration_seconds",
			Help:      "Duration of reward oracle decisions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"success"},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		},
		[]string{"result"},
	)

	storageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Storage failures by operation.",
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		questCompletions,
		oracleDuration,
		logins,
		storageErrors,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordQuestCompletion counts one completion attempt. mode is "onchain"
// or "record"; result is "success", "failed" or "rejected".
func RecordQuestCompletion(mode, result string) {
	questCompletions.WithLabelValues(mode, result).Inc()
}

// RecordOracleDecision observes one oracle call.
func RecordOracleDecision(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	oracleDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

// RecordLogin counts one login attempt.
func RecordLogin(success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	logins.WithLabelValues(result).Inc()
}

// RecordStorageError counts one failed storage operation.
func RecordStorageError(op string) {
	storageErrors.WithLabelValues(op).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses ids so label cardinality stays bounded:
// /api/quests/3/complete becomes /api/quests/:id/complete.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "quests" {
		parts[2] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}
