// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "luckygrid"

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
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	picksReserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "picks_reserved_total",
		Help:      "Numbers successfully reserved.",
	})

	pickConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "pick_conflicts_total",
		Help:      "Insert attempts that lost a number to a concurrent claimant.",
	})

	allClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "all_numbers_claimed_total",
		Help:      "Pick requests where every requested number was already taken.",
	})

	criticalDebits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "critical_debit_failures_total",
		Help:      "Reservations whose commit outcome was lost. Requires reconciliation.",
	})

	gamesClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "games_closed_total",
		Help:      "Games transitioned to closed by the fill check.",
	})

	reveals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "reveals_total",
		Help:      "Games revealed, by whether a winner was found and how the number was chosen.",
	}, []string{"winner", "mode"})

	unresolvedReveals = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grid",
		Name:      "unresolved_reveals_total",
		Help:      "Reveals committed whose winner lookup failed. Requires reconciliation.",
	})

	sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cardpull",
		Name:      "sessions_started_total",
		Help:      "Card-pull sessions started.",
	})

	pulls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cardpull",
		Name:      "pulls_total",
		Help:      "Card pulls by drawn category.",
	}, []string{"category"})

	notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "messages_total",
		Help:      "Notification outcomes.",
	}, []string{"kind", "result"})

	outboxPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events published to the broker.",
	})
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		picksReserved,
		pickConflicts,
		allClaimed,
		criticalDebits,
		gamesClosed,
		reveals,
		unresolvedReveals,
		sessionsStarted,
		pulls,
		notifications,
		outboxPublished,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency labelled by chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func RecordPicksReserved(n int)   { picksReserved.Add(float64(n)) }
func RecordPickConflict()         { pickConflicts.Inc() }
func RecordAllClaimed()           { allClaimed.Inc() }
func RecordCriticalDebit()        { criticalDebits.Inc() }
func RecordGameClosed()           { gamesClosed.Inc() }
func RecordUnresolvedReveal()     { unresolvedReveals.Inc() }
func RecordSessionStarted()       { sessionsStarted.Inc() }
func RecordOutboxPublished(n int) { outboxPublished.Add(float64(n)) }

// RecordReveal counts a reveal. manual is true for admin-supplied numbers.
func RecordReveal(hasWinner, manual bool) {
	mode := "random"
	if manual {
		mode = "manual"
	}
	reveals.WithLabelValues(strconv.FormatBool(hasWinner), mode).Inc()
}

// RecordPull counts a card pull by category.
func RecordPull(category string) {
	pulls.WithLabelValues(category).Inc()
}

// RecordNotification counts a notification outcome: sent, failed, dropped,
// rejected or circuit_open.
func RecordNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
