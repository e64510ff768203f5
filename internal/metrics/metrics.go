// Package metrics exposes collection and resolution counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tweet_fetcher/internal/domain"
)

const namespace = "tweet_fetcher"

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	postsScanned    prometheus.Counter
	recordsAccepted prometheus.Counter
	postsSkipped    *prometheus.CounterVec
	unknownPlaces   prometheus.Counter
	resolutions     *prometheus.CounterVec
	backfilled      prometheus.Counter
}

// New creates the counters on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search page requests by outcome.",
		}, []string{"outcome"}),
		postsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_scanned_total",
			Help:      "Posts returned by the search endpoint.",
		}),
		recordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Records handed to storage.",
		}),
		postsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_skipped_total",
			Help:      "Posts dropped by the extractor or the day cap, by reason.",
		}, []string{"reason"}),
		unknownPlaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_places_total",
			Help:      "Geotagged posts whose place id was missing from the places table.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_resolutions_total",
			Help:      "Author location resolutions by outcome.",
		}, []string{"outcome"}),
		backfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_backfilled_total",
			Help:      "Stored records updated with a resolved author location.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.postsScanned,
		m.recordsAccepted,
		m.postsSkipped,
		m.unknownPlaces,
		m.resolutions,
		m.backfilled,
	)

	return m
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePage(stats domain.ExtractStats, capped int) {
	if m == nil {
		return
	}
	m.postsScanned.Add(float64(stats.Scanned))
	m.recordsAccepted.Add(float64(stats.Accepted - capped))
	m.postsSkipped.WithLabelValues("no_geo").Add(float64(stats.NoGeo))
	m.postsSkipped.WithLabelValues("no_coordinates").Add(float64(stats.NoCoordinates))
	m.postsSkipped.WithLabelValues("malformed").Add(float64(stats.Malformed))
	m.postsSkipped.WithLabelValues("day_cap").Add(float64(capped))
	m.unknownPlaces.Add(float64(stats.UnknownPlace))
}

func (m *Metrics) ObserveResolve(stats domain.ResolveStats) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues("resolved").Add(float64(stats.Resolved))
	m.resolutions.WithLabelValues("miss").Add(float64(stats.Missed))
	m.resolutions.WithLabelValues("empty").Add(float64(stats.Empty))
}

func (m *Metrics) ObserveBackfill(updated int64) {
	if m == nil {
		return
	}
	m.backfilled.Add(float64(updated))
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
