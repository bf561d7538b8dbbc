// Package metrics exposes Prometheus instruments for the matching sweep and
// authority deliveries. Labels never carry identifiers or record content.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Group outcomes.
const (
	OutcomeNoMatch      = "no_match"
	OutcomeMatchedNew   = "matched_new"
	OutcomeMatchedKnown = "matched_known"
	OutcomeFailed       = "failed"
)

// Registry holds every instrument on its own Prometheus registry so tests
// can build independent instances.
type Registry struct {
	registry *prometheus.Registry

	SweepsTotal         prometheus.Counter
	SweepDuration       prometheus.Histogram
	GroupsTotal         *prometheus.CounterVec
	ProbesTotal         prometheus.Counter
	MatchesFoundTotal   prometheus.Counter
	NotificationsTotal  *prometheus.CounterVec
	DeliveriesTotal     *prometheus.CounterVec
	RehashedTotal       *prometheus.CounterVec
	DecryptFailureTotal prometheus.Counter
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.SweepsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "reportvault_matching_sweeps_total",
		Help: "Total number of matching sweeps",
	})
	r.SweepDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "reportvault_matching_sweep_duration_seconds",
		Help:    "Wall-clock duration of matching sweeps",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	r.GroupsTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "reportvault_matching_groups_total",
		Help: "Identifier groups processed, by outcome",
	}, []string{"outcome"})
	r.ProbesTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "reportvault_matching_probes_total",
		Help: "Decryption probes attempted against match reports",
	})
	r.MatchesFoundTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "reportvault_matching_matches_found_total",
		Help: "Newly discovered matches",
	})
	r.NotificationsTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "reportvault_notifications_total",
		Help: "Notifications sent, by template and status",
	}, []string{"template", "status"})
	r.DeliveriesTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "reportvault_authority_deliveries_total",
		Help: "Deliveries to the receiving authority, by kind and status",
	}, []string{"kind", "status"})
	r.RehashedTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "reportvault_records_rehashed_total",
		Help: "Records re-encrypted under current hasher defaults",
	}, []string{"kind"})
	r.DecryptFailureTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "reportvault_decrypt_failures_total",
		Help: "Failed report decryption attempts",
	})

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) RecordSweep(duration time.Duration) {
	r.SweepsTotal.Inc()
	r.SweepDuration.Observe(duration.Seconds())
}

func (r *Registry) RecordGroup(outcome string) {
	r.GroupsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeMatchedNew {
		r.MatchesFoundTotal.Inc()
	}
}

func (r *Registry) RecordProbes(n int) {
	r.ProbesTotal.Add(float64(n))
}

func (r *Registry) RecordNotification(template string, err error) {
	r.NotificationsTotal.WithLabelValues(template, status(err)).Inc()
}

func (r *Registry) RecordDelivery(kind string, err error) {
	r.DeliveriesTotal.WithLabelValues(kind, status(err)).Inc()
}

func (r *Registry) RecordRehash(kind string) {
	r.RehashedTotal.WithLabelValues(kind).Inc()
}

func (r *Registry) RecordDecryptFailure() {
	r.DecryptFailureTotal.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
