package metrics

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// DNS metrics
	DNSLookupsTotal   *prometheus.CounterVec
	DNSLookupDuration *prometheus.HistogramVec

	// Probe metrics
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec

	// CT source metrics
	CTQueriesTotal    *prometheus.CounterVec
	CTQueryDuration   prometheus.Histogram
	CTCandidatesTotal prometheus.Counter

	// Scan metrics
	FindingsTotal      *prometheus.CounterVec
	CandidatesTotal    *prometheus.CounterVec
	DuplicatesTotal    prometheus.Counter
	UnitsInFlight      prometheus.Gauge
	WorkerPanics       *prometheus.CounterVec
	QueueBackpressure  prometheus.Counter
	RateLimitWaitTotal prometheus.Histogram
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

func newMetrics() *Metrics {
	buckets := []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	return &Metrics{
		DNSLookupsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxsub_dns_lookups_total",
				Help: "DNS lookups by outcome",
			},
			[]string{"outcome"},
		),
		DNSLookupDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rxsub_dns_lookup_duration_seconds",
				Help:    "Time spent resolving a candidate",
				Buckets: buckets,
			},
			[]string{"outcome"},
		),
		ProbesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxsub_probes_total",
				Help: "HTTP probe attempts by scheme and status class",
			},
			[]string{"scheme", "class"},
		),
		ProbeDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rxsub_probe_duration_seconds",
				Help:    "Time spent on a single scheme attempt",
				Buckets: buckets,
			},
			[]string{"scheme"},
		),
		CTQueriesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxsub_ct_queries_total",
				Help: "Certificate transparency searches by outcome",
			},
			[]string{"outcome"},
		),
		CTQueryDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rxsub_ct_query_duration_seconds",
				Help:    "Time spent on a certificate transparency search",
				Buckets: buckets,
			},
		),
		CTCandidatesTotal: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "rxsub_ct_candidates_total",
				Help: "Candidate labels extracted from certificate transparency records",
			},
		),
		FindingsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxsub_findings_total",
				Help: "Findings inserted into the result set",
			},
			[]string{"source", "kind"},
		),
		CandidatesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxsub_candidates_dispatched_total",
				Help: "Candidates dispatched to workers",
			},
			[]string{"source"},
		),
		DuplicatesTotal: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "rxsub_duplicate_findings_total",
				Help: "Findings discarded because the FQDN was already present",
			},
		),
		UnitsInFlight: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "rxsub_units_in_flight",
				Help: "Resolve/probe units currently executing",
			},
		),
		WorkerPanics: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxsub_worker_panics_total",
				Help: "Total number of panics recovered by a worker",
			},
			[]string{"boundary"},
		),
		QueueBackpressure: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "rxsub_queue_backpressure_hits_total",
				Help: "Number of submissions that found the worker queue full",
			},
		),
		RateLimitWaitTotal: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rxsub_rate_limit_delay_seconds",
				Help:    "Time spent waiting due to rate limiting",
				Buckets: buckets,
			},
		),
	}
}

// Handler returns the router serving /metrics and /healthz.
func Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	metricsInitialized.Do(func() {
		GetMetrics()
		metricsServer = &http.Server{
			Addr:              addr,
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logrus.Infof("Starting metrics server on %s", addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Warnf("Metrics server error: %v", err)
			}
		}()
	})

	return nil
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer != nil {
		logrus.Debug("Shutting down metrics server...")
		return metricsServer.Shutdown(ctx)
	}
	return nil
}

// ObserveDNS records one resolution attempt.
func (m *Metrics) ObserveDNS(outcome string, d time.Duration) {
	if !metricsEnabled {
		return
	}
	m.DNSLookupsTotal.WithLabelValues(outcome).Inc()
	m.DNSLookupDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveProbe records one scheme attempt. status 0 means a transport error.
func (m *Metrics) ObserveProbe(scheme string, status int, d time.Duration) {
	if !metricsEnabled {
		return
	}
	m.ProbesTotal.WithLabelValues(scheme, StatusClass(status)).Inc()
	m.ProbeDuration.WithLabelValues(scheme).Observe(d.Seconds())
}

// ObserveCTQuery records one CT search and the number of labels it produced.
func (m *Metrics) ObserveCTQuery(outcome string, labels int, d time.Duration) {
	if !metricsEnabled {
		return
	}
	m.CTQueriesTotal.WithLabelValues(outcome).Inc()
	m.CTQueryDuration.Observe(d.Seconds())
	m.CTCandidatesTotal.Add(float64(labels))
}

// IncFinding counts an inserted finding. kind is "probed" or "dns_only".
func (m *Metrics) IncFinding(source, kind string) {
	if !metricsEnabled {
		return
	}
	m.FindingsTotal.WithLabelValues(source, kind).Inc()
}

// AddCandidates counts candidates dispatched for a source.
func (m *Metrics) AddCandidates(source string, n int) {
	if !metricsEnabled {
		return
	}
	m.CandidatesTotal.WithLabelValues(source).Add(float64(n))
}

// IncDuplicate counts a discarded duplicate finding.
func (m *Metrics) IncDuplicate() {
	if !metricsEnabled {
		return
	}
	m.DuplicatesTotal.Inc()
}

// IncPanic counts a recovered panic at the given boundary ("unit" or "worker").
func (m *Metrics) IncPanic(boundary string) {
	if !metricsEnabled {
		return
	}
	m.WorkerPanics.WithLabelValues(boundary).Inc()
}

// AddInFlight adjusts the in-flight unit gauge.
func (m *Metrics) AddInFlight(delta float64) {
	if !metricsEnabled {
		return
	}
	m.UnitsInFlight.Add(delta)
}

// IncBackpressure counts a submission that found its queue full.
func (m *Metrics) IncBackpressure() {
	if !metricsEnabled {
		return
	}
	m.QueueBackpressure.Inc()
}

// ObserveRateLimitWait records time a worker spent in its rate limiter.
func (m *Metrics) ObserveRateLimitWait(d time.Duration) {
	if !metricsEnabled {
		return
	}
	m.RateLimitWaitTotal.Observe(d.Seconds())
}

// StatusClass buckets an HTTP status into "2xx".."5xx", or "error" for 0.
func StatusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
