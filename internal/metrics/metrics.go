// Package metrics provides Prometheus metrics for dhdnssync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "dhdnssync"

var (
	// BuildInfo exposes version information as labels on a constant 1.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information for dhdnssync.",
	}, []string{"version", "go_version"})

	// ReconciliationsTotal counts reconciliation cycles by outcome
	// (success, error, aborted).
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reconciliations_total",
		Help:      "Total reconciliation cycles by outcome.",
	}, []string{"status"})

	ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "reconciliation_duration_seconds",
		Help:      "Duration of reconciliation cycles.",
		Buckets:   prometheus.DefBuckets,
	})

	LastReconciliationTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_reconciliation_timestamp_seconds",
		Help:      "Unix time of the last completed reconciliation cycle.",
	})

	RecordsDeclared = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "records_declared",
		Help:      "Number of records declared in configuration.",
	})

	RecordsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "records_live",
		Help:      "Number of records reported by the provider in the last cycle.",
	})

	RecordsAddedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_added_total",
		Help:      "Total records added at the provider.",
	}, []string{"zone"})

	RecordsRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_removed_total",
		Help:      "Total records removed at the provider.",
	}, []string{"zone"})

	RecordsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_skipped_total",
		Help:      "Total record phases that needed no change.",
	}, []string{"phase"})

	RecordsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_failed_total",
		Help:      "Total record phases that failed.",
	}, []string{"zone", "phase"})

	ProviderAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "provider_api_requests_total",
		Help:      "Total DreamHost API requests by command and status.",
	}, []string{"command", "status"})

	ProviderAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "provider_api_duration_seconds",
		Help:      "Duration of DreamHost API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})

	PublicIPLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "public_ip_lookups_total",
		Help:      "Total public address lookups by outcome.",
	}, []string{"status"})
)

// SetBuildInfo sets the build info gauge.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
