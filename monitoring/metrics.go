package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetsweep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skeetsweep_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skeetsweep_active_connections",
			Help: "Number of active connections",
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetsweep_runs_total",
			Help: "Total number of maintenance runs",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skeetsweep_run_duration_seconds",
			Help:    "Duration of maintenance runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetsweep_pages_fetched_total",
			Help: "Total number of pages fetched from the account's collections",
		},
		[]string{"collection"},
	)

	ItemsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetsweep_items_collected_total",
			Help: "Total number of items gathered from the account's collections",
		},
		[]string{"collection"},
	)

	PlannedMutations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skeetsweep_planned_mutations",
			Help: "Size of the most recent deletion plan",
		},
		[]string{"kind"},
	)

	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skeetsweep_mutations_total",
			Help: "Total number of executed mutations",
		},
		[]string{"kind", "outcome"},
	)

	ArchivedBlobs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skeetsweep_archived_blobs_total",
			Help: "Total number of blobs written to the local archive",
		},
	)

	ArchiveBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skeetsweep_archive_bytes_total",
			Help: "Total bytes written to the local archive",
		},
	)
)
