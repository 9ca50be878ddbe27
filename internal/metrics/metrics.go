// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Slot outcomes reported by the overwrite reconciler
const (
	SlotKept     = "kept"
	SlotReplaced = "replaced"
	SlotPartial  = "partial"
	SlotFailed   = "failed"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evidence_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_uploads_total",
			Help: "Evidence file uploads by result",
		},
		[]string{"result"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_upload_bytes_total",
			Help: "Bytes of evidence stored",
		},
	)

	Deletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_deletes_total",
			Help: "Evidence file deletions by result",
		},
		[]string{"result"},
	)

	ReconciledSlots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_reconciled_slots_total",
			Help: "Overwrite reconciler slots by outcome",
		},
		[]string{"outcome"},
	)

	ReclaimedOrphans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_reclaimed_orphans_total",
			Help: "Orphan files removed by the reclaimer",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_rate_limited_total",
			Help: "Upload requests rejected by the rate limiter",
		},
		[]string{"key"},
	)

	GhostFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_ghost_files_total",
			Help: "File rows removed because their blob was missing",
		},
	)
)

// Result maps an error to the success/failure label
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
