package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by type and terminal status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borgdesk_jobs_total",
			Help: "Total number of finished jobs",
		},
		[]string{"type", "status"},
	)

	// MountCleanupRuns counts cleanup passes by result.
	MountCleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "borgdesk_mount_cleanup_runs_total",
			Help: "Total number of mount cleanup passes",
		},
		[]string{"result"},
	)

	// JobDuration observes how long jobs run, by type.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "borgdesk_job_duration_seconds",
			Help:    "Job duration in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
		[]string{"type"},
	)
)

// RegisterActiveMounts exposes the active archive mount count as a gauge.
// The count function is polled at scrape time, so the gauge always reflects
// the mounts table regardless of how records were opened or closed.
func RegisterActiveMounts(reg prometheus.Registerer, count func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "borgdesk_active_mounts",
		Help: "Number of currently active archive mounts",
	}, count))
}
