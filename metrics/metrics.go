package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chroma_jobs_total",
		Help: "Total number of jobs finished, by kind and status",
	}, []string{"kind", "status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chroma_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	FramesColorizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chroma_frames_colorized_total",
		Help: "Total number of video frames colorized across all jobs",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chroma_active_jobs",
		Help: "Number of jobs currently being processed",
	})

	UploadsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chroma_uploads_rejected_total",
		Help: "Uploads refused before processing, by reason",
	}, []string{"reason"})

	WorkDirsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chroma_workdirs_removed_total",
		Help: "Stale work directories removed by the janitor",
	})
)
