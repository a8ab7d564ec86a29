package scheduler

import (
	"github.com/amaumene/prunarr/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prunarr_runs_total",
		Help: "Removal runs by result.",
	}, []string{"result"})

	removalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prunarr_removals_total",
		Help: "Removal candidates by granularity and outcome.",
	}, []string{"granularity", "outcome"})

	freedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prunarr_freed_bytes_total",
		Help: "Bytes freed by removal runs.",
	})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prunarr_last_run_timestamp_seconds",
		Help: "Unix time the last removal run finished.",
	})
)

func recordRun(summary models.RunSummary, results []models.DeletionResult) {
	result := "success"
	if summary.Error != "" || summary.Failed > 0 {
		result = "error"
	}
	runsTotal.WithLabelValues(result).Inc()

	for _, r := range results {
		removalsTotal.WithLabelValues(string(r.Candidate.Granularity), string(r.Outcome)).Inc()
	}
	freedBytesTotal.Add(float64(summary.FreedBytes))
	lastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))
}
