package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes.
const (
	outcomeValid  = "valid"
	outcomeMended = "mended"
	outcomeFailed = "failed"
)

var (
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsvmender_rows_total",
		Help: "Rows processed by profile and outcome",
	}, []string{"profile", "outcome"})

	mendCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dsvmender_mend_candidates",
		Help:    "Candidates scored per mended row",
		Buckets: []float64{1, 2, 5, 10, 50, 100, 500, 1000, 10000},
	})

	mendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dsvmender_mend_duration_seconds",
		Help:    "Time to read and mend one invalid row",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	})

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dsvmender_jobs_active",
		Help: "Repair jobs currently running",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsvmender_jobs_total",
		Help: "Finished repair jobs by profile and final status",
	}, []string{"profile", "status"})
)
