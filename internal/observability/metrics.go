package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job metrics
var (
	JobsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_jobs_started_total",
			Help: "Total number of encoder processes spawned",
		},
		[]string{"kind"},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_jobs_finished_total",
			Help: "Total number of encoder processes that reached a terminal state",
		},
		[]string{"kind", "state"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoder_jobs_active",
			Help: "Number of contexts currently registered",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcoder_job_duration_seconds",
			Help:    "Wall time of encoder processes",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"kind"},
	)

	SlotAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_encoder_slot_acquisitions_total",
			Help: "Encoder slot assignments by accelerator",
		},
		[]string{"accelerator"},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_cache_hits_total",
			Help: "Requests answered from the artifact cache or an active context",
		},
		[]string{"source"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_cache_evictions_total",
			Help: "Cache artifacts removed by sweeps",
		},
		[]string{"reason"},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoder_cache_size_bytes",
			Help: "Size of the artifact cache after the last sweep",
		},
	)
)
