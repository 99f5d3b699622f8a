package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Render metrics
	rendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negproof_renders_total",
			Help: "Total number of render requests",
		},
		[]string{"engine", "status"}, // status: ok, error, canceled
	)

	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "negproof_render_duration_seconds",
			Help:    "Full render duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"engine"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "negproof_stage_duration_seconds",
			Help:    "Per-stage processing duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"},
	)

	// Stage cache metrics
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negproof_stage_cache_hits_total",
			Help: "Renders resumed from an intermediate cached stage",
		},
		[]string{"group"},
	)

	cacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "negproof_stage_cache_invalidations_total",
			Help: "Stage cache clears caused by a source change",
		},
	)

	// GPU fallback metrics
	gpuFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "negproof_gpu_fallbacks_total",
			Help: "Accelerated renders that fell back to the CPU engine",
		},
	)
)
