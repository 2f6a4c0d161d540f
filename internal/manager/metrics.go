package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generations by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	streamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatd",
			Subsystem: "generation",
			Name:      "stream_chunks_total",
			Help:      "Streamed text increments received from backends",
		},
		[]string{"backend"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatd",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time from request to finalize",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend", "outcome"},
	)

	generatingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatd",
			Subsystem: "generation",
			Name:      "active",
			Help:      "1 while a generation owns the session",
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, streamChunksTotal, generationDuration, generatingGauge)
}
