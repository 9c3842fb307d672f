package jobs

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghostd",
			Name:      "jobs_total",
			Help:      "Jobs settled, by terminal status",
		},
		[]string{"status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ghostd",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock job duration by terminal status",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	chunksProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ghostd",
		Name:      "chunks_processed_total",
		Help:      "Chunks separated successfully",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ghostd",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the worker queue",
	})
)

func init() {
	prometheus.MustRegister(jobsTotal, jobDuration, chunksProcessedTotal, queueDepth)
}
