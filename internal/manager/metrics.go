package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	slotLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ghostd",
		Subsystem: "slot",
		Name:      "loads_total",
		Help:      "Total successful model loads",
	})

	slotLoadErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ghostd",
		Subsystem: "slot",
		Name:      "load_errors_total",
		Help:      "Total failed model loads",
	})

	slotHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ghostd",
		Subsystem: "slot",
		Name:      "hits_total",
		Help:      "Total acquisitions served from the loaded slot",
	})

	slotEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghostd",
			Subsystem: "slot",
			Name:      "evictions_total",
			Help:      "Total slot evictions by reason",
		},
		[]string{"reason"},
	)

	slotLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ghostd",
		Subsystem: "slot",
		Name:      "load_duration_seconds",
		Help:      "Time to load a model into the slot",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

func init() {
	prometheus.MustRegister(slotLoadsTotal, slotLoadErrorsTotal, slotHitsTotal, slotEvictionsTotal, slotLoadDuration)
}
