package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "condensate_pool_workers",
		Help: "Target worker count per pool",
	}, []string{"pool"})

	poolQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "condensate_pool_queue_depth",
		Help: "Tasks waiting for a worker",
	}, []string{"pool"})

	poolTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "condensate_pool_task_duration_seconds",
		Help:    "Task execution time by category",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"pool", "category"})

	poolTaskErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condensate_pool_task_errors_total",
		Help: "Tasks that returned an error or panicked",
	}, []string{"pool", "category"})

	poolResizes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condensate_pool_resizes_total",
		Help: "Resize events by direction",
	}, []string{"pool", "direction"})
)
