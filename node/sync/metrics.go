package sync

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	pendingTasks    prometheus.Gauge
	unassignedTasks prometheus.Gauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		pendingTasks = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "beam_node",
			Subsystem: "sync",
			Name:      "pending_tasks",
			Help:      "Total header/body tasks known to the scheduler, assigned or not",
		})
		unassignedTasks = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "beam_node",
			Subsystem: "sync",
			Name:      "unassigned_tasks",
			Help:      "Tasks awaiting assignment to a peer",
		})
	})
}
