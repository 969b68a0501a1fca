package miner

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	blocksMined       prometheus.Counter
	restartsTotal     prometheus.Counter
	staleResultsTotal prometheus.Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		blocksMined = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "beam_node",
			Subsystem: "miner",
			Name:      "blocks_mined_total",
			Help:      "Count of solutions accepted by the chain",
		})
		restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "beam_node",
			Subsystem: "miner",
			Name:      "soft_restarts_total",
			Help:      "Count of template soft-restarts",
		})
		staleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "beam_node",
			Subsystem: "miner",
			Name:      "stale_external_results_total",
			Help:      "Count of external-solver results dropped for an unknown or evicted job",
		})
	})
}
