package mempool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	txAccepted      *prometheus.CounterVec
	fluffPoolSize   prometheus.Gauge
	stemPoolSize    prometheus.Gauge
	deferredListLen prometheus.Gauge
)

func initMetrics() {
	metricsOnce.Do(func() {
		txAccepted = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "beam_node",
				Subsystem: "mempool",
				Name:      "tx_results_total",
				Help:      "Count of OnTransaction outcomes by return code",
			},
			[]string{"code"},
		)
		fluffPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "beam_node",
			Subsystem: "mempool",
			Name:      "fluff_pool_size",
			Help:      "Current number of transactions in the fluff pool",
		})
		stemPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "beam_node",
			Subsystem: "mempool",
			Name:      "stem_pool_size",
			Help:      "Current number of transactions under Dandelion embargo",
		})
		deferredListLen = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "beam_node",
			Subsystem: "mempool",
			Name:      "deferred_list_size",
			Help:      "Current number of transactions deferred pending fast-sync",
		})
	})
}
