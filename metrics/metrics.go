package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransactions   prometheus.Counter
	TransparentBlocks    prometheus.Counter
	TransparentHeight    prometheus.Gauge
	ShieldBlocksApplied  prometheus.Counter
	ShieldHeight         prometheus.Gauge
	ShieldBytesRead      prometheus.Counter
	TransactionsSent     prometheus.Counter
	SyncErrors           *prometheus.CounterVec
	MempoolNotifications prometheus.Counter

	initOnce sync.Once
)

// Init registers the wallet metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(initMetrics)
}

func initMetrics() {
	LedgerTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "ledger_transactions_added",
			Help:      "Number of new transactions inserted into the ledger",
		},
	)
	TransparentBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "transparent_blocks_scanned",
			Help:      "Number of transparent blocks scanned",
		},
	)
	TransparentHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wallet",
			Name:      "transparent_height",
			Help:      "Last transparent block height scanned",
		},
	)
	ShieldBlocksApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "shield_blocks_applied",
			Help:      "Number of shield blocks handed to the shield state",
		},
	)
	ShieldHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wallet",
			Name:      "shield_sync_height",
			Help:      "Last shield block height persisted",
		},
	)
	ShieldBytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "shield_stream_bytes_read",
			Help:      "Bytes consumed from the binary shield stream",
		},
	)
	TransactionsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "transactions_sent",
			Help:      "Number of transactions broadcast",
		},
	)
	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "sync_errors",
			Help:      "Number of sync round failures",
		},
		[]string{
			"kind", // transparent, shield, mempool
		},
	)
	MempoolNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "mempool_notifications",
			Help:      "Number of raw transactions received over zmq",
		},
	)
}
