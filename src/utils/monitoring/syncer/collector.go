package monitor_syncer

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// Run
	StartTimestamp *prometheus.Desc
	UpForSeconds   *prometheus.Desc

	// Node
	NodeHeight            *prometheus.Desc
	NodeLastInfoTimestamp *prometheus.Desc

	// Syncer
	CurrentHeight                        *prometheus.Desc
	BlocksBehind                         *prometheus.Desc
	BlocksCommitted                      *prometheus.Desc
	Reorgs                               *prometheus.Desc
	AwaitingBlock                        *prometheus.Desc
	LastWatermark                        *prometheus.Desc
	TransactionsIngested                 *prometheus.Desc
	DuplicateTransactions                *prometheus.Desc
	BacklogTransactions                  *prometheus.Desc
	StalePurges                          *prometheus.Desc
	AverageBlocksProcessedPerMinute      *prometheus.Desc
	AverageTransactionsIngestedPerMinute *prometheus.Desc

	// Mempool
	MempoolSize         *prometheus.Desc
	TransactionsEmitted *prometheus.Desc
	RedisMessages       *prometheus.Desc

	// Redis publisher
	MessagesPublished *prometheus.Desc

	// Errors
	NodeErrors                *prometheus.Desc
	BenignNodeErrors          *prometheus.Desc
	DbErrors                  *prometheus.Desc
	IngestFailures            *prometheus.Desc
	BacklogFailures           *prometheus.Desc
	NodeInfoDownloadErrors    *prometheus.Desc
	MempoolDownloadErrors     *prometheus.Desc
	TransactionDownloadErrors *prometheus.Desc
	RedisSubscribeErrors      *prometheus.Desc
	RedisPublishErrors        *prometheus.Desc
	RedisPersistentFailures   *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "utxo-syncer",
	}

	return &Collector{
		StartTimestamp: prometheus.NewDesc("start_timestamp", "", nil, labels),
		UpForSeconds:   prometheus.NewDesc("up_for_seconds", "", nil, labels),

		NodeHeight:            prometheus.NewDesc("node_height", "", nil, labels),
		NodeLastInfoTimestamp: prometheus.NewDesc("node_last_info_timestamp", "", nil, labels),

		CurrentHeight:                        prometheus.NewDesc("syncer_current_height", "", nil, labels),
		BlocksBehind:                         prometheus.NewDesc("syncer_blocks_behind", "", nil, labels),
		BlocksCommitted:                      prometheus.NewDesc("syncer_blocks_committed", "", nil, labels),
		Reorgs:                               prometheus.NewDesc("syncer_reorgs", "", nil, labels),
		AwaitingBlock:                        prometheus.NewDesc("syncer_awaiting_block", "", nil, labels),
		LastWatermark:                        prometheus.NewDesc("syncer_last_watermark", "", nil, labels),
		TransactionsIngested:                 prometheus.NewDesc("syncer_transactions_ingested", "", nil, labels),
		DuplicateTransactions:                prometheus.NewDesc("syncer_duplicate_transactions", "", nil, labels),
		BacklogTransactions:                  prometheus.NewDesc("syncer_backlog_transactions", "", nil, labels),
		StalePurges:                          prometheus.NewDesc("syncer_stale_purges", "", nil, labels),
		AverageBlocksProcessedPerMinute:      prometheus.NewDesc("average_blocks_processed_per_minute", "", nil, labels),
		AverageTransactionsIngestedPerMinute: prometheus.NewDesc("average_transactions_ingested_per_minute", "", nil, labels),

		MempoolSize:         prometheus.NewDesc("mempool_size", "", nil, labels),
		TransactionsEmitted: prometheus.NewDesc("mempool_transactions_emitted", "", nil, labels),
		RedisMessages:       prometheus.NewDesc("mempool_redis_messages", "", nil, labels),

		MessagesPublished: prometheus.NewDesc("redis_publisher_messages_published", "", nil, labels),

		// Errors
		NodeErrors:                prometheus.NewDesc("error_node", "", nil, labels),
		BenignNodeErrors:          prometheus.NewDesc("error_benign_node", "", nil, labels),
		DbErrors:                  prometheus.NewDesc("error_db", "", nil, labels),
		IngestFailures:            prometheus.NewDesc("error_ingest", "", nil, labels),
		BacklogFailures:           prometheus.NewDesc("error_backlog", "", nil, labels),
		NodeInfoDownloadErrors:    prometheus.NewDesc("error_node_info_download", "", nil, labels),
		MempoolDownloadErrors:     prometheus.NewDesc("error_mempool_download", "", nil, labels),
		TransactionDownloadErrors: prometheus.NewDesc("error_tx_download", "", nil, labels),
		RedisSubscribeErrors:      prometheus.NewDesc("error_redis_subscribe", "", nil, labels),
		RedisPublishErrors:        prometheus.NewDesc("error_redis_publish", "", nil, labels),
		RedisPersistentFailures:   prometheus.NewDesc("error_redis_publish_persistent", "", nil, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.StartTimestamp
	ch <- self.UpForSeconds

	ch <- self.NodeHeight
	ch <- self.NodeLastInfoTimestamp

	ch <- self.CurrentHeight
	ch <- self.BlocksBehind
	ch <- self.BlocksCommitted
	ch <- self.Reorgs
	ch <- self.AwaitingBlock
	ch <- self.LastWatermark
	ch <- self.TransactionsIngested
	ch <- self.DuplicateTransactions
	ch <- self.BacklogTransactions
	ch <- self.StalePurges
	ch <- self.AverageBlocksProcessedPerMinute
	ch <- self.AverageTransactionsIngestedPerMinute

	ch <- self.MempoolSize
	ch <- self.TransactionsEmitted
	ch <- self.RedisMessages

	ch <- self.MessagesPublished

	// Errors
	ch <- self.NodeErrors
	ch <- self.BenignNodeErrors
	ch <- self.DbErrors
	ch <- self.IngestFailures
	ch <- self.BacklogFailures
	ch <- self.NodeInfoDownloadErrors
	ch <- self.MempoolDownloadErrors
	ch <- self.TransactionDownloadErrors
	ch <- self.RedisSubscribeErrors
	ch <- self.RedisPublishErrors
	ch <- self.RedisPersistentFailures
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	r := &self.monitor.Report

	ch <- prometheus.MustNewConstMetric(self.StartTimestamp, prometheus.GaugeValue, float64(r.Run.State.StartTimestamp.Load()))
	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(r.Run.State.UpForSeconds.Load()))

	ch <- prometheus.MustNewConstMetric(self.NodeHeight, prometheus.GaugeValue, float64(r.Node.State.Height.Load()))
	ch <- prometheus.MustNewConstMetric(self.NodeLastInfoTimestamp, prometheus.GaugeValue, float64(r.Node.State.LastInfoTimestamp.Load()))

	ch <- prometheus.MustNewConstMetric(self.CurrentHeight, prometheus.GaugeValue, float64(r.Syncer.State.CurrentHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.BlocksBehind, prometheus.GaugeValue, float64(r.Syncer.State.BlocksBehind.Load()))
	ch <- prometheus.MustNewConstMetric(self.BlocksCommitted, prometheus.CounterValue, float64(r.Syncer.State.BlocksCommitted.Load()))
	ch <- prometheus.MustNewConstMetric(self.Reorgs, prometheus.CounterValue, float64(r.Syncer.State.Reorgs.Load()))
	ch <- prometheus.MustNewConstMetric(self.AwaitingBlock, prometheus.CounterValue, float64(r.Syncer.State.AwaitingBlock.Load()))
	ch <- prometheus.MustNewConstMetric(self.LastWatermark, prometheus.GaugeValue, float64(r.Syncer.State.LastWatermark.Load()))
	ch <- prometheus.MustNewConstMetric(self.TransactionsIngested, prometheus.CounterValue, float64(r.Syncer.State.TransactionsIngested.Load()))
	ch <- prometheus.MustNewConstMetric(self.DuplicateTransactions, prometheus.CounterValue, float64(r.Syncer.State.DuplicateTransactions.Load()))
	ch <- prometheus.MustNewConstMetric(self.BacklogTransactions, prometheus.CounterValue, float64(r.Syncer.State.BacklogTransactions.Load()))
	ch <- prometheus.MustNewConstMetric(self.StalePurges, prometheus.CounterValue, float64(r.Syncer.State.StalePurges.Load()))
	ch <- prometheus.MustNewConstMetric(self.AverageBlocksProcessedPerMinute, prometheus.GaugeValue, r.Syncer.State.AverageBlocksProcessedPerMinute.Load())
	ch <- prometheus.MustNewConstMetric(self.AverageTransactionsIngestedPerMinute, prometheus.GaugeValue, r.Syncer.State.AverageTransactionsIngestedPerMinute.Load())

	ch <- prometheus.MustNewConstMetric(self.MempoolSize, prometheus.GaugeValue, float64(r.Mempool.State.MempoolSize.Load()))
	ch <- prometheus.MustNewConstMetric(self.TransactionsEmitted, prometheus.CounterValue, float64(r.Mempool.State.TransactionsEmitted.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisMessages, prometheus.CounterValue, float64(r.Mempool.State.RedisMessages.Load()))

	ch <- prometheus.MustNewConstMetric(self.MessagesPublished, prometheus.CounterValue, float64(r.RedisPublisher.State.MessagesPublished.Load()))

	// Errors
	ch <- prometheus.MustNewConstMetric(self.NodeErrors, prometheus.CounterValue, float64(r.Syncer.Errors.NodeErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.BenignNodeErrors, prometheus.CounterValue, float64(r.Syncer.Errors.BenignNodeErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.DbErrors, prometheus.CounterValue, float64(r.Syncer.Errors.DbErrors.Load()))
	ch <- prometheus.MustNewConstMetric(self.IngestFailures, prometheus.CounterValue, float64(r.Syncer.Errors.IngestFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.BacklogFailures, prometheus.CounterValue, float64(r.Syncer.Errors.BacklogFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.NodeInfoDownloadErrors, prometheus.CounterValue, float64(r.Node.Errors.InfoDownload.Load()))
	ch <- prometheus.MustNewConstMetric(self.MempoolDownloadErrors, prometheus.CounterValue, float64(r.Mempool.Errors.MempoolDownload.Load()))
	ch <- prometheus.MustNewConstMetric(self.TransactionDownloadErrors, prometheus.CounterValue, float64(r.Mempool.Errors.TransactionDownload.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisSubscribeErrors, prometheus.CounterValue, float64(r.Mempool.Errors.RedisSubscribe.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisPublishErrors, prometheus.CounterValue, float64(r.RedisPublisher.Errors.Publish.Load()))
	ch <- prometheus.MustNewConstMetric(self.RedisPersistentFailures, prometheus.CounterValue, float64(r.RedisPublisher.Errors.PersistentFailure.Load()))
}
