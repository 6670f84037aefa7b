package monitor_syncer

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/monitoring/report"
	"github.com/chainwatch/utxo-syncer/src/utils/task"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Source of the node's own view of the chain
type NodeInfoProvider interface {
	GetBlockchainInfo(ctx context.Context) (*bitcoin.BlockchainInfo, error)
}

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report report.Report

	historySize int

	collector *Collector

	node NodeInfoProvider

	// Processing speed, one sample per minute
	BlockHeights         *deque.Deque[int64]
	TransactionsIngested *deque.Deque[uint64]
}

func NewMonitor(config *config.Config) (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:            &report.RunReport{},
		Syncer:         &report.SyncerReport{},
		Node:           &report.NodeReport{},
		Mempool:        &report.MempoolReport{},
		RedisPublisher: &report.RedisPublisherReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())
	self.Report.Syncer.State.LastWatermark.Store(-1)
	self.Report.Syncer.State.LastCommitHeight.Store(-1)

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(config, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorBlocks).
		WithPeriodicSubtaskFunc(time.Minute, self.monitorTransactions).
		WithPeriodicSubtaskFunc(30*time.Second, self.monitorNode)

	return self.WithMaxHistorySize(30)
}

func (self *Monitor) WithMaxHistorySize(maxHistorySize int) *Monitor {
	self.historySize = maxHistorySize

	self.BlockHeights = deque.New[int64](self.historySize)
	self.TransactionsIngested = deque.New[uint64](self.historySize)

	return self
}

// Node queried for its height, optional
func (self *Monitor) WithNode(node NodeInfoProvider) *Monitor {
	self.node = node
	return self
}

func (self *Monitor) Clear() {
	self.BlockHeights.Clear()
	self.TransactionsIngested.Clear()
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure block processing speed
func (self *Monitor) monitorBlocks() (err error) {
	loaded := self.Report.Syncer.State.CurrentHeight.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.BlockHeights.PushBack(loaded)
	if self.BlockHeights.Len() > self.historySize {
		self.BlockHeights.PopFront()
	}
	value := float64(self.BlockHeights.Back()-self.BlockHeights.Front()) / float64(self.BlockHeights.Len())

	self.Report.Syncer.State.AverageBlocksProcessedPerMinute.Store(round(value))
	return
}

// Measure pending transaction ingestion speed
func (self *Monitor) monitorTransactions() (err error) {
	loaded := self.Report.Syncer.State.TransactionsIngested.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.TransactionsIngested.PushBack(loaded)
	if self.TransactionsIngested.Len() > self.historySize {
		self.TransactionsIngested.PopFront()
	}
	value := float64(self.TransactionsIngested.Back()-self.TransactionsIngested.Front()) / float64(self.TransactionsIngested.Len())

	self.Report.Syncer.State.AverageTransactionsIngestedPerMinute.Store(round(value))
	return
}

// Fetch the node's height, used to compute how far behind the syncer is.
// Failures never stop the monitor.
func (self *Monitor) monitorNode() (err error) {
	if self.node == nil {
		return
	}

	ctx, cancel := context.WithTimeout(self.Ctx, 30*time.Second)
	defer cancel()

	info, err := self.node.GetBlockchainInfo(ctx)
	if err != nil {
		self.Log.WithError(err).Debug("Failed to get blockchain info")
		self.Report.Node.Errors.InfoDownload.Inc()
		return nil
	}

	self.Report.Node.State.Chain.Store(info.Chain)
	self.Report.Node.State.Height.Store(info.Blocks)
	self.Report.Node.State.LastInfoTimestamp.Store(time.Now().Unix())
	self.updateBlocksBehind()
	return
}

func (self *Monitor) updateBlocksBehind() {
	nodeHeight := self.Report.Node.State.Height.Load()
	if nodeHeight == 0 {
		return
	}

	// Cursor points at the next block to fetch
	self.Report.Syncer.State.BlocksBehind.Store(nodeHeight + 1 - self.Report.Syncer.State.CurrentHeight.Load())
}

func (self *Monitor) IsOK() bool {
	now := time.Now().Unix()
	if now-self.Report.Run.State.StartTimestamp.Load() < 300 {
		return true
	}

	// Syncer is operational long enough, check stats
	if self.Report.Syncer.State.SyncState.Load() != "running" {
		return false
	}

	if self.Report.Syncer.State.BlocksBehind.Load() <= 2 {
		return true
	}

	// Catching up
	return self.Report.Syncer.State.AverageBlocksProcessedPerMinute.Load() > 0.1
}

func (self *Monitor) OnGetState(c *gin.Context) {
	// Fill data
	self.updateBlocksBehind()
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))

	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
