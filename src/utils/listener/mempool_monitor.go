package listener

import (
	"sync"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/monitoring"
	"github.com/chainwatch/utxo-syncer/src/utils/task"

	"github.com/patrickmn/go-cache"
)

// Task that periodically polls the node's mempool and emits transactions it didn't see before.
// Transactions are downloaded in parallel but emitted in the order reported by the node.
type MempoolMonitor struct {
	*task.Task

	node    PendingTxNode
	monitor monitoring.Monitor

	// Hashes of already emitted transactions
	seen *cache.Cache
}

func NewMempoolMonitor(config *config.Config) (self *MempoolMonitor) {
	self = new(MempoolMonitor)

	self.seen = cache.New(config.Mempool.SeenTTL, config.Mempool.SeenTTL)

	self.Task = task.NewTask(config, "mempool-monitor").
		WithPeriodicSubtaskFunc(config.Mempool.Interval, self.runPeriodically).
		WithWorkerPool(config.Mempool.NumWorkers)

	return
}

func (self *MempoolMonitor) WithNode(node PendingTxNode) *MempoolMonitor {
	self.node = node
	return self
}

func (self *MempoolMonitor) WithMonitor(monitor monitoring.Monitor) *MempoolMonitor {
	self.monitor = monitor
	return self
}

func (self *MempoolMonitor) runPeriodically() error {
	hashes, err := self.node.GetRawMempool(self.Ctx)
	if err != nil {
		self.Log.WithError(err).Warn("Failed to get mempool")
		self.monitor.GetReport().Mempool.Errors.MempoolDownload.Inc()
		return nil
	}

	self.monitor.GetReport().Mempool.State.MempoolSize.Store(int64(len(hashes)))
	self.monitor.GetReport().Mempool.State.LastPollingTimestamp.Store(time.Now().Unix())

	fresh := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		if _, found := self.seen.Get(hash); !found {
			fresh = append(fresh, hash)
		}
	}

	if len(fresh) == 0 {
		return nil
	}

	self.Log.WithField("count", len(fresh)).Debug("New transactions in mempool")

	raws := self.download(fresh)

	for i, raw := range raws {
		if self.IsStopping.Load() {
			return nil
		}

		if raw == "" {
			// Download failed, retried in the next poll
			continue
		}

		self.seen.SetDefault(fresh[i], struct{}{})
		self.node.EmitPendingTx(raw)
		self.monitor.GetReport().Mempool.State.TransactionsEmitted.Inc()
	}

	return nil
}

// Empty string for transactions that couldn't be downloaded, e.g. already mined
func (self *MempoolMonitor) download(hashes []string) (raws []string) {
	raws = make([]string, len(hashes))

	var wg sync.WaitGroup
	for i, hash := range hashes {
		i, hash := i, hash
		wg.Add(1)
		submitted := self.SubmitToWorker(func() {
			defer wg.Done()

			raw, err := self.node.GetRawTransaction(self.Ctx, hash)
			if err != nil {
				self.Log.WithError(err).WithField("hash", hash).Debug("Failed to download pending transaction")
				self.monitor.GetReport().Mempool.Errors.TransactionDownload.Inc()
				return
			}
			raws[i] = raw
		})
		if !submitted {
			// Stopping, the rest is downloaded after restart
			wg.Done()
			break
		}
	}
	wg.Wait()

	return
}
