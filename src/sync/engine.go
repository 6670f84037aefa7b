package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/logger"
	"github.com/chainwatch/utxo-syncer/src/utils/monitoring"

	"github.com/sirupsen/logrus"
	"github.com/teivah/onecontext"
	"go.uber.org/atomic"
)

// Keeps the store in sync with the node, one block at a time.
// Pending transactions are ingested at start (backlog) and afterwards as they arrive.
type Engine struct {
	config   *config.Config
	log      *logrus.Entry
	node     Node
	store    SyncStore
	writer   *Writer
	ingestor *Ingestor
	notifier *Notifier
	monitor  monitoring.Monitor

	// Lifetime of the engine, independent of the context passed to Start
	parent context.Context

	// Serializes Start and Stop
	mtx sync.Mutex

	state  *atomic.Int32
	height *atomic.Int64

	// Guards unsubscribe
	subMtx      sync.Mutex
	unsubscribe func()

	stop chan struct{}
	done chan struct{}
}

func NewEngine(config *config.Config, node Node, decoder *bitcoin.Decoder, store SyncStore) (self *Engine) {
	self = new(Engine)
	self.config = config
	self.log = logger.NewSublogger("engine")
	self.node = node
	self.store = store
	self.parent = context.Background()

	self.state = atomic.NewInt32(int32(Stopped))
	self.height = atomic.NewInt64(0)

	self.writer = NewWriter()
	self.notifier = NewNotifier()
	self.ingestor = NewIngestor(self.writer, decoder, store, self.notifier)

	return
}

func (self *Engine) WithMonitor(monitor monitoring.Monitor) *Engine {
	self.monitor = monitor
	self.ingestor.WithMonitor(monitor)
	return self
}

// Main loop stops when this context is done
func (self *Engine) WithContext(ctx context.Context) *Engine {
	self.parent = ctx
	return self
}

func (self *Engine) Notifier() *Notifier {
	return self.notifier
}

func (self *Engine) Ingestor() *Ingestor {
	return self.ingestor
}

// Next block height the engine will fetch
func (self *Engine) CurrentHeight() int64 {
	return self.height.Load()
}

func (self *Engine) State() SyncState {
	return SyncState(self.state.Load())
}

func (self *Engine) setState(state SyncState) {
	self.state.Store(int32(state))
	if self.monitor != nil {
		self.monitor.GetReport().Syncer.State.SyncState.Store(state.String())
	}
}

func (self *Engine) setHeight(height int64) {
	self.height.Store(height)
	if self.monitor != nil {
		self.monitor.GetReport().Syncer.State.CurrentHeight.Store(height)
	}
}

// Drains the pending transactions backlog, subscribes to live pending transactions and starts the main loop.
// No-op if the engine is already starting or running. Doesn't wait for the main loop.
func (self *Engine) Start(ctx context.Context, initialHeight int64) (err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if !self.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		self.log.Debug("Already started")
		return nil
	}
	self.setState(Starting)

	defer func() {
		if err != nil {
			self.setState(Stopped)
		}
	}()

	// Merged context gets cancelled asynchronously
	err = ctx.Err()
	if err != nil {
		return
	}

	// Previous main loop has to finish before the cursor is reset
	if self.done != nil {
		select {
		case <-self.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	runCtx, cancel := onecontext.Merge(ctx, self.parent)

	self.setHeight(initialHeight)
	self.log.WithField("height", initialHeight).Info("Starting")

	err = self.drainBacklog(runCtx, ctx)
	if err != nil {
		cancel()
		return
	}

	self.stop = make(chan struct{})
	self.done = make(chan struct{})
	self.setState(Running)

	self.subMtx.Lock()
	self.unsubscribe = self.node.OnPendingTx(func(rawHex string) {
		self.onPendingTx(runCtx, rawHex)
	})
	self.subMtx.Unlock()

	go self.run(runCtx, cancel, self.stop, self.done)

	return nil
}

// Main loop exits after the current iteration. Live pending transactions aren't ingested anymore.
func (self *Engine) Stop() {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if SyncState(self.state.Swap(int32(Stopped))) != Running {
		return
	}
	self.setState(Stopped)

	self.log.Info("Stopping")
	self.unsubscribeLive()
	close(self.stop)
}

// Blocks till the main loop exits
func (self *Engine) Wait() {
	self.mtx.Lock()
	done := self.done
	self.mtx.Unlock()

	if done == nil {
		return
	}
	<-done
}

func (self *Engine) unsubscribeLive() {
	self.subMtx.Lock()
	defer self.subMtx.Unlock()

	if self.unsubscribe != nil {
		self.unsubscribe()
		self.unsubscribe = nil
	}
}

func (self *Engine) onPendingTx(ctx context.Context, rawHex string) {
	if self.State() != Running {
		return
	}

	tx, err := self.ingestor.Ingest(ctx, rawHex)
	if err != nil {
		self.logIngestFailure(err, "Failed to ingest pending transaction")
		return
	}

	self.log.WithField("hash", tx.Hash).WithField("idx", tx.SequenceIndex).Trace("Ingested pending transaction")
}

func (self *Engine) logIngestFailure(err error, msg string) {
	if errors.Is(err, ErrAlreadyIngested) {
		self.log.WithError(err).Debug(msg)
		return
	}
	self.log.WithError(err).Warn(msg)
}

// Best effort, failures of single transactions are skipped. Stops as soon as startCtx or the engine's context is done.
func (self *Engine) drainBacklog(ctx, startCtx context.Context) (err error) {
	hashes, err := self.node.GetRawMempool(ctx)
	if err != nil {
		self.log.WithError(err).Warn("Failed to get mempool, skipping backlog")
		hashes = nil
	} else if len(hashes) == 0 {
		// Nothing is pending, so whatever is stored as pending is stale
		err = self.store.PurgeUnconfirmed(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge unconfirmed transactions: %w", err)
		}
		if self.monitor != nil {
			self.monitor.GetReport().Syncer.State.StalePurges.Inc()
		}
	}

	err = self.reseed(ctx)
	if err != nil {
		return
	}

	self.log.WithField("count", len(hashes)).Info("Ingesting pending transactions backlog")

	for _, hash := range hashes {
		err = firstErr(startCtx, self.parent, ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStopped, err)
		}

		raw, err := self.node.GetRawTransaction(ctx, hash)
		if err != nil {
			self.log.WithError(err).WithField("hash", hash).Debug("Failed to download pending transaction")
			self.countBacklogFailure()
			continue
		}

		_, err = self.ingestor.Ingest(ctx, raw)
		if err != nil {
			self.logIngestFailure(err, "Failed to ingest backlog transaction")
			if !errors.Is(err, ErrAlreadyIngested) {
				self.countBacklogFailure()
			}
			continue
		}

		if self.monitor != nil {
			self.monitor.GetReport().Syncer.State.BacklogTransactions.Inc()
		}
	}

	return nil
}

func (self *Engine) countBacklogFailure() {
	if self.monitor != nil {
		self.monitor.GetReport().Syncer.Errors.BacklogFailures.Inc()
	}
}

// Sets the gate's counter to the highest stored sequence index.
// Watermark is read under the gate, so no ingest can slip in between.
func (self *Engine) reseed(ctx context.Context) (err error) {
	watermark, err := self.writer.Reseed(ctx, func() (int64, error) {
		return self.store.GetWatermark(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to reseed from watermark: %w", err)
	}

	if self.monitor != nil {
		self.monitor.GetReport().Syncer.State.LastWatermark.Store(watermark)
	}
	return
}

func (self *Engine) run(ctx context.Context, cancel context.CancelFunc, stop, done chan struct{}) {
	defer func() {
		// Unblocks live ingestion waiting for the gate
		cancel()

		// Loop exited on its own, e.g. context got cancelled
		if self.state.CompareAndSwap(int32(Running), int32(Stopped)) {
			self.setState(Stopped)
			self.unsubscribeLive()
		}

		self.log.Info("Main loop finished")
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		self.step(ctx, stop)
	}
}

// Single iteration: fetch, classify, act
func (self *Engine) step(ctx context.Context, stop chan struct{}) {
	defer func() {
		if p := recover(); p != nil {
			self.log.WithField("panic", p).Error("Panic in main loop, continuing")
		}
	}()

	height := self.height.Load()
	outcome := self.fetch(ctx, height)

	switch decide(outcome) {
	case ActionCommit:
		err := self.commit(ctx, outcome.Block)
		if err != nil {
			self.logFailure(ctx, height, err)
		}

	case ActionWait:
		self.log.WithField("height", height).Info("Awaiting block")
		if self.monitor != nil {
			self.monitor.GetReport().Syncer.State.AwaitingBlock.Inc()
		}
		self.sleep(ctx, stop, self.config.Syncer.BlockPollInterval)

	case ActionRollback:
		self.log.WithField("height", height).Warn("Reorg detected")
		if self.monitor != nil {
			self.monitor.GetReport().Syncer.State.Reorgs.Inc()
		}
		err := self.rollback(ctx, height)
		if err != nil {
			self.logFailure(ctx, height, err)
		}

	case ActionContinue:
		self.logFailure(ctx, height, outcome.Err)
	}
}

func (self *Engine) logFailure(ctx context.Context, height int64, err error) {
	if ctx.Err() != nil {
		// Shutting down
		return
	}

	log := self.log.WithError(err).WithField("height", height)
	if bitcoin.IsBenign(err) {
		log.Debug("Node isn't ready")
		if self.monitor != nil {
			self.monitor.GetReport().Syncer.Errors.BenignNodeErrors.Inc()
		}
		return
	}

	log.Error("Failed to sync block")
	if self.monitor != nil {
		self.monitor.GetReport().Syncer.Errors.NodeErrors.Inc()
	}
}

// Interrupted by stop
func (self *Engine) sleep(ctx context.Context, stop chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stop:
	case <-ctx.Done():
	}
}

func (self *Engine) fetch(ctx context.Context, height int64) Outcome {
	hash, err := self.node.GetBlockHash(ctx, height)
	if err != nil {
		if errors.Is(err, bitcoin.ErrNotFound) {
			return NotYetAvailable()
		}
		return Other(err)
	}

	if height > 0 {
		prevHash, err := self.node.GetBlockHash(ctx, height-1)
		if err != nil {
			return Other(err)
		}

		found, err := self.store.HasBlock(ctx, prevHash)
		if err != nil {
			return Other(self.dbError(err))
		}

		if !found {
			highest, err := self.store.GetHighestBlock(ctx)
			if err != nil {
				return Other(self.dbError(err))
			}

			// Empty store starts from any height
			if highest != nil {
				return Reorg()
			}
		}
	}

	block, err := self.node.GetBlock(ctx, hash, height)
	if err != nil {
		return Other(err)
	}

	return Ready(block)
}

func (self *Engine) dbError(err error) error {
	if self.monitor != nil {
		self.monitor.GetReport().Syncer.Errors.DbErrors.Inc()
	}
	return err
}

func (self *Engine) commit(ctx context.Context, block *bitcoin.Block) (err error) {
	stored, err := self.store.CommitBlock(ctx, block)
	if err != nil {
		return fmt.Errorf("failed to commit block: %w", self.dbError(err))
	}

	// Pending transactions included in the block aren't pending anymore
	err = self.reseed(ctx)
	if err != nil {
		return self.dbError(err)
	}

	height := self.height.Inc()
	if self.monitor != nil {
		self.monitor.GetReport().Syncer.State.CurrentHeight.Store(height)
		self.monitor.GetReport().Syncer.State.BlocksCommitted.Inc()
		self.monitor.GetReport().Syncer.State.LastCommitHeight.Store(block.Height)
	}

	self.log.WithField("height", block.Height).
		WithField("hash", block.Hash).
		WithField("num_txs", len(block.Transactions)).
		Info("Committed block")

	self.notifier.blockCommitted(stored)
	return nil
}

// Removes stored blocks that aren't in the node's chain anymore, walking down from height-1.
// Stops at the first block that matches the node or after MaxRollbackDepth blocks.
// Deeper reorgs are detected again in the next iterations.
func (self *Engine) rollback(ctx context.Context, height int64) (err error) {
	maxDepth := self.config.Syncer.MaxRollbackDepth
	if maxDepth < 1 {
		maxDepth = 1
	}

	from := height
	for n := height - 1; n >= 0 && height-n <= maxDepth; n-- {
		stored, err := self.store.GetBlockByNumber(ctx, n)
		if err != nil {
			return self.dbError(err)
		}

		if stored == nil {
			from = n
			continue
		}

		canonical, err := self.node.GetBlockHash(ctx, n)
		if err != nil && !errors.Is(err, bitcoin.ErrNotFound) {
			return err
		}

		if err == nil && canonical == stored.Hash {
			break
		}

		self.log.WithField("height", n).WithField("hash", stored.Hash).Warn("Block orphaned")
		from = n
	}

	err = self.store.Rollback(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to roll back from %d: %w", from, self.dbError(err))
	}

	highest, err := self.store.GetHighestBlock(ctx)
	if err != nil {
		return self.dbError(err)
	}

	var next int64
	if highest != nil {
		next = highest.Number + 1
	}

	self.log.WithField("from", from).WithField("height", next).Info("Rolled back")
	self.setHeight(next)
	return nil
}

func firstErr(ctxs ...context.Context) error {
	for _, ctx := range ctxs {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
