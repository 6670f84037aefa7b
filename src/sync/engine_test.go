package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/model"
	monitor_syncer "github.com/chainwatch/utxo-syncer/src/utils/monitoring/syncer"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

type EngineTestSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	config  *config.Config
	node    *fakeNode
	store   *memStore
	monitor *monitor_syncer.Monitor
	engine  *Engine

	mtx       sync.Mutex
	committed []int64
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.config = config.Default()
	s.config.Syncer.BlockPollInterval = 20 * time.Millisecond
	s.config.Syncer.MaxRollbackDepth = 6

	decoder, err := bitcoin.NewDecoder("mainnet")
	require.Nil(s.T(), err)

	s.node = newFakeNode()
	s.store = newMemStore()
	s.monitor = monitor_syncer.NewMonitor(s.config)
	s.engine = NewEngine(s.config, s.node, decoder, s.store).
		WithMonitor(s.monitor).
		WithContext(s.ctx)

	s.committed = nil
	s.engine.Notifier().OnBlockCommitted(func(block *model.Block) {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		s.committed = append(s.committed, block.Number)
	})
}

func (s *EngineTestSuite) TearDownTest() {
	s.engine.Stop()
	s.engine.Wait()
	s.cancel()
}

func (s *EngineTestSuite) committedHeights() []int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]int64{}, s.committed...)
}

func (s *EngineTestSuite) TestCommitsAvailableBlocksThenWaits() {
	s.node.setChain("h0", "h1", "h2", "h3", "h4", "h5")

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))
	require.Equal(s.T(), Running, s.engine.State())

	require.Eventually(s.T(), func() bool {
		return len(s.committedHeights()) == 6
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(s.T(), []int64{0, 1, 2, 3, 4, 5}, s.committedHeights())
	require.Equal(s.T(), int64(6), s.engine.CurrentHeight())

	// Block 6 is absent, engine keeps asking after the backoff
	require.Eventually(s.T(), func() bool {
		return s.node.getBlockHashCalls(6) >= 3
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(s.T(), int64(6), s.engine.CurrentHeight())
	require.Equal(s.T(), []string{"h0", "h1", "h2", "h3", "h4", "h5"}, s.store.blockHashes())
	require.Equal(s.T(), uint64(6), s.monitor.Report.Syncer.State.BlocksCommitted.Load())

	// New block gets picked up
	s.node.setChain("h0", "h1", "h2", "h3", "h4", "h5", "h6")
	require.Eventually(s.T(), func() bool {
		return s.engine.CurrentHeight() == 7
	}, 5*time.Second, 5*time.Millisecond)
}

func (s *EngineTestSuite) TestAbsentBlockDoesntAdvance() {
	s.config.Syncer.BlockPollInterval = time.Hour

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	require.Eventually(s.T(), func() bool {
		return s.node.getBlockHashCalls(0) == 1
	}, 5*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Equal(s.T(), 1, s.node.getBlockHashCalls(0))
	require.Equal(s.T(), int64(0), s.engine.CurrentHeight())

	// Stop interrupts the backoff
	done := make(chan struct{})
	go func() {
		s.engine.Stop()
		s.engine.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.T().Fatal("engine didn't stop")
	}
	require.Equal(s.T(), Stopped, s.engine.State())
}

func (s *EngineTestSuite) TestStartIsIdempotent() {
	_, raw := rawTx(s.T(), 1)
	s.node.addToMempool("a", raw)

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))
	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	require.Equal(s.T(), 1, s.node.mempoolCalls)
	require.Equal(s.T(), 1, s.node.subscriptions)
	require.Equal(s.T(), []int64{0}, s.store.pendingIndices())
}

func (s *EngineTestSuite) TestStopUnsubscribes() {
	require.Nil(s.T(), s.engine.Start(s.ctx, 0))
	require.Equal(s.T(), 1, s.node.numSubscribers())

	s.engine.Stop()
	s.engine.Wait()

	require.Equal(s.T(), Stopped, s.engine.State())
	require.Equal(s.T(), 0, s.node.numSubscribers())

	// Live events are ignored
	_, raw := rawTx(s.T(), 1)
	s.node.emit(raw)
	require.Empty(s.T(), s.store.pendingIndices())

	// Can be started again
	require.Nil(s.T(), s.engine.Start(s.ctx, 0))
	require.Equal(s.T(), Running, s.engine.State())
	require.Equal(s.T(), 1, s.node.numSubscribers())
}

func (s *EngineTestSuite) TestBacklogFailureIsolation() {
	_, first := rawTx(s.T(), 1)
	_, last := rawTx(s.T(), 2)
	s.node.addToMempool("first", first)
	s.node.addToMempool("malformed", "deadbeef")
	s.node.addToMempool("last", last)

	// Announced by the node, but gone before it got downloaded
	s.node.mtx.Lock()
	s.node.mempool = append(s.node.mempool, "gone")
	s.node.mtx.Unlock()

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	require.Equal(s.T(), []int64{0, 1}, s.store.pendingIndices())
	require.Equal(s.T(), uint64(2), s.monitor.Report.Syncer.Errors.BacklogFailures.Load())
	require.Equal(s.T(), uint64(2), s.monitor.Report.Syncer.State.BacklogTransactions.Load())
}

func (s *EngineTestSuite) TestEmptyMempoolPurgesStale() {
	s.store.txs["stale"] = &model.Transaction{Hash: "stale", SequenceIndex: 7, BlockNumber: model.Unconfirmed}

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	require.Equal(s.T(), 1, s.store.purges)
	require.Empty(s.T(), s.store.pendingIndices())
	require.Equal(s.T(), int64(-1), s.engine.writer.Last())
}

func (s *EngineTestSuite) TestBacklogContinuesFromWatermark() {
	s.store.txs["old"] = &model.Transaction{Hash: "old", SequenceIndex: 4, BlockNumber: model.Unconfirmed}

	_, raw := rawTx(s.T(), 1)
	s.node.addToMempool("new", raw)

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	require.Equal(s.T(), []int64{4, 5}, s.store.pendingIndices())
}

func (s *EngineTestSuite) TestLiveAndBacklogIndicesAreGapFree() {
	for i := 0; i < 10; i++ {
		hash, raw := rawTx(s.T(), uint32(i))
		s.node.addToMempool(hash, raw)
	}

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	var wg sync.WaitGroup
	for i := 10; i < 40; i++ {
		_, raw := rawTx(s.T(), uint32(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.node.emit(raw)
		}()
	}
	wg.Wait()

	// Duplicate of a backlog transaction
	_, raw := rawTx(s.T(), 3)
	s.node.emit(raw)

	indices := s.store.pendingIndices()
	require.Len(s.T(), indices, 40)
	for i, idx := range indices {
		require.Equal(s.T(), int64(i), idx)
	}
	require.Equal(s.T(), uint64(1), s.monitor.Report.Syncer.State.DuplicateTransactions.Load())
}

func (s *EngineTestSuite) TestCommitReseedsFromStorage() {
	_, raw := rawTx(s.T(), 1)
	s.node.addToMempool("pending", raw)
	s.node.setChain("h0")

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))
	require.Eventually(s.T(), func() bool {
		return s.engine.CurrentHeight() == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.Equal(s.T(), int64(0), s.engine.writer.Last())
	require.Equal(s.T(), int64(0), s.monitor.Report.Syncer.State.LastWatermark.Load())
}

func (s *EngineTestSuite) TestFetchDetectsReorg() {
	s.store.addBlocks("h0", "h1", "h2", "h3")
	s.node.setChain("h0", "h1", "h2", "x3", "x4")

	outcome := s.engine.fetch(s.ctx, 4)
	require.Equal(s.T(), OutcomeReorg, outcome.Kind)

	// Matching predecessor
	s.node.setChain("h0", "h1", "h2", "h3", "x4")
	outcome = s.engine.fetch(s.ctx, 4)
	require.Equal(s.T(), OutcomeReady, outcome.Kind)
	require.Equal(s.T(), "x4", outcome.Block.Hash)

	// Node doesn't have it yet
	outcome = s.engine.fetch(s.ctx, 5)
	require.Equal(s.T(), OutcomeNotYetAvailable, outcome.Kind)
}

func (s *EngineTestSuite) TestFetchBootstrapsEmptyStore() {
	s.node.setChain("h0", "h1", "h2")

	outcome := s.engine.fetch(s.ctx, 2)
	require.Equal(s.T(), OutcomeReady, outcome.Kind)
}

func (s *EngineTestSuite) TestFetchBenignNodeError() {
	s.node.hashErr = &bitcoin.RPCError{Code: bitcoin.CodeClientInWarmup, Message: "Loading block index..."}

	outcome := s.engine.fetch(s.ctx, 0)
	require.Equal(s.T(), OutcomeOther, outcome.Kind)
	require.True(s.T(), bitcoin.IsBenign(outcome.Err))
}

func (s *EngineTestSuite) TestRollbackKeepsMatchingPredecessor() {
	s.store.addBlocks("h0", "h1", "h2", "h3")

	// Node's view of block 3 agrees with the store at rollback time
	s.node.setChain("h0", "h1", "h2", "h3")

	require.Nil(s.T(), s.engine.rollback(s.ctx, 4))
	require.Equal(s.T(), int64(4), s.engine.CurrentHeight())
	require.Equal(s.T(), []string{"h0", "h1", "h2", "h3"}, s.store.blockHashes())
}

func (s *EngineTestSuite) TestRollbackRemovesOrphans() {
	s.store.addBlocks("h0", "h1", "h2", "h3")
	s.node.setChain("h0", "h1", "h2", "x3", "x4")

	require.Nil(s.T(), s.engine.rollback(s.ctx, 4))
	require.Equal(s.T(), int64(3), s.engine.CurrentHeight())
	require.Equal(s.T(), []string{"h0", "h1", "h2"}, s.store.blockHashes())
}

func (s *EngineTestSuite) TestRollbackWithShorterStore() {
	s.store.addBlocks("h0", "h1", "h2")
	s.node.setChain("h0", "h1", "h2", "x3", "x4")

	require.Nil(s.T(), s.engine.rollback(s.ctx, 4))
	require.Equal(s.T(), int64(3), s.engine.CurrentHeight())
	require.Equal(s.T(), []string{"h0", "h1", "h2"}, s.store.blockHashes())
}

func (s *EngineTestSuite) TestRollbackOfEverything() {
	s.store.addBlocks("h0", "h1")
	s.node.setChain("x0", "x1", "x2")

	require.Nil(s.T(), s.engine.rollback(s.ctx, 2))
	require.Equal(s.T(), int64(0), s.engine.CurrentHeight())
	require.Empty(s.T(), s.store.blockHashes())
}

func (s *EngineTestSuite) TestRollbackIsBounded() {
	s.config.Syncer.MaxRollbackDepth = 2
	s.store.addBlocks("h0", "h1", "h2", "h3", "h4")
	s.node.setChain("h0", "x1", "x2", "x3", "x4", "x5")

	// Two blocks per invocation
	require.Nil(s.T(), s.engine.rollback(s.ctx, 5))
	require.Equal(s.T(), int64(3), s.engine.CurrentHeight())

	require.Nil(s.T(), s.engine.rollback(s.ctx, 3))
	require.Equal(s.T(), int64(1), s.engine.CurrentHeight())
	require.Equal(s.T(), []string{"h0"}, s.store.blockHashes())
}

func (s *EngineTestSuite) TestRecoversFromReorg() {
	s.store.addBlocks("h0", "h1", "h2", "h3")
	s.node.setChain("h0", "h1", "h2", "x3", "x4", "x5")

	require.Nil(s.T(), s.engine.Start(s.ctx, 4))

	require.Eventually(s.T(), func() bool {
		return s.engine.CurrentHeight() == 6
	}, 5*time.Second, 5*time.Millisecond)

	require.Equal(s.T(), []int64{3, 4, 5}, s.committedHeights())
	require.Equal(s.T(), []string{"h0", "h1", "h2", "x3", "x4", "x5"}, s.store.blockHashes())
	require.Equal(s.T(), uint64(1), s.monitor.Report.Syncer.State.Reorgs.Load())
}

func (s *EngineTestSuite) TestStartWithCancelledContext() {
	_, raw := rawTx(s.T(), 1)
	s.node.addToMempool("a", raw)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.engine.Start(ctx, 0)
	require.ErrorIs(s.T(), err, context.Canceled)
	require.Equal(s.T(), Stopped, s.engine.State())
	require.Empty(s.T(), s.store.pendingIndices())
	require.Equal(s.T(), 0, s.node.numSubscribers())
}

func (s *EngineTestSuite) TestLiveIngestDuringReseedGetsNextIndex() {
	decoder, err := bitcoin.NewDecoder("mainnet")
	require.Nil(s.T(), err)

	store := &hookedStore{memStore: s.store}
	s.engine = NewEngine(s.config, s.node, decoder, store).
		WithMonitor(s.monitor).
		WithContext(s.ctx)

	require.Nil(s.T(), s.engine.Start(s.ctx, 0))

	for i := 0; i < 3; i++ {
		_, raw := rawTx(s.T(), uint32(i))
		s.node.emit(raw)
	}
	require.Equal(s.T(), []int64{0, 1, 2}, s.store.pendingIndices())

	// Live transaction arrives after the watermark got computed
	_, late := rawTx(s.T(), 3)
	done := make(chan struct{})
	store.setOnWatermark(func() {
		go func() {
			defer close(done)
			s.node.emit(late)
		}()
		time.Sleep(20 * time.Millisecond)
	})

	require.Nil(s.T(), s.engine.reseed(s.ctx))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.T().Fatal("live transaction wasn't ingested")
	}

	_, raw := rawTx(s.T(), 4)
	s.node.emit(raw)

	require.Equal(s.T(), []int64{0, 1, 2, 3, 4}, s.store.pendingIndices())
}

func (s *EngineTestSuite) TestStartCancelledDuringBacklog() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	for i := 0; i < 3; i++ {
		hash, raw := rawTx(s.T(), uint32(i))
		s.node.addToMempool(hash, raw)
	}
	s.node.onRawTx = cancel

	err := s.engine.Start(ctx, 0)
	require.ErrorIs(s.T(), err, ErrStopped)
	require.ErrorIs(s.T(), err, context.Canceled)
	require.Equal(s.T(), Stopped, s.engine.State())
	require.LessOrEqual(s.T(), len(s.store.pendingIndices()), 1)
	require.Equal(s.T(), 0, s.node.numSubscribers())
}
