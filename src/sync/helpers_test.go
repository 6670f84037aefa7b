package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/model"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// Serialized transaction spending <prev>:<seed> into one pay-to-pubkey-hash output
func rawTx(t *testing.T, seed uint32) (hash, raw string) {
	address, err := btcutil.NewAddressPubKeyHash(make([]byte, 20), &chaincfg.MainNetParams)
	require.Nil(t, err)
	script, err := txscript.PayToAddrScript(address)
	require.Nil(t, err)

	prev := chainhash.Hash{byte(seed), byte(seed >> 8), 1}

	msg := wire.NewMsgTx(wire.TxVersion)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, seed), nil, nil))
	msg.AddTxOut(wire.NewTxOut(int64(1000+seed), script))

	raw, err = bitcoin.EncodeTransaction(msg)
	require.Nil(t, err)

	return msg.TxHash().String(), raw
}

type fakeNode struct {
	mtx sync.Mutex

	// Canonical chain
	hashes map[int64]string

	mempool []string
	raw     map[string]string

	// Returned by getblockhash when set
	hashErr error

	// Called on each getrawtransaction
	onRawTx func()

	blockHashCalls map[int64]int
	mempoolCalls   int

	subscribers   map[int]func(string)
	nextSubId     int
	subscriptions int
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		hashes:         make(map[int64]string),
		raw:            make(map[string]string),
		blockHashCalls: make(map[int64]int),
		subscribers:    make(map[int]func(string)),
	}
}

func (self *fakeNode) setChain(hashes ...string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.hashes = make(map[int64]string)
	for i, hash := range hashes {
		self.hashes[int64(i)] = hash
	}
}

func (self *fakeNode) addToMempool(hash, raw string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.mempool = append(self.mempool, hash)
	self.raw[hash] = raw
}

func (self *fakeNode) GetBlockHash(ctx context.Context, height int64) (string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.blockHashCalls[height]++

	if self.hashErr != nil {
		return "", self.hashErr
	}

	hash, ok := self.hashes[height]
	if !ok {
		return "", fmt.Errorf("%w: block at height %d", bitcoin.ErrNotFound, height)
	}
	return hash, nil
}

func (self *fakeNode) GetBlock(ctx context.Context, hash string, height int64) (*bitcoin.Block, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	return &bitcoin.Block{
		Hash:      hash,
		Height:    height,
		PrevHash:  self.hashes[height-1],
		Timestamp: time.Unix(1231006505+height*600, 0),
		Transactions: []*bitcoin.Transaction{{
			Hash:    "coinbase-" + hash,
			Size:    100,
			Inputs:  []bitcoin.Input{{Coinbase: true}},
			Outputs: []bitcoin.Output{{Index: 0, Value: 5000000000, Address: "miner", Spendable: true}},
		}},
	}, nil
}

func (self *fakeNode) GetRawTransaction(ctx context.Context, hash string) (string, error) {
	if self.onRawTx != nil {
		self.onRawTx()
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	raw, ok := self.raw[hash]
	if !ok {
		return "", fmt.Errorf("%w: transaction %s", bitcoin.ErrNotFound, hash)
	}
	return raw, nil
}

func (self *fakeNode) GetRawMempool(ctx context.Context) ([]string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.mempoolCalls++
	return append([]string{}, self.mempool...), nil
}

func (self *fakeNode) OnPendingTx(fn func(rawHex string)) (unsubscribe func()) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	id := self.nextSubId
	self.nextSubId++
	self.subscribers[id] = fn
	self.subscriptions++

	return func() {
		self.mtx.Lock()
		defer self.mtx.Unlock()
		delete(self.subscribers, id)
	}
}

// Delivers the transaction to subscribers, like the provider does
func (self *fakeNode) emit(raw string) {
	self.mtx.Lock()
	subscribers := make([]func(string), 0, len(self.subscribers))
	for _, fn := range self.subscribers {
		subscribers = append(subscribers, fn)
	}
	self.mtx.Unlock()

	for _, fn := range subscribers {
		fn(raw)
	}
}

func (self *fakeNode) numSubscribers() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.subscribers)
}

func (self *fakeNode) getBlockHashCalls(height int64) int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.blockHashCalls[height]
}

// In-memory store
type memStore struct {
	mtx    sync.Mutex
	txs    map[string]*model.Transaction
	blocks map[int64]*model.Block

	purges int
}

func newMemStore() *memStore {
	return &memStore{
		txs:    make(map[string]*model.Transaction),
		blocks: make(map[int64]*model.Block),
	}
}

func (self *memStore) addBlocks(hashes ...string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	for i, hash := range hashes {
		self.blocks[int64(i)] = &model.Block{Hash: hash, Number: int64(i)}
	}
}

func (self *memStore) blockHashes() (out []string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	numbers := make([]int64, 0, len(self.blocks))
	for number := range self.blocks {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	for _, number := range numbers {
		out = append(out, self.blocks[number].Hash)
	}
	return
}

// Sequence indices of pending transactions, ordered
func (self *memStore) pendingIndices() (out []int64) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	for _, tx := range self.txs {
		if tx.IsPending() {
			out = append(out, tx.SequenceIndex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return
}

func (self *memStore) GetWatermark(ctx context.Context) (int64, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	out := int64(-1)
	for _, tx := range self.txs {
		if tx.IsPending() && tx.SequenceIndex > out {
			out = tx.SequenceIndex
		}
	}
	return out, nil
}

func (self *memStore) InsertPending(ctx context.Context, tx *model.Transaction, created, spent []*model.Coin) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if _, ok := self.txs[tx.Hash]; ok {
		return ErrAlreadyIngested
	}
	self.txs[tx.Hash] = tx
	return nil
}

func (self *memStore) PurgeUnconfirmed(ctx context.Context) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.purges++
	for hash, tx := range self.txs {
		if tx.IsPending() {
			delete(self.txs, hash)
		}
	}
	return nil
}

func (self *memStore) HasBlock(ctx context.Context, hash string) (bool, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	for _, block := range self.blocks {
		if block.Hash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (self *memStore) GetHighestBlock(ctx context.Context) (out *model.Block, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	for _, block := range self.blocks {
		if out == nil || block.Number > out.Number {
			out = block
		}
	}
	return
}

func (self *memStore) GetBlockByNumber(ctx context.Context, number int64) (*model.Block, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.blocks[number], nil
}

func (self *memStore) CommitBlock(ctx context.Context, block *bitcoin.Block) (*model.Block, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	out := &model.Block{
		Hash:      block.Hash,
		Number:    block.Height,
		PrevHash:  block.PrevHash,
		Timestamp: block.Timestamp.Unix(),
		TxCount:   len(block.Transactions),
	}
	self.blocks[block.Height] = out

	for i, tx := range block.Transactions {
		self.txs[tx.Hash] = &model.Transaction{
			Hash:          tx.Hash,
			SequenceIndex: int64(i),
			Size:          tx.Size,
			BlockNumber:   block.Height,
		}
	}
	return out, nil
}

func (self *memStore) Rollback(ctx context.Context, from int64) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	for number := range self.blocks {
		if number >= from {
			delete(self.blocks, number)
		}
	}
	for hash, tx := range self.txs {
		if tx.BlockNumber >= from {
			delete(self.txs, hash)
		}
	}
	return nil
}

// Runs a callback once, while the watermark is being read
type hookedStore struct {
	*memStore

	mtx         sync.Mutex
	onWatermark func()
}

func (self *hookedStore) setOnWatermark(fn func()) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.onWatermark = fn
}

func (self *hookedStore) GetWatermark(ctx context.Context) (int64, error) {
	watermark, err := self.memStore.GetWatermark(ctx)

	self.mtx.Lock()
	fn := self.onWatermark
	self.onWatermark = nil
	self.mtx.Unlock()

	if fn != nil {
		fn()
	}
	return watermark, err
}
