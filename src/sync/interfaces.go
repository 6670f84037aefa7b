package sync

import (
	"context"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/model"
)

// Node calls used by the engine, implemented by bitcoin.Provider
type Node interface {
	GetBlockHash(ctx context.Context, height int64) (string, error)
	GetBlock(ctx context.Context, hash string, height int64) (*bitcoin.Block, error)
	GetRawTransaction(ctx context.Context, hash string) (string, error)
	GetRawMempool(ctx context.Context) ([]string, error)
	OnPendingTx(fn func(rawHex string)) (unsubscribe func())
}

type TransactionStore interface {
	// Highest sequence index among unconfirmed transactions, -1 if there are none
	GetWatermark(ctx context.Context) (int64, error)

	// Returns ErrAlreadyIngested if a transaction with the same hash exists
	InsertPending(ctx context.Context, tx *model.Transaction, created, spent []*model.Coin) error

	// Removes unconfirmed transactions and their coins
	PurgeUnconfirmed(ctx context.Context) error
}

type BlockStore interface {
	HasBlock(ctx context.Context, hash string) (bool, error)

	// Nil if there are no blocks
	GetHighestBlock(ctx context.Context) (*model.Block, error)

	// Nil if there's no block at this height
	GetBlockByNumber(ctx context.Context, number int64) (*model.Block, error)

	// Stores the block with its transactions and coins, evicts conflicting pending transactions
	CommitBlock(ctx context.Context, block *bitcoin.Block) (*model.Block, error)

	// Removes blocks with number >= from, their transactions and coins
	Rollback(ctx context.Context, from int64) error
}

// Everything the engine persists
type SyncStore interface {
	TransactionStore
	BlockStore
}
