package sync

import (
	"context"
	"slices"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/logger"
	"github.com/chainwatch/utxo-syncer/src/utils/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Max number of values in a single IN (...) list
const maxInListSize = 1000

var _ SyncStore = (*Store)(nil)

// Postgres implementation of the transaction and block stores
type Store struct {
	config *config.Config
	log    *logrus.Entry
	db     *gorm.DB
}

func NewStore(config *config.Config) (self *Store) {
	self = new(Store)
	self.config = config
	self.log = logger.NewSublogger("store")
	return
}

func (self *Store) WithDB(db *gorm.DB) *Store {
	self.db = db
	return self
}

func (self *Store) batchSize() int {
	if self.config.Syncer.BatchSize <= 0 {
		return 500
	}
	return self.config.Syncer.BatchSize
}

func (self *Store) GetWatermark(ctx context.Context) (out int64, err error) {
	var txs []model.Transaction
	err = self.db.WithContext(ctx).
		Where("block_number = ?", model.Unconfirmed).
		Order("sequence_index DESC").
		Limit(1).
		Find(&txs).
		Error
	if err != nil {
		return
	}

	if len(txs) == 0 {
		return -1, nil
	}
	return txs[0].SequenceIndex, nil
}

func (self *Store) InsertPending(ctx context.Context, tx *model.Transaction, created, spent []*model.Coin) error {
	return self.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		result := dbTx.Clauses(clause.OnConflict{DoNothing: true}).Create(tx)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrAlreadyIngested
		}

		err := self.upsertCreatedCoins(dbTx, created)
		if err != nil {
			return err
		}

		return self.upsertSpentCoins(dbTx, spent)
	})
}

// Each kind of coin updates only its own columns, so the order of creation and spending doesn't matter
func (self *Store) upsertCreatedCoins(dbTx *gorm.DB, coins []*model.Coin) error {
	if len(coins) == 0 {
		return nil
	}

	return dbTx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tx_hash", "output_index", "address", "value", "block_number"}),
	}).
		CreateInBatches(coins, self.batchSize()).
		Error
}

func (self *Store) upsertSpentCoins(dbTx *gorm.DB, coins []*model.Coin) error {
	if len(coins) == 0 {
		return nil
	}

	return dbTx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"spent_tx_hash", "spent_block_number"}),
	}).
		CreateInBatches(coins, self.batchSize()).
		Error
}

func (self *Store) PurgeUnconfirmed(ctx context.Context) error {
	return self.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) (err error) {
		err = dbTx.Where("block_number = ?", model.Unconfirmed).Delete(&model.Transaction{}).Error
		if err != nil {
			return
		}

		err = dbTx.Where("block_number = ?", model.Unconfirmed).Delete(&model.Coin{}).Error
		if err != nil {
			return
		}

		return clearSpent(dbTx.Where("spent_block_number = ?", model.Unconfirmed))
	})
}

func clearSpent(dbTx *gorm.DB) error {
	return dbTx.Model(&model.Coin{}).
		Updates(map[string]any{
			"spent_tx_hash":      nil,
			"spent_block_number": nil,
		}).
		Error
}

func (self *Store) HasBlock(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := self.db.WithContext(ctx).
		Model(&model.Block{}).
		Where("hash = ?", hash).
		Count(&count).
		Error
	return count > 0, err
}

func (self *Store) GetHighestBlock(ctx context.Context) (*model.Block, error) {
	var blocks []*model.Block
	err := self.db.WithContext(ctx).
		Where("number >= 0").
		Order("number DESC").
		Limit(1).
		Find(&blocks).
		Error
	if err != nil || len(blocks) == 0 {
		return nil, err
	}
	return blocks[0], nil
}

func (self *Store) GetBlockByNumber(ctx context.Context, number int64) (*model.Block, error) {
	var blocks []*model.Block
	err := self.db.WithContext(ctx).
		Where("number = ?", number).
		Limit(1).
		Find(&blocks).
		Error
	if err != nil || len(blocks) == 0 {
		return nil, err
	}
	return blocks[0], nil
}

// Idempotent, committing the same block twice gives the same result
func (self *Store) CommitBlock(ctx context.Context, block *bitcoin.Block) (out *model.Block, err error) {
	out = &model.Block{
		Hash:      block.Hash,
		Number:    block.Height,
		PrevHash:  block.PrevHash,
		Timestamp: block.Timestamp.Unix(),
		TxCount:   len(block.Transactions),
	}

	txs := make([]*model.Transaction, 0, len(block.Transactions))
	hashes := make(map[string]struct{}, len(block.Transactions))
	var created, spent []*model.Coin
	for i, tx := range block.Transactions {
		txs = append(txs, &model.Transaction{
			Hash:          tx.Hash,
			SequenceIndex: int64(i),
			Size:          tx.Size,
			BlockNumber:   block.Height,
			Timestamp:     block.Timestamp.UnixMilli(),
		})
		hashes[tx.Hash] = struct{}{}

		c, s := model.BuildCoins(tx, block.Height)
		created = append(created, c...)
		spent = append(spent, s...)
	}

	err = self.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) (err error) {
		err = dbTx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"number", "prev_hash", "timestamp", "tx_count"}),
		}).
			Create(out).
			Error
		if err != nil {
			return
		}

		// Pending rows of the same transactions become confirmed
		if len(txs) > 0 {
			err = dbTx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "hash"}},
				DoUpdates: clause.AssignmentColumns([]string{"sequence_index", "size", "block_number", "timestamp"}),
			}).
				CreateInBatches(txs, self.batchSize()).
				Error
			if err != nil {
				return
			}
		}

		// Needs to happen before spend markers get overwritten by this block
		err = self.evictConflicting(dbTx, spent, hashes)
		if err != nil {
			return
		}

		err = self.upsertCreatedCoins(dbTx, created)
		if err != nil {
			return
		}

		return self.upsertSpentCoins(dbTx, spent)
	})
	if err != nil {
		return nil, err
	}

	return
}

// Removes pending transactions that spend the same outputs as confirmed transactions (double spends)
func (self *Store) evictConflicting(dbTx *gorm.DB, spent []*model.Coin, confirmed map[string]struct{}) (err error) {
	if len(spent) == 0 {
		return nil
	}

	ids := make([]string, 0, len(spent))
	for _, coin := range spent {
		ids = append(ids, coin.Id)
	}

	conflicting := make(map[string]struct{})
	for chunk := range slices.Chunk(ids, maxInListSize) {
		var coins []*model.Coin
		err = dbTx.
			Where("id IN ?", chunk).
			Where("spent_block_number = ?", model.Unconfirmed).
			Find(&coins).
			Error
		if err != nil {
			return
		}

		for _, coin := range coins {
			if _, ok := confirmed[coin.SpentTxHash.String]; ok {
				// Same transaction, it just got confirmed
				continue
			}
			conflicting[coin.SpentTxHash.String] = struct{}{}
		}
	}

	if len(conflicting) == 0 {
		return nil
	}

	evicted := make([]string, 0, len(conflicting))
	for hash := range conflicting {
		evicted = append(evicted, hash)
	}

	self.log.WithField("count", len(evicted)).Info("Evicting pending transactions conflicting with the block")

	for chunk := range slices.Chunk(evicted, maxInListSize) {
		err = dbTx.
			Where("hash IN ?", chunk).
			Where("block_number = ?", model.Unconfirmed).
			Delete(&model.Transaction{}).
			Error
		if err != nil {
			return
		}

		err = dbTx.
			Where("tx_hash IN ?", chunk).
			Where("block_number = ?", model.Unconfirmed).
			Delete(&model.Coin{}).
			Error
		if err != nil {
			return
		}

		err = clearSpent(dbTx.
			Where("spent_tx_hash IN ?", chunk).
			Where("spent_block_number = ?", model.Unconfirmed))
		if err != nil {
			return
		}
	}

	return nil
}

func (self *Store) Rollback(ctx context.Context, from int64) error {
	return self.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) (err error) {
		err = dbTx.Where("number >= ?", from).Delete(&model.Block{}).Error
		if err != nil {
			return
		}

		err = dbTx.Where("block_number >= ?", from).Delete(&model.Transaction{}).Error
		if err != nil {
			return
		}

		err = dbTx.Where("block_number >= ?", from).Delete(&model.Coin{}).Error
		if err != nil {
			return
		}

		return clearSpent(dbTx.Where("spent_block_number >= ?", from))
	})
}
