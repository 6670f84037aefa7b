package model

import (
	"database/sql"
	"fmt"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
)

const (
	TableCoin = "coins"
)

// Spendable output. The same row is written twice: once when the output gets created and once when it gets spent.
type Coin struct {
	// <tx hash>:<output index>
	Id string `gorm:"primaryKey"`

	TxHash      string
	OutputIndex uint32
	Address     string

	// Satoshi
	Value int64

	// Block that created the output, Unconfirmed for pending transactions
	BlockNumber sql.NullInt64

	// Set when a transaction spending this output is observed
	SpentTxHash      sql.NullString
	SpentBlockNumber sql.NullInt64
}

func (Coin) TableName() string {
	return TableCoin
}

func CoinId(txHash string, outputIndex uint32) string {
	return fmt.Sprintf("%s:%d", txHash, outputIndex)
}

// Derives coins from a decoded transaction. Created coins come from spendable outputs,
// spent coins are markers for outputs consumed by the inputs (coinbase inputs consume nothing).
func BuildCoins(tx *bitcoin.Transaction, blockNumber int64) (created, spent []*Coin) {
	for _, out := range tx.Outputs {
		if !out.Spendable {
			continue
		}
		created = append(created, &Coin{
			Id:          CoinId(tx.Hash, out.Index),
			TxHash:      tx.Hash,
			OutputIndex: out.Index,
			Address:     out.Address,
			Value:       out.Value,
			BlockNumber: sql.NullInt64{Int64: blockNumber, Valid: true},
		})
	}

	for _, in := range tx.Inputs {
		if in.Coinbase {
			continue
		}
		spent = append(spent, &Coin{
			Id:               CoinId(in.PrevHash, in.PrevIndex),
			TxHash:           in.PrevHash,
			OutputIndex:      in.PrevIndex,
			SpentTxHash:      sql.NullString{String: tx.Hash, Valid: true},
			SpentBlockNumber: sql.NullInt64{Int64: blockNumber, Valid: true},
		})
	}

	return
}
