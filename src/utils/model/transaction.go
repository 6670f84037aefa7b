package model

const (
	TableTransaction = "transactions"

	// Block number of transactions that aren't included in any block yet
	Unconfirmed int64 = -1
)

type Transaction struct {
	Hash string `gorm:"primaryKey"`

	// Gap-free order of pending transactions, position in the block for confirmed ones
	SequenceIndex int64

	// Serialized size in bytes
	Size int

	// Unconfirmed (-1) for pending transactions
	BlockNumber int64

	// Unix time in milliseconds. Observation time for pending transactions, block time for confirmed ones.
	Timestamp int64
}

func (Transaction) TableName() string {
	return TableTransaction
}

func (self *Transaction) IsPending() bool {
	return self.BlockNumber == Unconfirmed
}
