package model

import (
	"encoding/json"
)

const (
	NotificationTypeBlock       = "block"
	NotificationTypeTransaction = "tx"
)

// Message published after a block gets committed or a pending transaction gets ingested
type Notification struct {
	Type string `json:"type"`
	Hash string `json:"hash"`

	// Block height or Unconfirmed
	BlockNumber int64 `json:"block_number"`

	// Only for pending transactions
	SequenceIndex *int64 `json:"sequence_index,omitempty"`

	// Only for blocks
	TxCount int `json:"tx_count,omitempty"`

	Timestamp int64 `json:"timestamp"`
}

func NewBlockNotification(block *Block) *Notification {
	return &Notification{
		Type:        NotificationTypeBlock,
		Hash:        block.Hash,
		BlockNumber: block.Number,
		TxCount:     block.TxCount,
		Timestamp:   block.Timestamp,
	}
}

func NewTransactionNotification(tx *Transaction) *Notification {
	idx := tx.SequenceIndex
	return &Notification{
		Type:          NotificationTypeTransaction,
		Hash:          tx.Hash,
		BlockNumber:   tx.BlockNumber,
		SequenceIndex: &idx,
		Timestamp:     tx.Timestamp,
	}
}

func (self *Notification) MarshalBinary() (data []byte, err error) {
	return json.Marshal(self)
}
