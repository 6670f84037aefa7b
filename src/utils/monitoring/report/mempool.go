package report

import (
	"go.uber.org/atomic"
)

type MempoolErrors struct {
	MempoolDownload     atomic.Uint64 `json:"mempool_download"`
	TransactionDownload atomic.Uint64 `json:"tx_download"`
	RedisSubscribe      atomic.Uint64 `json:"redis_subscribe"`
}

type MempoolState struct {
	MempoolSize          atomic.Int64  `json:"mempool_size"`
	TransactionsEmitted  atomic.Uint64 `json:"transactions_emitted"`
	RedisMessages        atomic.Uint64 `json:"redis_messages"`
	LastPollingTimestamp atomic.Int64  `json:"last_polling_timestamp"`
}

type MempoolReport struct {
	State  MempoolState  `json:"state"`
	Errors MempoolErrors `json:"errors"`
}
