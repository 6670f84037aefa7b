package report

import (
	"go.uber.org/atomic"
)

type SyncerErrors struct {
	NodeErrors       atomic.Uint64 `json:"node"`
	BenignNodeErrors atomic.Uint64 `json:"benign_node"`
	DbErrors         atomic.Uint64 `json:"db"`
	IngestFailures   atomic.Uint64 `json:"ingest"`
	BacklogFailures  atomic.Uint64 `json:"backlog"`
}

type SyncerState struct {
	// Stopped, starting or running
	SyncState atomic.String `json:"sync_state"`

	CurrentHeight atomic.Int64 `json:"current_height"`
	BlocksBehind  atomic.Int64 `json:"blocks_behind"`

	BlocksCommitted  atomic.Uint64 `json:"blocks_committed"`
	Reorgs           atomic.Uint64 `json:"reorgs"`
	AwaitingBlock    atomic.Uint64 `json:"awaiting_block"`
	LastWatermark    atomic.Int64  `json:"last_watermark"`
	LastCommitHeight atomic.Int64  `json:"last_commit_height"`

	TransactionsIngested  atomic.Uint64 `json:"transactions_ingested"`
	DuplicateTransactions atomic.Uint64 `json:"duplicate_transactions"`
	BacklogTransactions   atomic.Uint64 `json:"backlog_transactions"`
	StalePurges           atomic.Uint64 `json:"stale_purges"`

	AverageBlocksProcessedPerMinute      atomic.Float64 `json:"average_blocks_processed_per_minute"`
	AverageTransactionsIngestedPerMinute atomic.Float64 `json:"average_transactions_ingested_per_minute"`
}

type SyncerReport struct {
	State  SyncerState  `json:"state"`
	Errors SyncerErrors `json:"errors"`
}
