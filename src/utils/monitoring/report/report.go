package report

import (
	"go.uber.org/atomic"
)

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Syncer         *SyncerReport         `json:"syncer,omitempty"`
	Node           *NodeReport           `json:"node,omitempty"`
	Mempool        *MempoolReport        `json:"mempool,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}

type RunState struct {
	StartTimestamp atomic.Int64  `json:"start_timestamp"`
	UpForSeconds   atomic.Uint64 `json:"up_for_seconds"`
}

type RunReport struct {
	State RunState `json:"state"`
}
