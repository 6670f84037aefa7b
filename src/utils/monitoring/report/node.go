package report

import (
	"go.uber.org/atomic"
)

type NodeErrors struct {
	InfoDownload atomic.Uint64 `json:"info_download"`
}

type NodeState struct {
	Chain             atomic.String `json:"chain"`
	Height            atomic.Int64  `json:"height"`
	LastInfoTimestamp atomic.Int64  `json:"last_info_timestamp"`
}

type NodeReport struct {
	State  NodeState  `json:"state"`
	Errors NodeErrors `json:"errors"`
}
