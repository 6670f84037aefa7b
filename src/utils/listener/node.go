package listener

import "context"

// Subset of the provider used by the live pending transaction sources
type PendingTxNode interface {
	GetRawMempool(ctx context.Context) ([]string, error)
	GetRawTransaction(ctx context.Context, hash string) (string, error)
	EmitPendingTx(rawHex string)
}
