package bitcoin

import (
	"context"
	"fmt"
)

func (self *Provider) GetBlockHash(ctx context.Context, height int64) (hash string, err error) {
	err = self.Execute(ctx, "getblockhash", []any{height}, &hash)
	if err != nil && isNotFound(err) {
		err = fmt.Errorf("%w: block at height %d: %w", ErrNotFound, height, err)
	}
	return
}

// Downloads the block in the raw format and decodes it
func (self *Provider) GetBlock(ctx context.Context, hash string, height int64) (block *Block, err error) {
	var raw string
	err = self.Execute(ctx, "getblock", []any{hash, 0}, &raw)
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: block %s: %w", ErrNotFound, hash, err)
		}
		return
	}

	return self.decoder.DecodeBlock(raw, height)
}

func (self *Provider) GetRawTransaction(ctx context.Context, hash string) (raw string, err error) {
	err = self.Execute(ctx, "getrawtransaction", []any{hash, false}, &raw)
	if err != nil && isNotFound(err) {
		err = fmt.Errorf("%w: transaction %s: %w", ErrNotFound, hash, err)
	}
	return
}

// Hashes of transactions in the node's mempool
func (self *Provider) GetRawMempool(ctx context.Context) (hashes []string, err error) {
	err = self.Execute(ctx, "getrawmempool", []any{}, &hashes)
	return
}

func (self *Provider) GetBlockchainInfo(ctx context.Context) (info *BlockchainInfo, err error) {
	info = new(BlockchainInfo)
	err = self.Execute(ctx, "getblockchaininfo", []any{}, info)
	if err != nil {
		return nil, err
	}
	return
}
