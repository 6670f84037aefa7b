package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/model"
)

// Downloads a block from the configured node and prints the coins it creates and spends.
// Usage: go run tools/integration.go <height> [config file]
func main() {
	if len(os.Args) < 2 {
		log.Fatal("missing block height")
	}

	height, err := strconv.ParseInt(os.Args[1], 10, 64)
	if err != nil {
		log.Fatal(err)
	}

	var filename string
	if len(os.Args) > 2 {
		filename = os.Args[2]
	}

	conf, err := config.Load(filename)
	if err != nil {
		log.Fatal(err)
	}

	provider, err := bitcoin.NewProvider(conf)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	info, err := provider.GetBlockchainInfo(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("chain: %s, blocks: %d\n", info.Chain, info.Blocks)

	hash, err := provider.GetBlockHash(ctx, height)
	if err != nil {
		log.Fatal(err)
	}

	block, err := provider.GetBlock(ctx, hash, height)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("block %d %s, prev %s, %d transactions\n", block.Height, block.Hash, block.PrevHash, len(block.Transactions))

	for _, tx := range block.Transactions {
		created, spent := model.BuildCoins(tx, block.Height)

		out, err := json.MarshalIndent(map[string]any{
			"hash":    tx.Hash,
			"size":    tx.Size,
			"created": created,
			"spent":   spent,
		}, "", "  ")
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(string(out))
	}
}
