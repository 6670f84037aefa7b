package common

import (
	"context"

	"github.com/chainwatch/utxo-syncer/src/utils/config"
)

type contextKey int

const contextKeyConfig contextKey = iota

func SetConfig(ctx context.Context, config *config.Config) context.Context {
	return context.WithValue(ctx, contextKeyConfig, config)
}

func GetConfig(ctx context.Context) *config.Config {
	val, ok := ctx.Value(contextKeyConfig).(*config.Config)
	if !ok {
		return nil
	}
	return val
}
