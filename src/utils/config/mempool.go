package config

import (
	"time"

	"github.com/spf13/viper"
)

// Polling of the node's mempool, source of live pending transactions
type Mempool struct {
	Enabled bool

	// Time between getrawmempool calls
	Interval time.Duration

	// How long a transaction hash is remembered after it got emitted
	SeenTTL time.Duration

	// Num of workers downloading raw transactions
	NumWorkers int
}

func setMempoolDefaults() {
	viper.SetDefault("Mempool.Enabled", "true")
	viper.SetDefault("Mempool.Interval", "2s")
	viper.SetDefault("Mempool.SeenTTL", "30m")
	viper.SetDefault("Mempool.NumWorkers", "10")
}
