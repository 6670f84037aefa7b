package config

import (
	"time"

	"github.com/spf13/viper"
)

// Bitcoin-like node reachable through JSON-RPC
type Node struct {
	// JSON-RPC endpoint, e.g. http://127.0.0.1:8332
	Url string

	// Basic auth credentials
	User     string
	Password string

	// One of mainnet, testnet3, regtest, signet, simnet. Used for address encoding.
	Network string

	// Timeout of a single request
	RequestTimeout time.Duration

	// Max number of requests per second sent to the node and the allowed burst
	Limit float64
	Burst int

	// Transport errors are retried with exponential backoff, 0 is no limit
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration
}

func setNodeDefaults() {
	viper.SetDefault("Node.Url", "http://127.0.0.1:8332")
	viper.SetDefault("Node.User", "user")
	viper.SetDefault("Node.Password", "password")
	viper.SetDefault("Node.Network", "mainnet")
	viper.SetDefault("Node.RequestTimeout", "30s")
	viper.SetDefault("Node.Limit", "100")
	viper.SetDefault("Node.Burst", "10")
	viper.SetDefault("Node.MaxElapsedTime", "1m")
	viper.SetDefault("Node.MaxInterval", "10s")
}
