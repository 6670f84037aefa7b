package config

import (
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	// Subscribe to raw transactions published by the ZMQ bridge
	Enabled bool

	// Publish block and transaction notifications
	Publish bool

	Port     uint16
	Host     string
	User     string
	Password string
	DB       int

	// TLS configuration
	ClientKey  string
	ClientCert string
	CaCert     string

	// Connection configuration
	MinIdleConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration

	// Publish and reconnect backoff configuration, 0 is no limit
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration

	// Channel with hex encoded raw transactions
	RawTxChannel string

	// Channel notifications are published to
	NotificationChannel string

	// Max num of notifications waiting to be published
	MaxQueueSize int
}

func setRedisDefaults() {
	viper.SetDefault("Redis.Enabled", "false")
	viper.SetDefault("Redis.Publish", "false")
	viper.SetDefault("Redis.Port", "6379")
	viper.SetDefault("Redis.Host", "localhost")
	viper.SetDefault("Redis.Password", "password")
	viper.SetDefault("Redis.DB", "0")
	viper.SetDefault("Redis.MinIdleConns", "1")
	viper.SetDefault("Redis.MaxIdleConns", "5")
	viper.SetDefault("Redis.ConnMaxIdleTime", "10m")
	viper.SetDefault("Redis.MaxOpenConns", "15")
	viper.SetDefault("Redis.ConnMaxLifetime", "1h")
	viper.SetDefault("Redis.MaxElapsedTime", "0")
	viper.SetDefault("Redis.MaxInterval", "30s")
	viper.SetDefault("Redis.RawTxChannel", "rawtx")
	viper.SetDefault("Redis.NotificationChannel", "utxo-syncer")
	viper.SetDefault("Redis.MaxQueueSize", "1000")
}
