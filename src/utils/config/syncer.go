package config

import (
	"time"

	"github.com/spf13/viper"
)

type Syncer struct {
	// Height synchronization starts from when the database has no blocks
	StartHeight int64

	// Time between checks for a block that isn't produced yet
	BlockPollInterval time.Duration

	// Max number of stored blocks compared with the node during a single rollback
	MaxRollbackDepth int64

	// Max number of rows sent in one insert
	BatchSize int
}

func setSyncerDefaults() {
	viper.SetDefault("Syncer.StartHeight", "0")
	viper.SetDefault("Syncer.BlockPollInterval", "10s")
	viper.SetDefault("Syncer.MaxRollbackDepth", "6")
	viper.SetDefault("Syncer.BatchSize", "500")
}
