package build_info

// Set during the build with -ldflags "-X github.com/chainwatch/utxo-syncer/src/utils/build_info.Version=..."
var Version = "dev"
