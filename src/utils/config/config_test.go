package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestDefaults() {
	config := Default()
	require.NotNil(s.T(), config)
	require.Equal(s.T(), 10*time.Second, config.Syncer.BlockPollInterval)
	require.Equal(s.T(), int64(6), config.Syncer.MaxRollbackDepth)
	require.Equal(s.T(), "mainnet", config.Node.Network)
	require.Equal(s.T(), 30*time.Second, config.StopTimeout)
	require.True(s.T(), config.Mempool.Enabled)
	require.False(s.T(), config.Redis.Enabled)
}

func (s *ConfigTestSuite) TestEnvOverride() {
	s.T().Setenv("SYNCER_NODE_URL", "http://node:18443")
	s.T().Setenv("SYNCER_SYNCER_START_HEIGHT", "100")

	config, err := Load("")
	require.Nil(s.T(), err)
	require.Equal(s.T(), "http://node:18443", config.Node.Url)
	require.Equal(s.T(), int64(100), config.Syncer.StartHeight)
}

func (s *ConfigTestSuite) TestFile() {
	filename := filepath.Join(s.T().TempDir(), "config.json")
	err := os.WriteFile(filename, []byte(`{"Node": {"Network": "regtest"}, "Syncer": {"BlockPollInterval": "1s"}}`), 0600)
	require.Nil(s.T(), err)

	config, err := Load(filename)
	require.Nil(s.T(), err)
	require.Equal(s.T(), "regtest", config.Node.Network)
	require.Equal(s.T(), time.Second, config.Syncer.BlockPollInterval)
}

func (s *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(s.T().TempDir(), "missing.json"))
	require.Error(s.T(), err)
}
