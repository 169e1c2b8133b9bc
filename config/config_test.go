package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, SourceExplorer, cfg.Source)
	assert.Equal(t, ShieldModeBinary, cfg.ShieldSync.Mode)
	assert.DirExists(t, cfg.DataDir)

	params, err := cfg.ChainParams()
	require.NoError(t, err)
	assert.Equal(t, uint32(119), params.CoinType)
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
network: testnet
data_dir: ` + filepath.Join(dir, "d") + `
source: rpc
rpc:
  host: 10.0.0.1
  port: "51475"
shield_sync:
  mode: polling
  concurrency: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("RPC_USER", "alice")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, SourceRPC, cfg.Source)
	assert.Equal(t, "10.0.0.1", cfg.RPC.Host)
	assert.Equal(t, "alice", cfg.RPC.User)
	assert.Equal(t, ShieldModePolling, cfg.ShieldSync.Mode)
	assert.Equal(t, 4, cfg.ShieldSync.Concurrency)
	assert.Equal(t, uint64(10), cfg.FeePerByte)
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `network = "testnet"
data_dir = "` + filepath.Join(dir, "d") + `"
storage_engine = "leveldb"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Network)
	assert.Equal(t, EngineLevelDB, cfg.StorageEngine)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cfg := Default()
	cfg.Source = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Network = "regtest"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ShieldSync.Concurrency = 0
	assert.Error(t, cfg.Validate())
}
