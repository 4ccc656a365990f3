package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(137), cfg.Chain.ID)
	assert.Equal(t, "https://clob.polymarket.com", cfg.Clob.Host)
	assert.Equal(t, "https://relayer-v2.polymarket.com", cfg.Relayer.URL)
	assert.Equal(t, 24, cfg.Deposit.MaxAttempts)
	assert.Equal(t, 0.01, cfg.Trade.SellShortfallTolerance)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
chain:
  id: 80002
  rpcUrl: https://rpc-amoy.polygon.technology
clob:
  host: https://clob-staging.polymarket.com
store:
  backend: sqlite
  path: /tmp/gopoly.db
trade:
  sellShortfallTolerance: 0.05
  stageResetDelay: 3s
deposit:
  pollInterval: 2
  maxAttempts: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(80002), cfg.Chain.ID)
	assert.Equal(t, "https://rpc-amoy.polygon.technology", cfg.Chain.RPCURL)
	assert.Equal(t, "https://clob-staging.polymarket.com", cfg.Clob.Host)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 0.05, cfg.Trade.SellShortfallTolerance)
	assert.Equal(t, 3*time.Second, cfg.Trade.StageResetDelay.Duration)
	// Bare numbers are seconds.
	assert.Equal(t, 2*time.Second, cfg.Deposit.PollInterval.Duration)
	assert.Equal(t, 10, cfg.Deposit.MaxAttempts)
}

func TestLoadEnvOverridesRPC(t *testing.T) {
	t.Setenv("POLYGON_RPC_URL", "https://rpc.example.com")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", cfg.Chain.RPCURL)
}

func TestLoadRejectsBadStore(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  backend: redis\n"))
	require.Error(t, err)

	// Persistent backends need a path.
	_, err = Load(writeConfig(t, "store:\n  backend: badger\n"))
	require.Error(t, err)
}

func TestLoadRejectsBadTolerance(t *testing.T) {
	_, err := Load(writeConfig(t, "trade:\n  sellShortfallTolerance: 1.5\n"))
	require.Error(t, err)
}
