package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log:
  level: debug
  format: json
auto_confirm: true
bridge:
  provider: oneclick
  jwt_token: secret
  poll_attempts: 10
  poll_interval: 2s
networks:
  arbitrum:
    chain_id: 42161
    rpc_url: http://localhost:8545
    gas_limit: 300000
  base:
    chain_id: 8453
    rpc_url: http://localhost:9545
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.AutoConfirm)
	assert.Equal(t, ProviderOneClick, cfg.Bridge.Provider)
	assert.Equal(t, 10, cfg.Bridge.PollAttempts)
	assert.Equal(t, 2*time.Second, cfg.Bridge.PollInterval)
	assert.Equal(t, "https://1click.chaindefuser.com", cfg.Bridge.OneClickBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Prices.FreshFor)

	require.Contains(t, cfg.Networks, "arbitrum")
	arb := cfg.Networks["arbitrum"]
	assert.Equal(t, "http://localhost:8545", arb.RPCUrl)
	require.NotNil(t, arb.GasLimit)
	assert.Equal(t, uint64(300000), *arb.GasLimit)
	assert.Nil(t, arb.GasPrice)

	name, n, ok := cfg.NetworkByChain(8453)
	require.True(t, ok)
	assert.Equal(t, "base", name)
	assert.Equal(t, "http://localhost:9545", n.RPCUrl)

	_, _, ok = cfg.NetworkByChain(1)
	assert.False(t, ok)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARB_BUY_BRIDGE_POLL_ATTEMPTS", "3")
	t.Setenv("ARB_BUY_WALLET_PRIVATE_KEY", "0xabc")
	t.Setenv("ARB_BUY_NETWORKS_ARBITRUM_RPC_URL", "http://env:8545")

	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Bridge.PollAttempts)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.Equal(t, "http://env:8545", cfg.Networks["arbitrum"].RPCUrl)
	assert.Equal(t, int64(42161), cfg.Networks["arbitrum"].ChainID)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "bridge:\n  provider: carrier-pigeon\n"))
	assert.ErrorContains(t, err, "carrier-pigeon")

	_, err = Load(writeConfig(t, "bridge:\n  poll_attempts: 0\n"))
	assert.ErrorContains(t, err, "poll_attempts")
}

func TestValidateBridge(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.ValidateBridge(), ErrMissingClientConfig)

	cfg.Bridge.ClientID = "client"
	assert.NoError(t, cfg.ValidateBridge())

	cfg.Bridge.Provider = ProviderOneClick
	assert.ErrorIs(t, cfg.ValidateBridge(), ErrMissingClientConfig)

	cfg.Bridge.JWTToken = "jwt"
	assert.NoError(t, cfg.ValidateBridge())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arb-buy.yaml")
	cfg := Default()
	cfg.Bridge.ClientID = "client"
	cfg.Bridge.PollInterval = 7 * time.Second

	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "client", loaded.Bridge.ClientID)
	assert.Equal(t, 7*time.Second, loaded.Bridge.PollInterval)
	assert.Equal(t, cfg.Networks, loaded.Networks)
}

func TestLoadPricesProLeavesHostToSource(t *testing.T) {
	t.Setenv("ARB_BUY_PRICES_PRO", "true")
	t.Setenv("ARB_BUY_PRICES_API_KEY", "cg-key")

	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Prices.Pro)
	assert.Equal(t, "cg-key", cfg.Prices.APIKey)
	assert.Empty(t, cfg.Prices.BaseURL)

	cfg, err = Load(writeConfig(t, "prices:\n  base_url: http://localhost:9000\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.Prices.BaseURL)
}
