// Package config loads arb-buy settings from a YAML file, the environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. ARB_BUY_WALLET_PRIVATE_KEY
	EnvPrefix = "ARB_BUY"
	// FileName is the config file name looked up in $HOME and the working directory
	FileName = ".arb-buy"

	ProviderThirdweb = "thirdweb"
	ProviderOneClick = "oneclick"
)

// ErrMissingClientConfig is returned when the selected bridge has no credentials
var ErrMissingClientConfig = errors.New("missing client configuration")

// Config holds the application configuration
type Config struct {
	Log         LogConfig             `mapstructure:"log" yaml:"log"`
	MetricsAddr string                `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	AutoConfirm bool                  `mapstructure:"auto_confirm" yaml:"auto_confirm"`
	Prices      PriceConfig           `mapstructure:"prices" yaml:"prices"`
	Bridge      BridgeConfig          `mapstructure:"bridge" yaml:"bridge"`
	Wallet      WalletConfig          `mapstructure:"wallet" yaml:"wallet"`
	Networks    map[string]EVMNetwork `mapstructure:"networks" yaml:"networks"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// PriceConfig configures the CoinGecko price source
type PriceConfig struct {
	// BaseURL overrides the CoinGecko host; empty selects the demo or pro host from Pro
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Pro      bool          `mapstructure:"pro" yaml:"pro"`
	FreshFor time.Duration `mapstructure:"fresh_for" yaml:"fresh_for"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BridgeConfig selects and configures the bridge provider
type BridgeConfig struct {
	Provider        string        `mapstructure:"provider" yaml:"provider"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	ClientID        string        `mapstructure:"client_id" yaml:"client_id"`
	JWTToken        string        `mapstructure:"jwt_token" yaml:"jwt_token"`
	OneClickBaseURL string        `mapstructure:"oneclick_base_url" yaml:"oneclick_base_url"`
	PollAttempts    int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// WalletConfig holds the signing key. Set either PrivateKey or Mnemonic.
type WalletConfig struct {
	PrivateKey     string `mapstructure:"private_key" yaml:"private_key"`
	Mnemonic       string `mapstructure:"mnemonic" yaml:"mnemonic"`
	DerivationPath string `mapstructure:"derivation_path" yaml:"derivation_path"`
}

// EVMNetwork configures one EVM chain
type EVMNetwork struct {
	ChainID  int64   `mapstructure:"chain_id" yaml:"chain_id"`
	RPCUrl   string  `mapstructure:"rpc_url" yaml:"rpc_url"`
	GasLimit *uint64 `mapstructure:"gas_limit" yaml:"gas_limit,omitempty"`
	GasPrice *int64  `mapstructure:"gas_price" yaml:"gas_price,omitempty"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Prices: PriceConfig{
			FreshFor: 5 * time.Minute,
			Timeout:  10 * time.Second,
		},
		Bridge: BridgeConfig{
			Provider:        ProviderThirdweb,
			BaseURL:         "https://bridge.thirdweb.com",
			OneClickBaseURL: "https://1click.chaindefuser.com",
			PollAttempts:    60,
			PollInterval:    5 * time.Second,
			Timeout:         15 * time.Second,
		},
		Wallet: WalletConfig{DerivationPath: "m/44'/60'/0'/0/0"},
		Networks: map[string]EVMNetwork{
			"arbitrum": {ChainID: 42161, RPCUrl: "https://arb1.arbitrum.io/rpc"},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("auto_confirm", d.AutoConfirm)
	v.SetDefault("prices.base_url", "")
	v.SetDefault("prices.api_key", "")
	v.SetDefault("prices.pro", false)
	v.SetDefault("prices.fresh_for", d.Prices.FreshFor)
	v.SetDefault("prices.timeout", d.Prices.Timeout)
	v.SetDefault("bridge.provider", d.Bridge.Provider)
	v.SetDefault("bridge.base_url", d.Bridge.BaseURL)
	v.SetDefault("bridge.client_id", "")
	v.SetDefault("bridge.jwt_token", "")
	v.SetDefault("bridge.oneclick_base_url", d.Bridge.OneClickBaseURL)
	v.SetDefault("bridge.poll_attempts", d.Bridge.PollAttempts)
	v.SetDefault("bridge.poll_interval", d.Bridge.PollInterval)
	v.SetDefault("bridge.timeout", d.Bridge.Timeout)
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.mnemonic", "")
	v.SetDefault("wallet.derivation_path", d.Wallet.DerivationPath)
	for name, n := range d.Networks {
		v.SetDefault("networks."+name+".chain_id", n.ChainID)
		v.SetDefault("networks."+name+".rpc_url", n.RPCUrl)
	}
}

// Load reads configuration from the given file (or the default locations when
// path is empty), then applies environment overrides
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that every command relies on
func (c *Config) Validate() error {
	if c.Bridge.PollAttempts <= 0 {
		return fmt.Errorf("bridge.poll_attempts must be positive")
	}
	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("bridge.poll_interval must be positive")
	}
	switch c.Bridge.Provider {
	case ProviderThirdweb, ProviderOneClick:
	default:
		return fmt.Errorf("unknown bridge.provider %q", c.Bridge.Provider)
	}
	for name, n := range c.Networks {
		if n.ChainID <= 0 {
			return fmt.Errorf("network %s: chain_id must be positive", name)
		}
	}
	return nil
}

// ValidateBridge checks that the selected bridge provider has credentials
func (c *Config) ValidateBridge() error {
	switch c.Bridge.Provider {
	case ProviderThirdweb:
		if c.Bridge.ClientID == "" {
			return fmt.Errorf("%w: set bridge.client_id or %s_BRIDGE_CLIENT_ID", ErrMissingClientConfig, EnvPrefix)
		}
	case ProviderOneClick:
		if c.Bridge.JWTToken == "" {
			return fmt.Errorf("%w: set bridge.jwt_token or %s_BRIDGE_JWT_TOKEN", ErrMissingClientConfig, EnvPrefix)
		}
	}
	return nil
}

// NetworkByChain finds the configured network serving chainID
func (c *Config) NetworkByChain(chainID int64) (string, EVMNetwork, bool) {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if n := c.Networks[name]; n.ChainID == chainID {
			return name, n, true
		}
	}
	return "", EVMNetwork{}, false
}

// Save writes cfg as YAML. The file may hold keys, so it is private to the user.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DefaultPath returns $HOME/.arb-buy.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, FileName+".yaml"), nil
}
