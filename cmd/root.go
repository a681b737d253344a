package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arb-buy/config"
	"arb-buy/pkg/balance"
	"arb-buy/pkg/client"
	"arb-buy/pkg/logging"
	"arb-buy/pkg/metrics"
	"arb-buy/pkg/price"
	"arb-buy/pkg/wallet"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "arb-buy",
	Short: "A CLI for buying stablecoins with ARB on Arbitrum",
	Long: `arb-buy sells ARB for a stablecoin on Arbitrum. It fetches a quote from the
configured bridge, signs and submits each transaction in order, and waits for
cross-chain legs to settle.

Examples:
  arb-buy buy $10 to USDC
  arb-buy buy 2.5 ARB to DAI --yes
  arb-buy stables --prices
  arb-buy status <tx-hash> --watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.arb-buy.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// runtime bundles what every command builds from the config
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	return &runtime{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func (r *runtime) close() {
	_ = r.log.Sync()
}

func (r *runtime) serveMetrics(ctx context.Context) {
	metrics.Serve(ctx, r.cfg.MetricsAddr, r.registry, r.log)
}

func (r *runtime) priceSource() *price.Source {
	return price.NewSource(price.Config{
		BaseURL:  r.cfg.Prices.BaseURL,
		APIKey:   r.cfg.Prices.APIKey,
		Pro:      r.cfg.Prices.Pro,
		FreshFor: r.cfg.Prices.FreshFor,
		Timeout:  r.cfg.Prices.Timeout,
	}, r.log.Named("price"), r.metrics)
}

func (r *runtime) bridge() (client.Bridge, error) {
	if err := r.cfg.ValidateBridge(); err != nil {
		return nil, err
	}
	b := r.cfg.Bridge
	switch b.Provider {
	case config.ProviderOneClick:
		return client.NewOneClickBridge(b.OneClickBaseURL, b.JWTToken, b.Timeout, r.log.Named("oneclick")), nil
	default:
		return client.NewThirdwebBridge(b.BaseURL, b.ClientID, b.Timeout, r.log.Named("thirdweb")), nil
	}
}

// chains holds dialed RPC connections for every configured network
type chains struct {
	networks []wallet.Network
	callers  map[int64]balance.Caller
	close    func()
}

func (r *runtime) dial(ctx context.Context) (*chains, error) {
	c := &chains{callers: make(map[int64]balance.Caller)}
	var closers []func()
	c.close = func() {
		for _, fn := range closers {
			fn()
		}
	}

	for name, n := range r.cfg.Networks {
		ethClient, err := wallet.Dial(ctx, name, n.RPCUrl, n.ChainID)
		if err != nil {
			c.close()
			return nil, err
		}
		closers = append(closers, ethClient.Close)
		c.networks = append(c.networks, wallet.Network{
			Name:     name,
			ChainID:  n.ChainID,
			Client:   ethClient,
			GasLimit: n.GasLimit,
			GasPrice: n.GasPrice,
		})
		c.callers[n.ChainID] = ethClient
		r.log.Debug("connected to network", zap.String("network", name), zap.Int64("chain_id", n.ChainID))
	}
	return c, nil
}

func (r *runtime) signer(c *chains) (*wallet.Signer, error) {
	w := r.cfg.Wallet
	key, err := wallet.LoadKey(w.PrivateKey, w.Mnemonic, w.DerivationPath)
	if err != nil {
		return nil, err
	}
	return wallet.NewSigner(key, c.networks, r.log.Named("signer"))
}
