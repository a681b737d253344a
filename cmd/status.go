package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"arb-buy/config"
	"arb-buy/pkg/client"
	"arb-buy/pkg/engine"
	"arb-buy/pkg/tokens"
	"arb-buy/pkg/types"
)

var (
	statusChain   int64
	statusKey     string
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the bridge status of a purchase transaction",
	Long: `Check the cross-chain status of a transaction sent by a purchase.

For the 1Click provider pass the deposit address with --status-key.

Examples:
  arb-buy status 0x1234...abcd
  arb-buy status 0x1234...abcd --watch
  arb-buy status 0x1234...abcd --status-key 0x9876... --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Int64Var(&statusChain, "chain", tokens.ArbitrumChainID, "Chain id the transaction was sent on")
	statusCmd.Flags().StringVar(&statusKey, "status-key", "", "Provider tracking key, e.g. the 1Click deposit address")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the transfer completes or fails")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 0, "Polling interval in seconds when watching (default from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	sub := types.SubmissionResult{
		Hash:      args[0],
		ChainID:   statusChain,
		StatusKey: statusKey,
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	network, err := statusNetwork(rt.cfg, sub.ChainID)
	if err != nil {
		return err
	}

	bridge, err := rt.bridge()
	if err != nil {
		return err
	}

	if watchStatus {
		if jsonOutput {
			return fmt.Errorf("watch mode not supported with JSON output")
		}
		return watchBridgeStatus(cmd.Context(), rt, bridge, network, sub)
	}
	return checkBridgeStatus(cmd.Context(), bridge, network, sub, jsonOutput)
}

// statusNetwork returns the configured network name for chainID
func statusNetwork(cfg *config.Config, chainID int64) (string, error) {
	name, _, ok := cfg.NetworkByChain(chainID)
	if !ok {
		return "", fmt.Errorf("chain %d is not configured, add it under networks", chainID)
	}
	return name, nil
}

func checkBridgeStatus(ctx context.Context, bridge client.Bridge, network string, sub types.SubmissionResult, jsonOutput bool) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking bridge status..."
		s.Start()
	}

	status, err := bridge.Status(ctx, sub)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"hash":     sub.Hash,
			"chain_id": sub.ChainID,
			"network":  network,
			"provider": bridge.Name(),
			"status":   status,
		})
		return nil
	}
	displayStatus(bridge.Name(), network, sub, status)
	return nil
}

func watchBridgeStatus(ctx context.Context, rt *runtime, bridge client.Bridge, network string, sub types.SubmissionResult) error {
	interval := rt.cfg.Bridge.PollInterval
	if watchInterval > 0 {
		interval = time.Duration(watchInterval) * time.Second
	}

	fmt.Printf("\nWatching bridge status (Tx: %s)\n", color.CyanString(sub.Hash))
	fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n\n", interval)

	eng := engine.New(bridge, engine.Config{
		MaxPollAttempts: rt.cfg.Bridge.PollAttempts,
		PollInterval:    interval,
	}, rt.log.Named("status"), rt.metrics)

	err := eng.WaitForBridge(ctx, sub)
	switch {
	case err == nil:
		displayStatus(bridge.Name(), network, sub, types.StatusCompleted)
		return nil
	case errors.Is(err, engine.ErrCrossChainFailed):
		displayStatus(bridge.Name(), network, sub, types.StatusFailed)
		return err
	default:
		return err
	}
}

func displayStatus(provider, network string, sub types.SubmissionResult, status types.BridgeStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        BRIDGE STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction:     %s\n", color.CyanString(sub.Hash))
	fmt.Printf("  Chain:           %s (%d)\n", network, sub.ChainID)
	if sub.StatusKey != "" {
		fmt.Printf("  Status Key:      %s\n", color.HiBlackString(sub.StatusKey))
	}
	fmt.Printf("  Provider:        %s\n", provider)
	fmt.Printf("  Status:          %s\n", getColoredStatus(string(status)))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING", "PROCESSING":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	default:
		return status
	}
}
