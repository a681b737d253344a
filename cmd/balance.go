package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"arb-buy/pkg/balance"
	"arb-buy/pkg/parser"
	"arb-buy/pkg/tokens"
)

var balanceOwner string

var balanceCmd = &cobra.Command{
	Use:   "balance [symbol]",
	Short: "Show the wallet balance of ARB or a stablecoin",
	Long: `Show a token balance on Arbitrum. Defaults to the ARB balance of the
configured wallet.

Examples:
  arb-buy balance
  arb-buy balance USDC
  arb-buy balance DAI --address 0x123...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceOwner, "address", "", "Address to check (default: the configured wallet)")
}

func runBalance(cmd *cobra.Command, args []string) error {
	asset := tokens.ARB
	if len(args) == 1 {
		var err error
		if asset, err = tokens.Find(parser.NormalizeTokenSymbol(args[0])); err != nil {
			return err
		}
	}
	if balanceOwner != "" && !common.IsHexAddress(balanceOwner) {
		return fmt.Errorf("invalid address '%s'", balanceOwner)
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	nets, err := rt.dial(ctx)
	if err != nil {
		return err
	}
	defer nets.close()

	owner := balanceOwner
	if owner == "" {
		signer, err := rt.signer(nets)
		if err != nil {
			return err
		}
		owner = signer.Address().Hex()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balance..."
		s.Start()
	}
	bal, err := balance.NewSource(nets.callers).Fetch(ctx, owner, asset.Address, asset.ChainID)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"address":   owner,
			"symbol":    bal.Symbol,
			"decimals":  bal.Decimals,
			"raw":       bal.Raw.String(),
			"formatted": bal.Amount().String(),
		})
		return nil
	}

	printSuccess(fmt.Sprintf("%s holds %s", color.CyanString(owner), color.YellowString(bal.Display())))
	return nil
}
