package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"arb-buy/pkg/parser"
	"arb-buy/pkg/tokens"
)

var priceCmd = &cobra.Command{
	Use:   "price [symbol...]",
	Short: "Show USD prices from CoinGecko",
	Long: `Show the CoinGecko USD price of ARB and the supported stablecoins.

Examples:
  arb-buy price
  arb-buy price ARB USDC`,
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) error {
	assets := append([]tokens.Asset{tokens.ARB}, tokens.Stables...)
	if len(args) > 0 {
		assets = assets[:0]
		for _, arg := range args {
			asset, err := tokens.Find(parser.NormalizeTokenSymbol(arg))
			if err != nil {
				return err
			}
			assets = append(assets, asset)
		}
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching prices..."
		s.Start()
	}

	src := rt.priceSource()
	prices := make(map[string]string, len(assets))
	for _, asset := range assets {
		prices[asset.Symbol] = formatUSD(lookupPrice(cmd.Context(), src, rt.log, asset))
	}
	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		printJSON(prices)
		return nil
	}

	fmt.Println()
	for _, asset := range assets {
		p := prices[asset.Symbol]
		if p == "" {
			p = color.RedString("unavailable")
		}
		fmt.Printf("  %-6s %s\n", color.YellowString(asset.Symbol), p)
	}
	fmt.Println()
	return nil
}
