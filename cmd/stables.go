package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"arb-buy/config"
	"arb-buy/pkg/client"
	"arb-buy/pkg/tokens"
)

var (
	showPrices   bool
	showOneClick bool
)

var stablesCmd = &cobra.Command{
	Use:     "stables",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the stablecoins that can be bought",
	Long: `List the stablecoins arb-buy can buy on Arbitrum, with the quick-pick
spend amounts.

Examples:
  arb-buy stables
  arb-buy stables --prices
  arb-buy stables --oneclick`,
	RunE: runStables,
}

func init() {
	rootCmd.AddCommand(stablesCmd)

	stablesCmd.Flags().BoolVar(&showPrices, "prices", false, "Include current USD prices")
	stablesCmd.Flags().BoolVar(&showOneClick, "oneclick", false, "List Arbitrum tokens supported by the 1Click API instead")
}

type stableRow struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
	PriceUSD string `json:"price_usd,omitempty"`
}

func runStables(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if showOneClick {
		return listOneClickTokens(cmd, rt, jsonOutput)
	}

	rows := make([]stableRow, 0, len(tokens.Stables))
	for _, s := range tokens.Stables {
		rows = append(rows, stableRow{Symbol: s.Symbol, Name: s.Name, Address: s.Address, Decimals: s.Decimals})
	}

	if showPrices {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Fetching prices..."
			s.Start()
		}
		src := rt.priceSource()
		for i, asset := range tokens.Stables {
			rows[i].PriceUSD = formatUSD(lookupPrice(cmd.Context(), src, rt.log, asset))
		}
		if !jsonOutput {
			s.Stop()
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"stables":        rows,
			"usd_presets":    tokens.USDPresets,
			"source_presets": tokens.SourcePresets,
		})
		return nil
	}

	displayStables(rows)
	return nil
}

func displayStables(rows []stableRow) {
	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED STABLECOINS")
	fmt.Println(strings.Repeat("=", 90))

	color.Cyan("\nARBITRUM")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range rows {
		price := ""
		if r.PriceUSD != "" {
			price = "  " + r.PriceUSD
		}
		fmt.Printf("  %-10s  %2d decimals  %s%s\n",
			color.YellowString(r.Symbol),
			r.Decimals,
			color.HiBlackString(r.Address),
			price)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nQuick picks: $%s or %s ARB\n\n",
		strings.Join(tokens.USDPresets, ", $"),
		strings.Join(tokens.SourcePresets, ", "))
}

func listOneClickTokens(cmd *cobra.Command, rt *runtime, jsonOutput bool) error {
	rt.cfg.Bridge.Provider = config.ProviderOneClick
	if err := rt.cfg.ValidateBridge(); err != nil {
		return err
	}
	b := rt.cfg.Bridge
	oc := client.NewOneClickBridge(b.OneClickBaseURL, b.JWTToken, b.Timeout, rt.log.Named("oneclick"))

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}
	list, err := oc.GetSupportedTokens(cmd.Context())
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	var filtered []oneclick.TokenResponse
	for _, token := range list {
		if strings.EqualFold(token.GetBlockchain(), "arb") {
			filtered = append(filtered, token)
		}
	}

	if jsonOutput {
		printJSON(filtered)
		return nil
	}
	displayOneClickTokens(filtered)
	return nil
}

func displayOneClickTokens(list []oneclick.TokenResponse) {
	if len(list) == 0 {
		fmt.Println("\nNo Arbitrum tokens returned by 1Click.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                        1CLICK TOKENS ON ARBITRUM")
	fmt.Println(strings.Repeat("=", 90))

	for _, token := range list {
		address := token.GetContractAddress()
		if len(address) > 44 {
			address = address[:41] + "..."
		}
		fmt.Printf("  %-10s  %2.0f decimals  %s\n",
			color.YellowString(token.GetSymbol()),
			float64(token.GetDecimals()),
			color.HiBlackString(address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(list))
}
