package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arb-buy/pkg/balance"
	"arb-buy/pkg/convert"
	"arb-buy/pkg/engine"
	"arb-buy/pkg/parser"
	"arb-buy/pkg/price"
	"arb-buy/pkg/purchase"
	"arb-buy/pkg/tokens"
)

var (
	recipientAddr string
	noConfirm     bool
)

var buyCmd = &cobra.Command{
	Use:   "buy <amount> [ARB|USD] to <stable>",
	Short: "Buy a stablecoin with ARB",
	Long: `Sell ARB from the configured wallet for a stablecoin on Arbitrum.

The amount is in ARB unless it starts with $ or is followed by USD. Every
transaction of the quote is signed and confirmed in order. Pressing Ctrl+C stops
waiting, but transactions that were already sent cannot be undone.

Examples:
  arb-buy buy $10 to USDC
  arb-buy buy 10 USD of USDT
  arb-buy buy 2.5 ARB to DAI --recipient 0x123... --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuy,
}

func init() {
	rootCmd.AddCommand(buyCmd)

	buyCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Address receiving the stablecoin (default: the wallet address)")
	buyCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt (required to send with --json)")
}

// preview is the purchase summary shown before confirmation
type preview struct {
	Spend       string `json:"spend"`
	SpendUSD    string `json:"spend_usd,omitempty"`
	Destination string `json:"destination"`
	EstimateOut string `json:"estimate_out,omitempty"`
	Balance     string `json:"balance"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Provider    string `json:"provider"`
	SourceUSD   string `json:"source_usd,omitempty"`
	DestUSD     string `json:"dest_usd,omitempty"`
}

func runBuy(cmd *cobra.Command, args []string) error {
	buyReq, err := parser.ParseBuyCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if err := parser.ValidateBuyRequest(buyReq); err != nil {
		return err
	}
	dest, err := tokens.FindStable(buyReq.DestToken)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	rt.serveMetrics(ctx)

	bridge, err := rt.bridge()
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching prices and balance..."
		s.Start()
	}

	pair := convert.NewPair()
	amount := parser.ToNumber(buyReq.Amount)
	if buyReq.InUSD {
		pair.SetUSD(amount)
	} else {
		pair.SetSource(amount)
	}
	sourceUSD, destUSD := fetchPrices(ctx, rt.priceSource(), rt.log, dest)
	pair.SetPrices(sourceUSD, destUSD)

	nets, err := rt.dial(ctx)
	if err != nil {
		s.Stop()
		return err
	}
	defer nets.close()

	signer, err := rt.signer(nets)
	if err != nil {
		s.Stop()
		return err
	}
	sender := signer.Address().Hex()

	bal, err := balance.NewSource(nets.callers).Fetch(ctx, sender, tokens.ARB.Address, tokens.ARB.ChainID)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		rt.log.Warn("failed to fetch balance", zap.Error(err))
	}

	if buyReq.InUSD && !pair.CanBuy() {
		return fmt.Errorf("ARB price unavailable, enter the amount in ARB instead")
	}

	receiver := recipientAddr
	if receiver == "" {
		receiver = sender
	}

	req := purchase.Request{
		Spend:       pair.SpendSource(),
		Source:      tokens.ARB,
		Destination: dest,
		Balance:     bal,
		Sender:      sender,
		Receiver:    receiver,
	}

	p := preview{
		Spend:       formatAmount(pair.SpendSource(), tokens.ARB.Symbol),
		SpendUSD:    formatUSD(pair.SpendUSD()),
		Destination: dest.Symbol,
		EstimateOut: formatAmount(pair.DestinationOut(), dest.Symbol),
		Balance:     bal.Display(),
		Sender:      sender,
		Recipient:   receiver,
		Provider:    bridge.Name(),
		SourceUSD:   formatUSD(sourceUSD),
		DestUSD:     formatUSD(destUSD),
	}
	if jsonOutput {
		printJSON(p)
	} else {
		displayPreview(p)
	}

	if err := purchase.Validate(req, signer, bridge); err != nil {
		return errors.New(purchase.UserMessage(err))
	}

	switch confirmationFor(jsonOutput, noConfirm, rt.cfg.AutoConfirm) {
	case confirmPreviewOnly:
		return nil
	case confirmPrompt:
		if !confirmPurchase() {
			fmt.Println("\nPurchase cancelled.")
			return nil
		}
	}

	eng := engine.New(bridge, engine.Config{
		MaxPollAttempts: rt.cfg.Bridge.PollAttempts,
		PollInterval:    rt.cfg.Bridge.PollInterval,
	}, rt.log.Named("engine"), rt.metrics)
	svc := purchase.NewService(bridge, eng, signer, rt.log)
	tracker := purchase.NewTracker()

	if !jsonOutput {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Start()
		tracker.Subscribe(func(st purchase.State) {
			s.Lock()
			s.Suffix = " " + st.Message
			s.Unlock()
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			tracker.Cancel()
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := svc.Run(ctx, req, tracker)
	if !jsonOutput {
		s.Stop()
	}

	state := tracker.State()
	if err != nil {
		if state.Phase == purchase.PhaseCancelled {
			color.Yellow("\n%s\n", state.Message)
		} else {
			color.Red("\n%s", purchase.UserMessage(err))
		}
		displaySubmissions(state)
		return err
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	color.Green("\n✓ Purchase complete in %s", result.Elapsed.Round(time.Second))
	displaySubmissions(state)
	return nil
}

type confirmation int

const (
	confirmPrompt confirmation = iota
	confirmSkip
	// confirmPreviewOnly prints the preview and sends nothing
	confirmPreviewOnly
)

// confirmationFor decides whether a previewed purchase is prompted for, sent
// without asking, or not sent. JSON output cannot prompt, so it sends only when
// --yes or auto_confirm is set.
func confirmationFor(jsonOutput, yes, autoConfirm bool) confirmation {
	switch {
	case yes || autoConfirm:
		return confirmSkip
	case jsonOutput:
		return confirmPreviewOnly
	default:
		return confirmPrompt
	}
}

// fetchPrices loads both reference prices in parallel. A failed lookup leaves
// that price unknown.
func fetchPrices(ctx context.Context, src *price.Source, log *zap.Logger, dest tokens.Asset) (decimal.NullDecimal, decimal.NullDecimal) {
	var sourceUSD, destUSD decimal.NullDecimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sourceUSD = lookupPrice(gctx, src, log, tokens.ARB)
		return nil
	})
	g.Go(func() error {
		destUSD = lookupPrice(gctx, src, log, dest)
		return nil
	})
	_ = g.Wait()

	return sourceUSD, destUSD
}

func lookupPrice(ctx context.Context, src *price.Source, log *zap.Logger, asset tokens.Asset) decimal.NullDecimal {
	usd, err := src.USD(ctx, asset.CoinGeckoID)
	if err != nil {
		log.Warn("price unavailable", zap.String("token", asset.Symbol), zap.Error(err))
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(usd))
}

func formatAmount(d decimal.NullDecimal, symbol string) string {
	if !d.Valid {
		return "—"
	}
	return fmt.Sprintf("%s %s", d.Decimal.Truncate(6).String(), symbol)
}

func formatUSD(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return "$" + d.Decimal.StringFixed(2)
}

func displayPreview(p preview) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    PURCHASE PREVIEW")
	fmt.Println(strings.Repeat("=", 60))

	spend := color.YellowString(p.Spend)
	if p.SpendUSD != "" {
		spend += " (~" + p.SpendUSD + ")"
	}
	fmt.Printf("\n  Spend:             %s\n", spend)
	fmt.Printf("  Receive:           ~%s\n", color.YellowString(p.EstimateOut))
	fmt.Printf("  Balance:           %s\n", p.Balance)
	fmt.Printf("  From:              %s\n", color.CyanString(p.Sender))
	fmt.Printf("  To:                %s\n", color.CyanString(p.Recipient))
	fmt.Printf("  Provider:          %s\n", p.Provider)
	fmt.Printf("  Prices:            %s\n", priceLine(p))

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func priceLine(p preview) string {
	unknown := func(v string) string {
		if v == "" {
			return "—"
		}
		return v
	}
	return fmt.Sprintf("1 ARB ≈ %s · 1 %s ≈ %s", unknown(p.SourceUSD), p.Destination, unknown(p.DestUSD))
}

func displaySubmissions(state purchase.State) {
	if len(state.Submissions) == 0 {
		return
	}
	fmt.Printf("\n  Transactions (%d of %d confirmed):\n", len(state.Submissions), state.Total)
	for _, sub := range state.Submissions {
		fmt.Printf("    %-9s %s\n", sub.Action, color.HiBlackString(sub.Hash))
	}
	fmt.Println()
}

func confirmPurchase() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with purchase? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func printJSON(v interface{}) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}
