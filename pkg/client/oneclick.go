package client

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"arb-buy/pkg/tokens"
	"arb-buy/pkg/types"
	"arb-buy/pkg/wallet"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// oneClickChains maps EVM chain ids to 1Click blockchain names
var oneClickChains = map[int64]string{
	1:                      "eth",
	10:                     "op",
	137:                    "pol",
	8453:                   "base",
	tokens.ArbitrumChainID: "arb",
}

// OneClickBridge quotes purchases through the NEAR Intents 1Click API. A quote is a
// single transfer to a deposit address; the deposit address is the status key.
type OneClickBridge struct {
	client   *oneclick.APIClient
	jwtToken string
	log      *zap.Logger

	// deposits already reported to the API, keyed by deposit address
	submitted sync.Map
}

// NewOneClickBridge creates a 1Click API client. An empty baseURL keeps the SDK default.
func NewOneClickBridge(baseURL, jwtToken string, timeout time.Duration, log *zap.Logger) *OneClickBridge {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}
	if timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &OneClickBridge{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
		log:      log,
	}
}

// Name returns the provider name
func (c *OneClickBridge) Name() string {
	return "oneclick"
}

// authContext attaches the JWT to a request context
func (c *OneClickBridge) authContext(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickBridge) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// FindTokenByAddress finds a token by contract address on an EVM chain
func (c *OneClickBridge) FindTokenByAddress(ctx context.Context, chainID int64, address string) (*oneclick.TokenResponse, error) {
	chain, ok := oneClickChains[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d not supported by 1Click", chainID)
	}

	list, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}
	return matchToken(list, chain, address)
}

func matchToken(list []oneclick.TokenResponse, chain, address string) (*oneclick.TokenResponse, error) {
	native := strings.EqualFold(address, tokens.NativeAddress)
	for i := range list {
		token := list[i]
		if !strings.EqualFold(token.GetBlockchain(), chain) {
			continue
		}
		contract := token.GetContractAddress()
		if native && contract == "" {
			return &token, nil
		}
		if contract != "" && strings.EqualFold(contract, address) {
			return &token, nil
		}
	}
	return nil, fmt.Errorf("token %s not found on chain '%s'", address, chain)
}

// Quote requests a deposit address for the swap and returns the deposit transfer
func (c *OneClickBridge) Quote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	recipient := req.Receiver
	if recipient == "" {
		recipient = req.Sender
	}

	sourceToken, err := c.FindTokenByAddress(ctx, req.OriginChainID, req.OriginToken)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	destToken, err := c.FindTokenByAddress(ctx, req.DestinationChainID, req.DestinationToken)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	quoteReq := oneclick.NewQuoteRequest(
		false,
		"EXACT_INPUT",
		100, // 1% slippage in basis points
		sourceToken.GetAssetId(),
		"ORIGIN_CHAIN",
		destToken.GetAssetId(),
		req.Amount.String(),
		req.Sender,
		"ORIGIN_CHAIN",
		recipient,
		"DESTINATION_CHAIN",
		time.Now().Add(time.Hour),
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authContext(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		if httpResp != nil {
			defer httpResp.Body.Close()
			body, readErr := io.ReadAll(httpResp.Body)
			if readErr == nil && len(body) > 0 {
				return nil, newAPIError(httpResp.StatusCode, body)
			}
			return nil, fmt.Errorf("failed to get quote from API (status: %d): %w", httpResp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	details := resp.GetQuote()
	depositAddress := details.GetDepositAddress()
	if depositAddress == "" {
		return nil, fmt.Errorf("quote has no deposit address")
	}

	tx, err := depositTransaction(req.OriginChainID, req.OriginToken, depositAddress, req.Amount)
	if err != nil {
		return nil, err
	}

	quote := &types.Quote{
		Provider:               c.Name(),
		OriginAmount:           new(big.Int).Set(req.Amount),
		EstimatedExecutionTime: time.Duration(float64(details.GetTimeEstimate()) * float64(time.Second)),
		Steps: []types.Step{{
			OriginChainID:      req.OriginChainID,
			OriginToken:        req.OriginToken,
			DestinationChainID: req.DestinationChainID,
			DestinationToken:   req.DestinationToken,
			Transactions:       []types.Transaction{tx},
		}},
	}
	if out, err := decimal.NewFromString(details.GetAmountOutFormatted()); err == nil {
		quote.DestinationAmount = out.Shift(int32(destToken.GetDecimals())).Truncate(0).BigInt()
	}

	c.log.Debug("quote received",
		zap.String("deposit_address", depositAddress),
		zap.String("amount_in", details.GetAmountInFormatted()),
		zap.String("amount_out", details.GetAmountOutFormatted()),
	)
	return quote, nil
}

// depositTransaction builds the transfer of amount to the deposit address
func depositTransaction(chainID int64, token, depositAddress string, amount *big.Int) (types.Transaction, error) {
	if !common.IsHexAddress(depositAddress) {
		return types.Transaction{}, fmt.Errorf("invalid deposit address: %s", depositAddress)
	}

	tx := types.Transaction{
		ChainID:   chainID,
		Action:    types.ActionTransfer,
		StatusKey: depositAddress,
	}
	if strings.EqualFold(token, tokens.NativeAddress) {
		tx.To = depositAddress
		tx.Data = "0x"
		tx.Value = new(big.Int).Set(amount)
		return tx, nil
	}

	data, err := wallet.TransferData(common.HexToAddress(depositAddress), amount)
	if err != nil {
		return types.Transaction{}, err
	}
	tx.To = token
	tx.Data = hexutil.Encode(data)
	return tx, nil
}

// Status reports the deposit once, then reads the swap's execution status
func (c *OneClickBridge) Status(ctx context.Context, sub types.SubmissionResult) (types.BridgeStatus, error) {
	depositAddress := sub.StatusKey
	if depositAddress == "" {
		return "", fmt.Errorf("submission has no deposit address")
	}

	if _, done := c.submitted.Load(depositAddress); !done && sub.Hash != "" {
		if err := c.SubmitDepositTx(ctx, depositAddress, sub.Hash); err != nil {
			c.log.Warn("failed to report deposit", zap.String("deposit_address", depositAddress), zap.Error(err))
		} else {
			c.submitted.Store(depositAddress, struct{}{})
		}
	}

	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authContext(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return mapOneClickStatus(resp.GetStatus()), nil
}

// mapOneClickStatus normalizes the 1Click swap states
func mapOneClickStatus(s string) types.BridgeStatus {
	switch strings.ToUpper(s) {
	case "SUCCESS", "COMPLETED":
		return types.StatusCompleted
	case "FAILED", "REFUNDED":
		return types.StatusFailed
	default:
		return types.StatusPending
	}
}

// SubmitDepositTx submits the deposit transaction hash
func (c *OneClickBridge) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.authContext(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return nil
}
