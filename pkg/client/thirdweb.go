package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"arb-buy/pkg/types"

	"go.uber.org/zap"
)

// ThirdwebBaseURL is the production Universal Bridge endpoint
const ThirdwebBaseURL = "https://bridge.thirdweb.com"

// ThirdwebBridge talks to the thirdweb Universal Bridge REST API
type ThirdwebBridge struct {
	baseURL  string
	clientID string
	http     *http.Client
	log      *zap.Logger
}

// NewThirdwebBridge creates a Universal Bridge client
func NewThirdwebBridge(baseURL, clientID string, timeout time.Duration, log *zap.Logger) *ThirdwebBridge {
	if baseURL == "" {
		baseURL = ThirdwebBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ThirdwebBridge{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Name returns the provider name
func (b *ThirdwebBridge) Name() string {
	return "thirdweb"
}

// wireInt decodes integers sent either as JSON numbers or as decimal/hex strings
type wireInt struct {
	big.Int
}

func (w *wireInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
		if s == "" {
			return nil
		}
	}
	if _, ok := w.SetString(s, base); !ok {
		return fmt.Errorf("invalid integer %q", string(data))
	}
	return nil
}

func (w *wireInt) bigInt() *big.Int {
	if w == nil {
		return nil
	}
	return new(big.Int).Set(&w.Int)
}

type thirdwebToken struct {
	ChainID int64  `json:"chainId"`
	Address string `json:"address"`
}

type thirdwebTx struct {
	ChainID              int64    `json:"chainId"`
	To                   string   `json:"to"`
	Data                 string   `json:"data"`
	Value                *wireInt `json:"value"`
	Gas                  *wireInt `json:"gas"`
	GasPrice             *wireInt `json:"gasPrice"`
	MaxFeePerGas         *wireInt `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *wireInt `json:"maxPriorityFeePerGas"`
	Action               string   `json:"action"`
}

type thirdwebStep struct {
	OriginToken      thirdwebToken `json:"originToken"`
	DestinationToken thirdwebToken `json:"destinationToken"`
	Transactions     []thirdwebTx  `json:"transactions"`
}

type thirdwebPrepare struct {
	OriginAmount             *wireInt       `json:"originAmount"`
	DestinationAmount        *wireInt       `json:"destinationAmount"`
	EstimatedExecutionTimeMs int64          `json:"estimatedExecutionTimeMs"`
	Steps                    []thirdwebStep `json:"steps"`
}

type thirdwebStatus struct {
	Status string `json:"status"`
}

// Quote prepares an exact-input sell of the origin token into the destination token
func (b *ThirdwebBridge) Quote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	receiver := req.Receiver
	if receiver == "" {
		receiver = req.Sender
	}

	q := url.Values{}
	q.Set("originChainId", strconv.FormatInt(req.OriginChainID, 10))
	q.Set("originTokenAddress", req.OriginToken)
	q.Set("destinationChainId", strconv.FormatInt(req.DestinationChainID, 10))
	q.Set("destinationTokenAddress", req.DestinationToken)
	q.Set("amount", req.Amount.String())
	q.Set("sender", req.Sender)
	q.Set("receiver", receiver)

	var prepared thirdwebPrepare
	if err := b.get(ctx, "/v1/sell/prepare", q, &prepared); err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	quote := &types.Quote{
		Provider:               b.Name(),
		OriginAmount:           prepared.OriginAmount.bigInt(),
		DestinationAmount:      prepared.DestinationAmount.bigInt(),
		EstimatedExecutionTime: time.Duration(prepared.EstimatedExecutionTimeMs) * time.Millisecond,
		Steps:                  make([]types.Step, 0, len(prepared.Steps)),
	}
	for _, s := range prepared.Steps {
		step := types.Step{
			OriginChainID:      s.OriginToken.ChainID,
			OriginToken:        s.OriginToken.Address,
			DestinationChainID: s.DestinationToken.ChainID,
			DestinationToken:   s.DestinationToken.Address,
			Transactions:       make([]types.Transaction, 0, len(s.Transactions)),
		}
		for _, t := range s.Transactions {
			tx := types.Transaction{
				ChainID:              t.ChainID,
				To:                   t.To,
				Data:                 t.Data,
				Value:                t.Value.bigInt(),
				GasPrice:             t.GasPrice.bigInt(),
				MaxFeePerGas:         t.MaxFeePerGas.bigInt(),
				MaxPriorityFeePerGas: t.MaxPriorityFeePerGas.bigInt(),
				Action:               types.Action(strings.ToLower(t.Action)),
			}
			if t.Gas != nil && t.Gas.IsUint64() {
				gas := t.Gas.Uint64()
				tx.Gas = &gas
			}
			step.Transactions = append(step.Transactions, tx)
		}
		quote.Steps = append(quote.Steps, step)
	}

	b.log.Debug("quote received",
		zap.Int("steps", len(quote.Steps)),
		zap.Int("transactions", quote.TransactionCount()),
		zap.Duration("estimated", quote.EstimatedExecutionTime),
	)
	return quote, nil
}

// Status reports the bridge state of a submitted transaction
func (b *ThirdwebBridge) Status(ctx context.Context, sub types.SubmissionResult) (types.BridgeStatus, error) {
	if sub.Hash == "" {
		return "", fmt.Errorf("transaction hash is required")
	}
	q := url.Values{}
	q.Set("transactionHash", sub.Hash)
	q.Set("chainId", strconv.FormatInt(sub.ChainID, 10))

	var status thirdwebStatus
	if err := b.get(ctx, "/v1/status", q, &status); err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	return mapThirdwebStatus(status.Status), nil
}

// mapThirdwebStatus folds NOT_FOUND and unknown states into pending
func mapThirdwebStatus(s string) types.BridgeStatus {
	switch strings.ToUpper(s) {
	case "COMPLETED":
		return types.StatusCompleted
	case "FAILED":
		return types.StatusFailed
	default:
		return types.StatusPending
	}
}

func (b *ThirdwebBridge) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if b.clientID != "" {
		req.Header.Set("x-client-id", b.clientID)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
