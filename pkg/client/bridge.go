package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"arb-buy/pkg/types"
)

// QuoteRequest describes an exact-input purchase
type QuoteRequest struct {
	OriginChainID      int64
	OriginToken        string
	DestinationChainID int64
	DestinationToken   string
	// Amount is the spend in the origin token's smallest unit
	Amount   *big.Int
	Sender   string
	Receiver string
}

// Validate checks that every field needed for a quote is present
func (r QuoteRequest) Validate() error {
	if r.OriginChainID <= 0 || r.DestinationChainID <= 0 {
		return fmt.Errorf("origin and destination chain are required")
	}
	if r.OriginToken == "" || r.DestinationToken == "" {
		return fmt.Errorf("origin and destination token are required")
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.Sender == "" {
		return fmt.Errorf("sender address is required")
	}
	return nil
}

// Bridge quotes purchases and reports the status of cross-chain legs
type Bridge interface {
	Name() string
	Quote(ctx context.Context, req QuoteRequest) (*types.Quote, error)
	Status(ctx context.Context, sub types.SubmissionResult) (types.BridgeStatus, error)
}

// APIError is a non-2xx response from a bridge API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// newAPIError extracts the most useful message from an error body
func newAPIError(status int, body []byte) *APIError {
	if len(body) == 0 {
		return &APIError{Status: status, Message: fmt.Sprintf("API returned status code %d", status)}
	}

	var errorResp map[string]interface{}
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if message, ok := errorResp["message"].(string); ok {
			return &APIError{Status: status, Message: message}
		}
		if errors, ok := errorResp["errors"]; ok {
			return &APIError{Status: status, Message: fmt.Sprintf("%v", errors)}
		}
		if message, ok := errorResp["error"].(string); ok {
			return &APIError{Status: status, Message: message}
		}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}
