package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Action tags what a bridge transaction does
type Action string

const (
	ActionApproval Action = "approval"
	ActionTransfer Action = "transfer"
	ActionBuy      Action = "buy"
	ActionSell     Action = "sell"
	ActionFee      Action = "fee"
)

// RequiresBridgeStatus reports whether a confirmed transaction with this action
// still has to be completed by the bridge on another chain
func (a Action) RequiresBridgeStatus() bool {
	switch a {
	case ActionTransfer, ActionBuy, ActionSell:
		return true
	default:
		return false
	}
}

// BridgeStatus is the normalized state of a cross-chain leg
type BridgeStatus string

const (
	StatusPending   BridgeStatus = "PENDING"
	StatusCompleted BridgeStatus = "COMPLETED"
	StatusFailed    BridgeStatus = "FAILED"
)

// Transaction is one unsigned transaction as returned by the bridge quote service.
// Optional numeric fields are nil when the quote did not provide them.
type Transaction struct {
	ChainID              int64    `json:"chainId"`
	To                   string   `json:"to"`
	Data                 string   `json:"data"`
	Value                *big.Int `json:"value,omitempty"`
	Gas                  *uint64  `json:"gas,omitempty"`
	GasPrice             *big.Int `json:"gasPrice,omitempty"`
	MaxFeePerGas         *big.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *big.Int `json:"maxPriorityFeePerGas,omitempty"`
	Action               Action   `json:"action,omitempty"`
	// StatusKey is the provider specific handle used for status queries
	StatusKey string `json:"statusKey,omitempty"`
}

// Step is one leg of a route
type Step struct {
	OriginChainID      int64         `json:"originChainId"`
	OriginToken        string        `json:"originToken"`
	DestinationChainID int64         `json:"destinationChainId"`
	DestinationToken   string        `json:"destinationToken"`
	Transactions       []Transaction `json:"transactions"`
}

// Quote is an executable route returned by a bridge provider
type Quote struct {
	Provider               string        `json:"provider"`
	OriginAmount           *big.Int      `json:"originAmount,omitempty"`
	DestinationAmount      *big.Int      `json:"destinationAmount,omitempty"`
	Steps                  []Step        `json:"steps"`
	EstimatedExecutionTime time.Duration `json:"estimatedExecutionTime"`
}

// TransactionCount returns the number of transactions across all steps
func (q *Quote) TransactionCount() int {
	if q == nil {
		return 0
	}
	n := 0
	for _, step := range q.Steps {
		n += len(step.Transactions)
	}
	return n
}

// PreparedTransaction is a Transaction bound to a chain and a sender, ready to sign
type PreparedTransaction struct {
	ChainID              *big.Int
	From                 common.Address
	To                   common.Address
	Data                 []byte
	Value                *big.Int
	Gas                  *uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Action               Action
}

// SubmissionResult records a transaction that was mined
type SubmissionResult struct {
	Hash      string `json:"hash"`
	ChainID   int64  `json:"chainId"`
	Action    Action `json:"action,omitempty"`
	StatusKey string `json:"statusKey,omitempty"`
}

// BuyRequest represents a parsed buy command
type BuyRequest struct {
	Amount      string
	InUSD       bool
	SourceToken string
	DestToken   string
	Recipient   string
}
