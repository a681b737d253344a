package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"arb-buy/pkg/tokens"
	"arb-buy/pkg/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Caller is the read-only chain access needed for balances
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Balance is a wallet's holding of one token
type Balance struct {
	// Available is false when the wallet or token is not known yet
	Available bool
	Raw       *big.Int
	Decimals  int32
	Symbol    string
}

// Amount returns the balance in token units
func (b Balance) Amount() decimal.Decimal {
	if !b.Available || b.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(b.Raw, -b.Decimals)
}

// Display formats the balance for humans
func (b Balance) Display() string {
	if !b.Available {
		return "—"
	}
	return fmt.Sprintf("%s %s", b.Amount().Truncate(6).String(), b.Symbol)
}

// Source reads token balances from the configured chains
type Source struct {
	callers map[int64]Caller
}

// NewSource creates a balance source over per-chain callers
func NewSource(callers map[int64]Caller) *Source {
	return &Source{callers: callers}
}

// Fetch returns the balance of token held by owner on chainID. A missing owner or
// token yields an unavailable balance and no error.
func (s *Source) Fetch(ctx context.Context, owner, token string, chainID int64) (Balance, error) {
	owner = strings.TrimSpace(owner)
	token = strings.TrimSpace(token)
	if owner == "" || token == "" {
		return Balance{}, nil
	}
	if !common.IsHexAddress(owner) {
		return Balance{}, fmt.Errorf("invalid wallet address: %s", owner)
	}
	if !common.IsHexAddress(token) {
		return Balance{}, fmt.Errorf("invalid token address: %s", token)
	}

	caller, ok := s.callers[chainID]
	if !ok {
		return Balance{}, fmt.Errorf("chain %d not configured", chainID)
	}
	account := common.HexToAddress(owner)

	if strings.EqualFold(token, tokens.NativeAddress) {
		raw, err := caller.BalanceAt(ctx, account, nil)
		if err != nil {
			return Balance{}, fmt.Errorf("failed to get native balance: %w", err)
		}
		return Balance{Available: true, Raw: raw, Decimals: 18, Symbol: "ETH"}, nil
	}

	return s.erc20Balance(ctx, caller, common.HexToAddress(token), account)
}

func (s *Source) erc20Balance(ctx context.Context, caller Caller, token, account common.Address) (Balance, error) {
	parsed, err := wallet.ERC20()
	if err != nil {
		return Balance{}, err
	}

	call := func(method string, args ...interface{}) ([]interface{}, error) {
		data, err := parsed.Pack(method, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
		}
		out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, out)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("empty %s result", method)
		}
		return values, nil
	}

	balanceOut, err := call("balanceOf", account)
	if err != nil {
		return Balance{}, err
	}
	raw, ok := balanceOut[0].(*big.Int)
	if !ok {
		return Balance{}, fmt.Errorf("unexpected balanceOf result %T", balanceOut[0])
	}

	decimalsOut, err := call("decimals")
	if err != nil {
		return Balance{}, err
	}
	decimals, ok := decimalsOut[0].(uint8)
	if !ok {
		return Balance{}, fmt.Errorf("unexpected decimals result %T", decimalsOut[0])
	}

	// some tokens return bytes32 symbols; the balance is still usable without one
	symbol := ""
	if symbolOut, err := call("symbol"); err == nil {
		symbol, _ = symbolOut[0].(string)
	}

	return Balance{Available: true, Raw: raw, Decimals: int32(decimals), Symbol: symbol}, nil
}
