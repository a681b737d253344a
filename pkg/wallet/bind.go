package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"arb-buy/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BindTransaction binds a quote transaction to its chain and a sender.
// Value, gas and fee fields are copied only when the quote provided them.
func BindTransaction(tx types.Transaction, from common.Address) (*types.PreparedTransaction, error) {
	if tx.ChainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", tx.ChainID)
	}
	if !common.IsHexAddress(tx.To) {
		return nil, fmt.Errorf("invalid destination address: %s", tx.To)
	}

	var data []byte
	if raw := strings.TrimSpace(tx.Data); raw != "" && raw != "0x" {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid calldata: %w", err)
		}
		data = decoded
	}

	prepared := &types.PreparedTransaction{
		ChainID:              big.NewInt(tx.ChainID),
		From:                 from,
		To:                   common.HexToAddress(tx.To),
		Data:                 data,
		Value:                copyInt(tx.Value),
		GasPrice:             copyInt(tx.GasPrice),
		MaxFeePerGas:         copyInt(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: copyInt(tx.MaxPriorityFeePerGas),
		Action:               tx.Action,
	}
	if tx.Gas != nil {
		gas := *tx.Gas
		prepared.Gas = &gas
	}
	return prepared, nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
