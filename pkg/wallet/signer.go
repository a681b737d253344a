package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"arb-buy/pkg/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ErrReverted is returned when a mined transaction has a failed receipt
var ErrReverted = errors.New("transaction reverted")

// ChainClient is the subset of ethclient.Client the signer needs
type ChainClient interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// Network is a chain the signer can submit to
type Network struct {
	Name     string
	ChainID  int64
	Client   ChainClient
	GasLimit *uint64
	GasPrice *int64
}

// Signer signs and submits prepared transactions with a single key
type Signer struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	networks map[int64]Network
	log      *zap.Logger
}

// NewSigner creates a signer for the given networks
func NewSigner(key *ecdsa.PrivateKey, networks []Network, log *zap.Logger) (*Signer, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	if log == nil {
		log = zap.NewNop()
	}

	byChain := make(map[int64]Network, len(networks))
	for _, n := range networks {
		if n.Client == nil {
			return nil, fmt.Errorf("network %s has no client", n.Name)
		}
		byChain[n.ChainID] = n
	}

	return &Signer{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		networks: byChain,
		log:      log,
	}, nil
}

// Address returns the sender address
func (s *Signer) Address() common.Address {
	return s.address
}

// Network returns the network configured for chainID
func (s *Signer) Network(chainID int64) (Network, bool) {
	n, ok := s.networks[chainID]
	return n, ok
}

// Prepare binds tx to its declared chain
func (s *Signer) Prepare(_ context.Context, tx types.Transaction) (*types.PreparedTransaction, error) {
	if _, ok := s.networks[tx.ChainID]; !ok {
		return nil, fmt.Errorf("chain %d not configured", tx.ChainID)
	}
	return BindTransaction(tx, s.address)
}

// SendAndConfirm fills missing nonce, gas and fee fields, signs, submits and
// waits for the transaction to be mined
func (s *Signer) SendAndConfirm(ctx context.Context, p *types.PreparedTransaction) (string, error) {
	network, ok := s.networks[p.ChainID.Int64()]
	if !ok {
		return "", fmt.Errorf("chain %s not configured", p.ChainID)
	}
	client := network.Client

	nonce, err := client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	value := p.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit, err := s.gasLimit(ctx, network, p, value)
	if err != nil {
		return "", err
	}

	txData, err := s.buildTx(ctx, network, p, nonce, gasLimit, value)
	if err != nil {
		return "", err
	}

	signed, err := gethtypes.SignTx(gethtypes.NewTx(txData), gethtypes.NewLondonSigner(p.ChainID), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	hash := signed.Hash().Hex()
	s.log.Debug("transaction sent",
		zap.String("hash", hash),
		zap.String("network", network.Name),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit),
	)

	receipt, err := bind.WaitMined(ctx, client, signed)
	if err != nil {
		return hash, fmt.Errorf("failed waiting for receipt: %w", err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("%w in block %s", ErrReverted, receipt.BlockNumber)
	}
	return hash, nil
}

// gasLimit uses the quoted gas, then the network override, then an estimate with a 20% buffer
func (s *Signer) gasLimit(ctx context.Context, network Network, p *types.PreparedTransaction, value *big.Int) (uint64, error) {
	if p.Gas != nil {
		return *p.Gas, nil
	}
	if network.GasLimit != nil {
		return *network.GasLimit, nil
	}

	to := p.To
	estimated, err := network.Client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  p.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return estimated * 120 / 100, nil
}

// buildTx picks a legacy transaction when a gas price is fixed and an EIP-1559
// transaction otherwise, filling absent fee fields from the node
func (s *Signer) buildTx(ctx context.Context, network Network, p *types.PreparedTransaction, nonce, gas uint64, value *big.Int) (gethtypes.TxData, error) {
	to := p.To
	noFees := p.GasPrice == nil && p.MaxFeePerGas == nil && p.MaxPriorityFeePerGas == nil

	gasPrice := p.GasPrice
	if gasPrice == nil && noFees && network.GasPrice != nil {
		gasPrice = big.NewInt(*network.GasPrice)
	}
	if gasPrice != nil && p.MaxFeePerGas == nil && p.MaxPriorityFeePerGas == nil {
		return &gethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     p.Data,
		}, nil
	}

	tip := p.MaxPriorityFeePerGas
	if tip == nil {
		suggested, err := network.Client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas tip: %w", err)
		}
		tip = suggested
	}

	feeCap := p.MaxFeePerGas
	if feeCap == nil {
		header, err := network.Client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest header: %w", err)
		}
		if header.BaseFee == nil {
			price, err := network.Client.SuggestGasPrice(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get gas price: %w", err)
			}
			feeCap = new(big.Int).Add(price, tip)
		} else {
			feeCap = new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), tip)
		}
	}
	if feeCap.Cmp(tip) < 0 {
		tip = new(big.Int).Set(feeCap)
	}

	return &gethtypes.DynamicFeeTx{
		ChainID:   p.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      p.Data,
	}, nil
}
