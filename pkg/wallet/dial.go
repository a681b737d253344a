package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to a network's RPC endpoint and checks that it serves the expected chain
func Dial(ctx context.Context, name, rpcURL string, chainID int64) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for network %s", name)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint for %s: %w", name, err)
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id from %s: %w", name, err)
	}
	if remote.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("network %s serves chain %s, expected %d", name, remote, chainID)
	}
	return client, nil
}
