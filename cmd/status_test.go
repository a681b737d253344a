package cmd

import (
	"testing"

	"arb-buy/config"
	"arb-buy/pkg/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusNetwork(t *testing.T) {
	cfg := config.Default()

	name, err := statusNetwork(cfg, tokens.ArbitrumChainID)
	require.NoError(t, err)
	assert.Equal(t, "arbitrum", name)

	_, err = statusNetwork(cfg, 8453)
	assert.ErrorContains(t, err, "chain 8453 is not configured")

	cfg.Networks["base"] = config.EVMNetwork{ChainID: 8453, RPCUrl: "http://localhost:9545"}
	name, err = statusNetwork(cfg, 8453)
	require.NoError(t, err)
	assert.Equal(t, "base", name)
}
