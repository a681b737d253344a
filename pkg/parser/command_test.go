package parser

import (
	"testing"

	"arb-buy/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuyCommand(t *testing.T) {
	tests := []struct {
		in     string
		amount string
		usd    bool
		dest   string
	}{
		{"buy 5 ARB to USDC", "5", false, "USDC"},
		{"$10 to dai", "10", true, "DAI"},
		{"buy 10 usd of USDT", "10", true, "USDT"},
		{"0.5 to frax", "0.5", false, "FRAX"},
		{"  buy   1.25   arb   for   usdc.e ", "1.25", false, "USDC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req, err := ParseBuyCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.amount, req.Amount)
			assert.Equal(t, tt.usd, req.InUSD)
			assert.Equal(t, "ARB", req.SourceToken)
			assert.Equal(t, tt.dest, req.DestToken)
		})
	}
}

func TestParseBuyCommandRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "buy USDC", "swap 1 SOL to USDC", "buy -5 ARB to USDC"} {
		_, err := ParseBuyCommand(in)
		assert.Error(t, err, in)
	}
}

func TestValidateBuyRequest(t *testing.T) {
	assert.NoError(t, ValidateBuyRequest(&types.BuyRequest{Amount: "1", SourceToken: "ARB", DestToken: "USDC"}))
	assert.Error(t, ValidateBuyRequest(&types.BuyRequest{SourceToken: "ARB", DestToken: "USDC"}))
	assert.Error(t, ValidateBuyRequest(&types.BuyRequest{Amount: "abc", SourceToken: "ARB", DestToken: "USDC"}))
	assert.Error(t, ValidateBuyRequest(&types.BuyRequest{Amount: "1", SourceToken: "ARB"}))
}

func TestClampInput(t *testing.T) {
	assert.Equal(t, "12.34", ClampInput("$12.34"))
	assert.Equal(t, "1.234", ClampInput("1.2.3.4"))
	assert.Equal(t, "1000", ClampInput("1,000"))
	assert.Equal(t, "", ClampInput("abc"))
}

func TestToNumber(t *testing.T) {
	assert.False(t, ToNumber("").Valid)
	assert.False(t, ToNumber(".").Valid)
	assert.False(t, ToNumber("NaN").Valid)

	n := ToNumber("0.75")
	require.True(t, n.Valid)
	assert.Equal(t, "0.75", n.Decimal.String())
}
