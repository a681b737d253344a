package tokens

import (
	"fmt"
	"strings"
)

// ArbitrumChainID is the chain id of Arbitrum One
const ArbitrumChainID int64 = 42161

// NativeAddress is the sentinel address used for a chain's gas token
const NativeAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// Asset describes a token the CLI can spend or buy
type Asset struct {
	Symbol      string
	Name        string
	CoinGeckoID string
	Address     string
	Decimals    int32
	ChainID     int64
}

// IsNative reports whether the asset is the chain's gas token
func (a Asset) IsNative() bool {
	return strings.EqualFold(a.Address, NativeAddress)
}

// ARB is the asset spent by every purchase
var ARB = Asset{
	Symbol:      "ARB",
	Name:        "Arbitrum",
	CoinGeckoID: "arbitrum",
	Address:     "0x912CE59144191C1204E64559FE8253a0e49E6548",
	Decimals:    18,
	ChainID:     ArbitrumChainID,
}

// Stables lists the stablecoins that can be bought on Arbitrum
var Stables = []Asset{
	{Symbol: "USDC", Name: "USD Coin", CoinGeckoID: "usd-coin", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6, ChainID: ArbitrumChainID},
	{Symbol: "USDT", Name: "Tether USD", CoinGeckoID: "tether", Address: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", Decimals: 6, ChainID: ArbitrumChainID},
	{Symbol: "DAI", Name: "Dai Stablecoin", CoinGeckoID: "dai", Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18, ChainID: ArbitrumChainID},
	{Symbol: "FRAX", Name: "Frax", CoinGeckoID: "frax", Address: "0x17FC002b466eEc40DaE837Fc4bE5c67993ddBd6F", Decimals: 18, ChainID: ArbitrumChainID},
}

// USDPresets are the quick-pick spend amounts in dollars
var USDPresets = []string{"5", "10", "20"}

// SourcePresets are the quick-pick spend amounts in ARB
var SourcePresets = []string{"0.01", "0.1", "1"}

// FindStable looks up a stablecoin by symbol
func FindStable(symbol string) (Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, s := range Stables {
		if s.Symbol == symbol {
			return s, nil
		}
	}
	return Asset{}, fmt.Errorf("stablecoin '%s' not supported", symbol)
}

// Find looks up any known asset by symbol
func Find(symbol string) (Asset, error) {
	if strings.EqualFold(strings.TrimSpace(symbol), ARB.Symbol) {
		return ARB, nil
	}
	return FindStable(symbol)
}
