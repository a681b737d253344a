package convert

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestRoundTrip(t *testing.T) {
	p := price("0.75")
	for _, in := range []string{"0.01", "1", "5", "123.456789"} {
		src := USDToSource(dec(in), p)
		require.True(t, src.Valid)
		back := SourceToUSD(src.Decimal, p)
		require.True(t, back.Valid)
		assert.True(t, back.Decimal.Sub(dec(in)).Abs().LessThan(dec("0.000001")), "round trip of %s gave %s", in, back.Decimal)
	}
}

func TestUnknownPrice(t *testing.T) {
	for _, p := range []decimal.NullDecimal{{}, price("0"), price("-1")} {
		assert.False(t, SourceToUSD(dec("5"), p).Valid)
		assert.False(t, USDToSource(dec("5"), p).Valid)
		assert.False(t, USDToDestination(dec("5"), p).Valid)
	}
}

func TestBaseUnits(t *testing.T) {
	raw := ToBaseUnits(dec("1.5"), 18)
	assert.Equal(t, "1500000000000000000", raw.String())

	assert.Equal(t, "1234567", ToBaseUnits(dec("1.2345678"), 6).String())
	assert.True(t, FromBaseUnits(big.NewInt(1_200_000), 6).Equal(dec("1.2")))
	assert.True(t, FromBaseUnits(nil, 6).IsZero())
}

func TestPairLastEditWins(t *testing.T) {
	p := NewPair()
	p.SetPrices(price("0.5"), price("1"))

	p.SetUSD(price("10"))
	assert.Equal(t, ModeUSD, p.Mode())
	require.True(t, p.SpendSource().Valid)
	assert.True(t, p.SpendSource().Decimal.Equal(dec("20")))

	p.SetSource(price("4"))
	assert.Equal(t, ModeSource, p.Mode())
	assert.True(t, p.SpendUSD().Decimal.Equal(dec("2")))

	// the source field stays authoritative when prices move
	p.SetPrices(price("1"), price("1"))
	assert.True(t, p.SpendSource().Decimal.Equal(dec("4")))
	assert.True(t, p.SpendUSD().Decimal.Equal(dec("4")))
	assert.True(t, p.DestinationOut().Decimal.Equal(dec("4")))
	assert.True(t, p.CanBuy())
}

func TestPairWithoutPrices(t *testing.T) {
	p := NewPair()
	p.SetUSD(price("10"))
	assert.False(t, p.SpendSource().Valid)
	assert.False(t, p.DestinationOut().Valid)
	assert.False(t, p.CanBuy())

	p.SetSource(decimal.NullDecimal{})
	assert.False(t, p.SpendUSD().Valid)
	assert.False(t, p.CanBuy())

	p.SetSource(price("0"))
	assert.False(t, p.CanBuy())
}
