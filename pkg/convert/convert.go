// Package convert turns spend amounts between dollars, source token units and
// expected stablecoin output. Missing prices make results unknown, never zero.
package convert

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Mode selects which input field the user last edited
type Mode string

const (
	ModeUSD    Mode = "usd"
	ModeSource Mode = "source"
)

// usable reports whether a price can be divided by
func usable(price decimal.NullDecimal) bool {
	return price.Valid && price.Decimal.IsPositive()
}

// SourceToUSD converts an amount of the source token to dollars
func SourceToUSD(amount decimal.Decimal, sourceUSD decimal.NullDecimal) decimal.NullDecimal {
	if !usable(sourceUSD) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Mul(sourceUSD.Decimal))
}

// USDToSource converts dollars to an amount of the source token
func USDToSource(usd decimal.Decimal, sourceUSD decimal.NullDecimal) decimal.NullDecimal {
	if !usable(sourceUSD) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(usd.Div(sourceUSD.Decimal))
}

// USDToDestination estimates the stablecoin received for a dollar amount
func USDToDestination(usd decimal.Decimal, destUSD decimal.NullDecimal) decimal.NullDecimal {
	if !usable(destUSD) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(usd.Div(destUSD.Decimal))
}

// ToBaseUnits scales a token amount to its smallest unit, truncating any excess precision
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FromBaseUnits scales a smallest-unit amount back to token units
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// Pair holds the linked dollar and source-token inputs of a purchase form.
// The field edited last is authoritative and the other one is derived from it.
type Pair struct {
	mode      Mode
	usd       decimal.NullDecimal
	source    decimal.NullDecimal
	sourceUSD decimal.NullDecimal
	destUSD   decimal.NullDecimal
}

// NewPair creates an empty pair in dollar mode
func NewPair() *Pair {
	return &Pair{mode: ModeUSD}
}

// Mode returns the last edited field
func (p *Pair) Mode() Mode {
	return p.mode
}

// SetUSD records a dollar amount as the last edit
func (p *Pair) SetUSD(usd decimal.NullDecimal) {
	p.mode = ModeUSD
	p.usd = usd
	p.derive()
}

// SetSource records a source-token amount as the last edit
func (p *Pair) SetSource(amount decimal.NullDecimal) {
	p.mode = ModeSource
	p.source = amount
	p.derive()
}

// SetPrices updates the reference prices and re-derives the counterpart field
func (p *Pair) SetPrices(sourceUSD, destUSD decimal.NullDecimal) {
	p.sourceUSD = sourceUSD
	p.destUSD = destUSD
	p.derive()
}

func (p *Pair) derive() {
	switch p.mode {
	case ModeUSD:
		if p.usd.Valid {
			p.source = USDToSource(p.usd.Decimal, p.sourceUSD)
		} else {
			p.source = decimal.NullDecimal{}
		}
	case ModeSource:
		if p.source.Valid {
			p.usd = SourceToUSD(p.source.Decimal, p.sourceUSD)
		} else {
			p.usd = decimal.NullDecimal{}
		}
	}
}

// SpendUSD returns the dollar value of the spend
func (p *Pair) SpendUSD() decimal.NullDecimal {
	return p.usd
}

// SpendSource returns the spend in source-token units
func (p *Pair) SpendSource() decimal.NullDecimal {
	return p.source
}

// DestinationOut estimates the stablecoin amount the spend buys
func (p *Pair) DestinationOut() decimal.NullDecimal {
	if !p.usd.Valid {
		return decimal.NullDecimal{}
	}
	return USDToDestination(p.usd.Decimal, p.destUSD)
}

// CanBuy reports whether the spend is known and positive
func (p *Pair) CanBuy() bool {
	return p.source.Valid && p.source.Decimal.IsPositive()
}
