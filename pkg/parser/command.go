package parser

import (
	"fmt"
	"regexp"
	"strings"

	"arb-buy/pkg/types"

	"github.com/shopspring/decimal"
)

var buyPattern = regexp.MustCompile(`^(\$)?(\d+\.?\d*)\s*(ARB|USD)?\s+(?:TO|OF|FOR)\s+([A-Z0-9.]+)$`)

// ParseBuyCommand parses a buy command
// Examples:
//   - "buy 5 ARB to USDC"
//   - "$10 to DAI"
//   - "10 USD of USDT"
//   - "0.5 to FRAX" (amount in ARB)
func ParseBuyCommand(command string) (*types.BuyRequest, error) {
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "BUY ")
	command = strings.Join(strings.Fields(command), " ")

	matches := buyPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid buy command format. Expected: 'buy <amount> [ARB|USD] to <stable>' (e.g., 'buy $10 to USDC')")
	}

	return &types.BuyRequest{
		Amount:      matches[2],
		InUSD:       matches[1] == "$" || matches[3] == "USD",
		SourceToken: "ARB",
		DestToken:   NormalizeTokenSymbol(matches[4]),
	}, nil
}

// ValidateBuyRequest validates that a buy request has all required fields
func ValidateBuyRequest(req *types.BuyRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if !ToNumber(req.Amount).Valid {
		return fmt.Errorf("amount '%s' is not a number", req.Amount)
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"USDC.E": "USDC",
		"USDT0":  "USDT",
		"XDAI":   "DAI",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}

// ClampInput keeps only digits and the first decimal point of raw user input
func ClampInput(raw string) string {
	var b strings.Builder
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ToNumber parses user input into a decimal. Empty or unparseable input is
// reported as invalid rather than zero.
func ToNumber(raw string) decimal.NullDecimal {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "." {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
