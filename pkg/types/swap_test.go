package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionRequiresBridgeStatus(t *testing.T) {
	cases := map[Action]bool{
		ActionTransfer: true,
		ActionBuy:      true,
		ActionSell:     true,
		ActionApproval: false,
		ActionFee:      false,
		"":             false,
		"mint":         false,
	}
	for action, want := range cases {
		assert.Equal(t, want, action.RequiresBridgeStatus(), "action %q", action)
	}
}

func TestQuoteTransactionCount(t *testing.T) {
	var nilQuote *Quote
	assert.Equal(t, 0, nilQuote.TransactionCount())

	q := &Quote{Steps: []Step{
		{Transactions: []Transaction{{}, {}}},
		{},
		{Transactions: []Transaction{{}}},
	}}
	assert.Equal(t, 3, q.TransactionCount())
}
