package purchase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"arb-buy/pkg/balance"
	"arb-buy/pkg/client"
	"arb-buy/pkg/engine"
	"arb-buy/pkg/tokens"
	"arb-buy/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sender = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

type mockBridge struct {
	mock.Mock
}

func (m *mockBridge) Name() string { return "mock" }

func (m *mockBridge) Quote(ctx context.Context, req client.QuoteRequest) (*types.Quote, error) {
	args := m.Called(ctx, req)
	if q, ok := args.Get(0).(*types.Quote); ok {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBridge) Status(ctx context.Context, sub types.SubmissionResult) (types.BridgeStatus, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(types.BridgeStatus), args.Error(1)
}

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) Prepare(ctx context.Context, tx types.Transaction) (*types.PreparedTransaction, error) {
	args := m.Called(ctx, tx)
	if p, ok := args.Get(0).(*types.PreparedTransaction); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSigner) SendAndConfirm(ctx context.Context, tx *types.PreparedTransaction) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

func arbBalance(amount string) balance.Balance {
	raw := decimal.RequireFromString(amount).Shift(18).BigInt()
	return balance.Balance{Available: true, Raw: raw, Decimals: 18, Symbol: "ARB"}
}

func request(spend string, bal balance.Balance) Request {
	usdc, _ := tokens.FindStable("USDC")
	return Request{
		Spend:       decimal.NewNullDecimal(decimal.RequireFromString(spend)),
		Source:      tokens.ARB,
		Destination: usdc,
		Balance:     bal,
		Sender:      sender,
	}
}

func TestValidateInsufficientBalanceMakesNoCalls(t *testing.T) {
	bridge := new(mockBridge)
	signer := new(mockSigner)
	eng := engine.New(bridge, engine.Config{}, zap.NewNop(), nil)
	svc := NewService(bridge, eng, signer, zap.NewNop())
	tracker := NewTracker()

	_, err := svc.Run(context.Background(), request("5", arbBalance("1.2")), tracker)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "1.2 ARB")

	bridge.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	bridge.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
	signer.AssertNotCalled(t, "Prepare", mock.Anything, mock.Anything)
	signer.AssertNotCalled(t, "SendAndConfirm", mock.Anything, mock.Anything)

	state := tracker.State()
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, "Insufficient balance for this purchase.", state.Message)
}

func TestValidate(t *testing.T) {
	bridge := new(mockBridge)
	signer := new(mockSigner)

	assert.NoError(t, Validate(request("1", arbBalance("1.2")), signer, bridge))
	assert.NoError(t, Validate(request("1.2", arbBalance("1.2")), signer, bridge))

	assert.ErrorIs(t, Validate(request("0", arbBalance("1.2")), signer, bridge), ErrInvalidAmount)
	assert.ErrorIs(t, Validate(request("-1", arbBalance("1.2")), signer, bridge), ErrInvalidAmount)
	assert.ErrorIs(t, Validate(Request{Balance: arbBalance("1")}, signer, bridge), ErrInvalidAmount)
	assert.ErrorIs(t, Validate(request("1", arbBalance("1.2")), nil, bridge), ErrMissingSigner)
	assert.ErrorIs(t, Validate(request("1", arbBalance("1.2")), signer, nil), ErrMissingClient)
	assert.ErrorIs(t, Validate(request("1", balance.Balance{}), signer, bridge), ErrInsufficientBalance)

	noSender := request("1", arbBalance("2"))
	noSender.Sender = ""
	assert.ErrorIs(t, Validate(noSender, signer, bridge), ErrMissingSigner)
}

func TestRunExecutesQuote(t *testing.T) {
	bridge := new(mockBridge)
	signer := new(mockSigner)

	quote := &types.Quote{
		Provider:               "mock",
		EstimatedExecutionTime: 20 * time.Second,
		Steps: []types.Step{{Transactions: []types.Transaction{
			{ChainID: 42161, To: tokens.ARB.Address, Data: "0x01", Action: types.ActionApproval},
			{ChainID: 42161, To: "0x1111111111111111111111111111111111111111", Data: "0x02", Action: types.ActionTransfer},
		}}},
	}
	bridge.On("Quote", mock.Anything, mock.MatchedBy(func(req client.QuoteRequest) bool {
		want, _ := new(big.Int).SetString("2500000000000000000", 10)
		return req.Amount.Cmp(want) == 0 && req.Sender == sender && req.OriginToken == tokens.ARB.Address
	})).Return(quote, nil).Once()
	bridge.On("Status", mock.Anything, mock.Anything).Return(types.StatusPending, nil).Once()
	bridge.On("Status", mock.Anything, mock.Anything).Return(types.StatusCompleted, nil).Once()

	hashes := []string{"0xaaa", "0xbbb"}
	for i, tx := range quote.Steps[0].Transactions {
		prepared := &types.PreparedTransaction{ChainID: big.NewInt(tx.ChainID), Action: tx.Action, Data: []byte{byte(i + 1)}}
		signer.On("Prepare", mock.Anything, tx).Return(prepared, nil).Once()
		signer.On("SendAndConfirm", mock.Anything, prepared).Return(hashes[i], nil).Once()
	}

	eng := engine.New(bridge, engine.Config{MaxPollAttempts: 5, Sleep: func(context.Context, time.Duration) error { return nil }}, zap.NewNop(), nil)
	svc := NewService(bridge, eng, signer, zap.NewNop())
	tracker := NewTracker()

	var phases []Phase
	tracker.Subscribe(func(s State) { phases = append(phases, s.Phase) })

	result, err := svc.Run(context.Background(), request("2.5", arbBalance("3")), tracker)
	require.NoError(t, err)
	require.Len(t, result.Submissions, 2)
	assert.Equal(t, "0xbbb", result.Submissions[1].Hash)

	state := tracker.State()
	assert.Equal(t, PhaseSucceeded, state.Phase)
	assert.Equal(t, 2, state.Completed)
	assert.Equal(t, 2, state.Total)
	assert.Equal(t, 20*time.Second, state.Estimated)
	assert.Equal(t, []Phase{PhaseQuoting, PhaseSubmitting, PhaseSubmitting, PhaseBridging, PhaseSucceeded}, phases)

	bridge.AssertExpectations(t)
	signer.AssertExpectations(t)
}

func TestRunQuoteFailure(t *testing.T) {
	bridge := new(mockBridge)
	signer := new(mockSigner)
	bridge.On("Quote", mock.Anything, mock.Anything).Return(nil, errors.New("no route"))

	svc := NewService(bridge, engine.New(bridge, engine.Config{}, nil, nil), signer, nil)
	tracker := NewTracker()

	_, err := svc.Run(context.Background(), request("1", arbBalance("2")), tracker)
	assert.ErrorContains(t, err, "no route")
	assert.Equal(t, PhaseFailed, tracker.State().Phase)
	signer.AssertNotCalled(t, "Prepare", mock.Anything, mock.Anything)
}

func TestTrackerCancelSuppressesUpdates(t *testing.T) {
	tracker := NewTracker()
	updates := 0
	tracker.Subscribe(func(State) { updates++ })

	tracker.Quoting()
	tracker.Executing(&types.Quote{Steps: []types.Step{{Transactions: []types.Transaction{{}, {}}}}})
	tracker.Cancel()
	require.Equal(t, 3, updates)

	_ = tracker.Confirmed(engine.Progress{Completed: 1, Total: 2})
	tracker.Fail(errors.New("late"))
	tracker.Succeed(&engine.Result{})
	tracker.Cancel()

	state := tracker.State()
	assert.Equal(t, PhaseCancelled, state.Phase)
	assert.Equal(t, 0, state.Completed)
	assert.Contains(t, state.Message, "cannot be undone")
	assert.Equal(t, 3, updates)
}

func TestTrackerCancelAfterSuccessIsIgnored(t *testing.T) {
	tracker := NewTracker()
	tracker.Succeed(&engine.Result{})
	tracker.Cancel()
	assert.Equal(t, PhaseSucceeded, tracker.State().Phase)
}

func TestTrackerProgressMessages(t *testing.T) {
	tracker := NewTracker()
	tracker.Executing(&types.Quote{EstimatedExecutionTime: time.Minute, Steps: []types.Step{{Transactions: make([]types.Transaction, 3)}}})
	assert.Equal(t, "Confirm transaction 1 of 3...", tracker.State().Message)
	assert.Equal(t, time.Minute, tracker.State().Estimated)

	_ = tracker.Confirmed(engine.Progress{Completed: 1, Total: 3, Submission: types.SubmissionResult{Action: types.ActionApproval}})
	assert.Equal(t, "Confirm transaction 2 of 3...", tracker.State().Message)

	_ = tracker.Confirmed(engine.Progress{Completed: 2, Total: 3, Submission: types.SubmissionResult{Action: types.ActionBuy}})
	assert.Equal(t, PhaseBridging, tracker.State().Phase)
	assert.Len(t, tracker.State().Submissions, 2)
}

func TestTrackerSubscribersReceiveSnapshots(t *testing.T) {
	tracker := NewTracker()
	var first, second []State
	tracker.Subscribe(func(s State) { first = append(first, s) })
	tracker.Subscribe(func(s State) { second = append(second, s) })

	tracker.Quoting()
	tracker.Executing(&types.Quote{Steps: []types.Step{{Transactions: make([]types.Transaction, 2)}}})
	_ = tracker.Confirmed(engine.Progress{Completed: 1, Total: 2, Submission: types.SubmissionResult{Hash: "0x1"}})

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, PhaseQuoting, first[0].Phase)
	assert.Equal(t, 2, first[1].Total)
	require.Len(t, first[2].Submissions, 1)
	assert.Equal(t, "0x1", first[2].Submissions[0].Hash)

	// snapshots are copies
	first[2].Submissions[0].Hash = "changed"
	assert.Equal(t, "0x1", tracker.State().Submissions[0].Hash)
}

func TestTrackerSameChainAfterBridgeLeavesBridging(t *testing.T) {
	tracker := NewTracker()
	tracker.Executing(&types.Quote{Steps: []types.Step{{Transactions: make([]types.Transaction, 2)}}})

	_ = tracker.Confirmed(engine.Progress{Completed: 1, Total: 2, Submission: types.SubmissionResult{Action: types.ActionTransfer}})
	assert.Equal(t, PhaseBridging, tracker.State().Phase)

	_ = tracker.Confirmed(engine.Progress{Completed: 2, Total: 2, Submission: types.SubmissionResult{Action: types.ActionFee}})
	state := tracker.State()
	assert.Equal(t, PhaseSubmitting, state.Phase)
	assert.Equal(t, "Transaction 2 of 2 confirmed", state.Message)
}

func TestUserMessage(t *testing.T) {
	timeout := &engine.TransactionError{Step: 0, Index: 1, Hash: "0x1", Err: engine.ErrStatusTimeout}
	assert.Contains(t, UserMessage(timeout), "check status manually")

	failed := fmt.Errorf("wrapped: %w", &engine.TransactionError{Err: engine.ErrCrossChainFailed})
	assert.Equal(t, "Cross-chain transaction failed.", UserMessage(failed))

	query := &engine.TransactionError{Err: &engine.StatusQueryError{Attempts: 3, Err: errors.New("dial tcp")}}
	assert.Contains(t, UserMessage(query), "status service")

	assert.Contains(t, UserMessage(context.Canceled), "cannot be undone")
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
