package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"arb-buy/pkg/engine"
	"arb-buy/pkg/types"
)

// Phase is the stage of a purchase as shown to the user
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseQuoting    Phase = "quoting"
	PhaseSubmitting Phase = "submitting"
	PhaseBridging   Phase = "bridging"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether no further updates will follow
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseCancelled
}

// State is a snapshot of the purchase progress
type State struct {
	Phase     Phase
	Completed int
	Total     int
	// Estimated is the quote's expected execution time, zero when unknown
	Estimated   time.Duration
	Message     string
	Err         error
	Submissions []types.SubmissionResult
}

// Tracker turns engine callbacks into user-facing progress. After Cancel every
// later update is ignored.
type Tracker struct {
	mu          sync.Mutex
	state       State
	subscribers []func(State)
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	return &Tracker{state: State{Phase: PhaseIdle}}
}

// Subscribe registers fn to receive every state change
func (t *Tracker) Subscribe(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// State returns the current snapshot
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() State {
	s := t.state
	s.Submissions = append([]types.SubmissionResult(nil), t.state.Submissions...)
	return s
}

// update applies fn unless the tracker is cancelled, then notifies subscribers
func (t *Tracker) update(fn func(*State)) {
	t.mu.Lock()
	if t.state.Phase == PhaseCancelled {
		t.mu.Unlock()
		return
	}
	fn(&t.state)
	snap := t.snapshot()
	subs := append([]func(State){}, t.subscribers...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Quoting marks the quote request as started
func (t *Tracker) Quoting() {
	t.update(func(s *State) {
		*s = State{Phase: PhaseQuoting, Message: "Fetching quote..."}
	})
}

// Executing starts progress tracking for quote
func (t *Tracker) Executing(quote *types.Quote) {
	t.update(func(s *State) {
		s.Phase = PhaseSubmitting
		s.Completed = 0
		s.Total = quote.TransactionCount()
		s.Message = fmt.Sprintf("Confirm transaction 1 of %d...", s.Total)
		if quote != nil {
			s.Estimated = quote.EstimatedExecutionTime
		}
	})
}

// Confirmed records a mined transaction. It matches engine.ConfirmedFunc.
func (t *Tracker) Confirmed(p engine.Progress) error {
	t.update(func(s *State) {
		s.Completed = p.Completed
		s.Total = p.Total
		s.Submissions = append(s.Submissions, p.Submission)
		switch {
		case p.Submission.Action.RequiresBridgeStatus():
			s.Phase = PhaseBridging
			s.Message = fmt.Sprintf("Transaction %d of %d confirmed, waiting for the bridge...", p.Completed, p.Total)
		case p.Completed < p.Total:
			s.Phase = PhaseSubmitting
			s.Message = fmt.Sprintf("Confirm transaction %d of %d...", p.Completed+1, p.Total)
		default:
			s.Phase = PhaseSubmitting
			s.Message = fmt.Sprintf("Transaction %d of %d confirmed", p.Completed, p.Total)
		}
	})
	return nil
}

// Succeed marks the purchase as complete
func (t *Tracker) Succeed(result *engine.Result) {
	t.update(func(s *State) {
		s.Phase = PhaseSucceeded
		s.Message = "Purchase complete"
		s.Err = nil
		if result != nil {
			s.Submissions = append([]types.SubmissionResult(nil), result.Submissions...)
			s.Completed = len(result.Submissions)
		}
	})
}

// Fail marks the purchase as failed with a message specific to err
func (t *Tracker) Fail(err error) {
	t.update(func(s *State) {
		s.Phase = PhaseFailed
		s.Err = err
		s.Message = UserMessage(err)
	})
}

// Cancel stops reporting progress. Transactions already sent are not undone.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	if t.state.Phase.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state.Phase = PhaseCancelled
	t.state.Message = UserMessage(context.Canceled)
	snap := t.snapshot()
	subs := append([]func(State){}, t.subscribers...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// UserMessage maps an error to the text shown to the user
func UserMessage(err error) string {
	var queryErr *engine.StatusQueryError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Cancelled. Transactions already sent cannot be undone; check your wallet for their status."
	case errors.Is(err, engine.ErrStatusTimeout):
		return "The bridge has not finished yet. Please check status manually."
	case errors.Is(err, engine.ErrCrossChainFailed):
		return "Cross-chain transaction failed."
	case errors.As(err, &queryErr):
		return "Could not reach the bridge status service. Please check status manually."
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient balance for this purchase."
	case errors.Is(err, ErrInvalidAmount):
		return "Enter an amount greater than zero."
	case errors.Is(err, ErrMissingSigner):
		return "Connect a wallet first."
	case errors.Is(err, ErrMissingClient):
		return "The bridge client is not configured."
	case errors.Is(err, engine.ErrAttemptInFlight):
		return "A purchase is already in progress."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out. Transactions already sent cannot be undone; check your wallet for their status."
	default:
		return err.Error()
	}
}
