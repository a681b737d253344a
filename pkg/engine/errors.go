package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrCrossChainFailed is returned when the bridge reports a cross-chain leg as failed
	ErrCrossChainFailed = errors.New("cross-chain transaction failed")
	// ErrStatusTimeout is returned when a cross-chain leg stays pending for every poll
	ErrStatusTimeout = errors.New("cross-chain transaction still pending after polling, please check status manually")
	// ErrAttemptInFlight is returned when Execute is called while another attempt runs
	ErrAttemptInFlight = errors.New("a purchase attempt is already in progress")
	// ErrNoQuote is returned when Execute is called without a quote
	ErrNoQuote = errors.New("no quote to execute")
)

// TransactionError locates a failure inside the quote
type TransactionError struct {
	Step  int
	Index int
	// Hash is empty when the transaction never reached the chain
	Hash string
	Err  error
}

func (e *TransactionError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("step %d transaction %d (%s): %v", e.Step+1, e.Index+1, e.Hash, e.Err)
	}
	return fmt.Sprintf("step %d transaction %d: %v", e.Step+1, e.Index+1, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// StatusQueryError is returned when the last of the allowed status queries failed
type StatusQueryError struct {
	Attempts int
	Err      error
}

func (e *StatusQueryError) Error() string {
	return fmt.Sprintf("bridge status query failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *StatusQueryError) Unwrap() error {
	return e.Err
}
