package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"arb-buy/pkg/metrics"
	"arb-buy/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxPollAttempts = 60
	DefaultPollInterval    = 5 * time.Second
)

// Signer binds quote transactions to a chain and submits them
type Signer interface {
	// Prepare binds tx to its declared chain. Absent value, gas and fee fields stay absent.
	Prepare(ctx context.Context, tx types.Transaction) (*types.PreparedTransaction, error)
	// SendAndConfirm submits tx and blocks until it is mined, returning its hash
	SendAndConfirm(ctx context.Context, tx *types.PreparedTransaction) (string, error)
}

// StatusClient queries the bridge for the state of a cross-chain leg
type StatusClient interface {
	Status(ctx context.Context, sub types.SubmissionResult) (types.BridgeStatus, error)
}

// Progress describes a confirmed transaction
type Progress struct {
	AttemptID  string
	Step       int
	Index      int
	Completed  int
	Total      int
	Submission types.SubmissionResult
}

// ConfirmedFunc is notified after each transaction is mined. Its errors are logged and ignored.
type ConfirmedFunc func(Progress) error

// Result is the outcome of a successful attempt
type Result struct {
	AttemptID   string
	Submissions []types.SubmissionResult
	Elapsed     time.Duration
}

// Config holds the poll loop parameters
type Config struct {
	MaxPollAttempts int
	PollInterval    time.Duration
	// Sleep waits between status polls; defaults to a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine submits the transactions of a quote in order and waits for each to finish
type Engine struct {
	status  StatusClient
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Collectors
	running atomic.Bool
}

// New creates an engine. Zero config values fall back to the defaults.
func New(status StatusClient, cfg Config, log *zap.Logger, m *metrics.Collectors) *Engine {
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		status:  status,
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
}

// Running reports whether an attempt is in progress
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Execute runs every transaction of quote in order. For each transaction it binds,
// submits and waits for it to be mined, notifies onConfirmed, and for cross-chain
// actions polls the bridge until the leg completes. The first failure stops the
// attempt; transactions already mined are not rolled back.
func (e *Engine) Execute(ctx context.Context, quote *types.Quote, signer Signer, onConfirmed ConfirmedFunc) (*Result, error) {
	if quote == nil {
		return nil, ErrNoQuote
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAttemptInFlight
	}
	defer e.running.Store(false)

	started := time.Now()
	attemptID := uuid.NewString()
	log := e.log.With(zap.String("attempt", attemptID), zap.String("provider", quote.Provider))

	total := quote.TransactionCount()
	submissions := make([]types.SubmissionResult, 0, total)
	log.Info("starting purchase attempt", zap.Int("steps", len(quote.Steps)), zap.Int("transactions", total))

	for si, step := range quote.Steps {
		for ti, tx := range step.Transactions {
			sub, err := e.executeTransaction(ctx, log, signer, tx)
			if err != nil {
				e.metrics.Attempt("failed", time.Since(started))
				log.Warn("purchase attempt failed",
					zap.Int("step", si),
					zap.Int("tx", ti),
					zap.Error(err),
				)
				return nil, &TransactionError{Step: si, Index: ti, Hash: sub.Hash, Err: err}
			}
			submissions = append(submissions, sub)
			e.notify(log, onConfirmed, Progress{
				AttemptID:  attemptID,
				Step:       si,
				Index:      ti,
				Completed:  len(submissions),
				Total:      total,
				Submission: sub,
			})

			if tx.Action.RequiresBridgeStatus() {
				if err := e.WaitForBridge(ctx, sub); err != nil {
					e.metrics.Attempt("failed", time.Since(started))
					log.Warn("cross-chain leg did not complete",
						zap.Int("step", si),
						zap.Int("tx", ti),
						zap.String("hash", sub.Hash),
						zap.Error(err),
					)
					return nil, &TransactionError{Step: si, Index: ti, Hash: sub.Hash, Err: err}
				}
			}
		}
	}

	elapsed := time.Since(started)
	e.metrics.Attempt("success", elapsed)
	log.Info("purchase attempt completed", zap.Int("transactions", len(submissions)), zap.Duration("elapsed", elapsed))

	return &Result{
		AttemptID:   attemptID,
		Submissions: submissions,
		Elapsed:     elapsed,
	}, nil
}

func (e *Engine) executeTransaction(ctx context.Context, log *zap.Logger, signer Signer, tx types.Transaction) (types.SubmissionResult, error) {
	sub := types.SubmissionResult{ChainID: tx.ChainID, Action: tx.Action, StatusKey: tx.StatusKey}

	if err := ctx.Err(); err != nil {
		return sub, err
	}

	prepared, err := signer.Prepare(ctx, tx)
	if err != nil {
		return sub, fmt.Errorf("failed to prepare transaction: %w", err)
	}

	e.metrics.Submitted()
	hash, err := signer.SendAndConfirm(ctx, prepared)
	sub.Hash = hash
	if err != nil {
		return sub, fmt.Errorf("failed to send transaction: %w", err)
	}
	e.metrics.Confirmed()

	log.Info("transaction confirmed",
		zap.String("hash", hash),
		zap.Int64("chain_id", tx.ChainID),
		zap.String("action", string(tx.Action)),
	)
	return sub, nil
}

// notify invokes the callback, swallowing its errors and panics
func (e *Engine) notify(log *zap.Logger, fn ConfirmedFunc, p Progress) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("confirmation callback panicked", zap.Any("panic", r))
		}
	}()
	if err := fn(p); err != nil {
		log.Warn("confirmation callback failed", zap.Error(err))
	}
}
