package engine

import (
	"context"
	"fmt"
	"time"

	"arb-buy/pkg/types"

	"go.uber.org/zap"
)

// WaitForBridge polls the bridge status of sub until it completes, fails or the
// poll budget runs out. Each status query counts as one attempt, successful or not.
func (e *Engine) WaitForBridge(ctx context.Context, sub types.SubmissionResult) error {
	if e.status == nil {
		return fmt.Errorf("no bridge status client configured")
	}

	log := e.log.With(zap.String("hash", sub.Hash), zap.Int64("chain_id", sub.ChainID))
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, err := e.status.Status(ctx, sub)
		switch {
		case err != nil:
			e.metrics.Poll("error")
			log.Debug("bridge status query failed", zap.Int("attempt", attempts+1), zap.Error(err))
		case status == types.StatusCompleted:
			e.metrics.Poll("completed")
			log.Info("cross-chain leg completed", zap.Int("polls", attempts+1))
			return nil
		case status == types.StatusFailed:
			e.metrics.Poll("failed")
			return ErrCrossChainFailed
		default:
			e.metrics.Poll("pending")
			log.Debug("cross-chain leg pending", zap.Int("attempt", attempts+1))
		}

		attempts++
		if attempts >= e.cfg.MaxPollAttempts {
			if err != nil {
				return &StatusQueryError{Attempts: attempts, Err: err}
			}
			return ErrStatusTimeout
		}

		if err := e.cfg.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
