package purchase

import (
	"context"
	"errors"
	"fmt"

	"arb-buy/pkg/balance"
	"arb-buy/pkg/client"
	"arb-buy/pkg/convert"
	"arb-buy/pkg/engine"
	"arb-buy/pkg/tokens"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount       = errors.New("enter an amount greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMissingSigner       = errors.New("no wallet connected")
	ErrMissingClient       = errors.New("bridge client is not configured")
)

// Request is one purchase as confirmed by the user
type Request struct {
	// Spend is the amount of Source to sell, in token units
	Spend       decimal.NullDecimal
	Source      tokens.Asset
	Destination tokens.Asset
	// Balance is the wallet's Source balance shown to the user
	Balance  balance.Balance
	Sender   string
	Receiver string
}

// Validate checks a request without touching the network
func Validate(req Request, signer engine.Signer, bridge client.Bridge) error {
	if !req.Spend.Valid || !req.Spend.Decimal.IsPositive() {
		return ErrInvalidAmount
	}
	if signer == nil || req.Sender == "" {
		return ErrMissingSigner
	}
	if bridge == nil {
		return ErrMissingClient
	}
	if !req.Balance.Available || req.Balance.Amount().LessThan(req.Spend.Decimal) {
		return fmt.Errorf("%w: have %s, need %s %s",
			ErrInsufficientBalance, req.Balance.Display(), req.Spend.Decimal.String(), req.Source.Symbol)
	}
	return nil
}

// Service runs purchases end to end
type Service struct {
	bridge client.Bridge
	engine *engine.Engine
	signer engine.Signer
	log    *zap.Logger
}

// NewService creates a purchase service
func NewService(bridge client.Bridge, eng *engine.Engine, signer engine.Signer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{bridge: bridge, engine: eng, signer: signer, log: log}
}

// Run validates the request, fetches a quote and executes it, reporting every
// change to tracker. Transactions mined before a failure stay mined.
func (s *Service) Run(ctx context.Context, req Request, tracker *Tracker) (*engine.Result, error) {
	if s.engine != nil && s.engine.Running() {
		return nil, engine.ErrAttemptInFlight
	}

	if err := Validate(req, s.signer, s.bridge); err != nil {
		tracker.Fail(err)
		return nil, err
	}

	tracker.Quoting()
	quote, err := s.bridge.Quote(ctx, client.QuoteRequest{
		OriginChainID:      req.Source.ChainID,
		OriginToken:        req.Source.Address,
		DestinationChainID: req.Destination.ChainID,
		DestinationToken:   req.Destination.Address,
		Amount:             convert.ToBaseUnits(req.Spend.Decimal, req.Source.Decimals),
		Sender:             req.Sender,
		Receiver:           req.Receiver,
	})
	if err != nil {
		err = fmt.Errorf("failed to get quote: %w", err)
		tracker.Fail(err)
		return nil, err
	}

	tracker.Executing(quote)
	result, err := s.engine.Execute(ctx, quote, s.signer, tracker.Confirmed)
	if err != nil {
		tracker.Fail(err)
		return nil, err
	}

	tracker.Succeed(result)
	s.log.Info("purchase completed",
		zap.String("attempt", result.AttemptID),
		zap.String("spend", req.Spend.Decimal.String()),
		zap.String("destination", req.Destination.Symbol),
	)
	return result, nil
}
