package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMarketClosed     = errors.New("market no longer accepts signals")
	ErrInvalidSignal    = errors.New("invalid signal")
	ErrUnknownKind      = fmt.Errorf("%w: unknown kind", ErrInvalidSignal)
	ErrMissingSource    = fmt.Errorf("%w: missing source", ErrInvalidSignal)
	ErrValueOutOfDomain = fmt.Errorf("%w: value outside index domain", ErrInvalidSignal)
)

// SignalService runs the ingest path: shape validation, buffer
// admission (duplicate/outlier/window policy), then the audit write.
// A rejected signal is dropped locally; ingestion continues.
type SignalService struct {
	markets domain.MarketStore
	signals domain.SignalStore
	buffers *BufferSet
	logger  *zap.Logger
}

func NewSignalService(markets domain.MarketStore, signals domain.SignalStore, buffers *BufferSet, logger *zap.Logger) *SignalService {
	return &SignalService{markets: markets, signals: signals, buffers: buffers, logger: logger}
}

// Ingest admits one signal into the market's buffer and records it for
// audit. Reject reasons wrap ErrSignalRejected; they are recoverable
// and local.
func (s *SignalService) Ingest(ctx context.Context, marketID uuid.UUID, sig domain.BeliefSignal, now time.Time) error {
	if sig.Source == "" {
		return ErrMissingSource
	}
	if !domain.ValidSignalKind(string(sig.Kind)) {
		return ErrUnknownKind
	}

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return ErrMarketNotFound
	}
	if !market.AcceptsSignals() {
		return ErrMarketClosed
	}
	if !market.Type.IndexDomain().Contains(sig.Value) {
		return ErrValueOutOfDomain
	}

	sig.ID = uuid.New()
	sig.MarketID = marketID

	if err := s.buffers.ForMarket(market).Ingest(sig, now); err != nil {
		s.logger.Debug("signal rejected",
			zap.String("market_id", marketID.String()),
			zap.String("source", sig.Source),
			zap.Float64("value", sig.Value),
			zap.Error(err))
		return err
	}

	if err := s.signals.Create(ctx, &sig); err != nil {
		// The buffer accepted the signal; an audit write failure must
		// not fail ingestion.
		s.logger.Warn("signal audit write failed",
			zap.String("market_id", marketID.String()),
			zap.Error(err))
	}

	return nil
}

// History returns the persisted audit trail of accepted signals.
func (s *SignalService) History(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.BeliefSignal, error) {
	return s.signals.ListByMarket(ctx, marketID, since)
}
