package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMarketNotResolved = errors.New("market is not resolved")
	ErrNoInflection      = errors.New("no confirmed inflection for market")
)

// SettlementService applies the pure settlement computation to a
// resolved market's positions and persists the payouts. Settlement is
// idempotent: the payout set is a deterministic function of the
// inflection, the positions, and the curve, so re-running it writes
// the same amounts.
type SettlementService struct {
	markets     domain.MarketStore
	positions   domain.PositionStore
	inflections domain.InflectionStore
	logger      *zap.Logger
}

func NewSettlementService(markets domain.MarketStore, positions domain.PositionStore, inflections domain.InflectionStore, logger *zap.Logger) *SettlementService {
	return &SettlementService{markets: markets, positions: positions, inflections: inflections, logger: logger}
}

// SettleMarket settles every position of a resolved market against its
// confirmed inflection and records the payouts.
func (s *SettlementService) SettleMarket(ctx context.Context, marketID uuid.UUID) (*SettlementResult, error) {
	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if !market.Resolved() {
		return nil, ErrMarketNotResolved
	}

	infl, err := s.inflections.GetByMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoInflection
		}
		return nil, err
	}

	positions, err := s.positions.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	pool, err := PoolTotal(positions)
	if err != nil {
		return nil, err
	}

	result, err := Settle(infl, positions, market.Config.Curve, market.Config.AcceptedRange, pool)
	if err != nil {
		return nil, fmt.Errorf("settle market %s: %w", marketID, err)
	}

	for _, pos := range positions {
		payout := result.Payouts[pos.ID]
		if err := s.positions.Settle(ctx, pos.ID, payout.Status, payout.Amount, infl.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("persist payout %s: %w", pos.ID, err)
		}
	}

	s.logger.Info("market settled",
		zap.String("market_id", marketID.String()),
		zap.Int("positions", len(positions)),
		zap.Uint64("pool_total", result.PoolTotal),
		zap.Uint64("total_paid", result.TotalPaid),
		zap.Float64("scale", result.Scale))

	return result, nil
}

// Inflection returns the market's confirmed inflection.
func (s *SettlementService) Inflection(ctx context.Context, marketID uuid.UUID) (*domain.BeliefInflection, error) {
	infl, err := s.inflections.GetByMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoInflection
		}
		return nil, err
	}
	return infl, nil
}

// Preview computes the settlement outcome without persisting anything.
func (s *SettlementService) Preview(ctx context.Context, marketID uuid.UUID) (*SettlementResult, error) {
	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}

	infl, err := s.inflections.GetByMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoInflection
		}
		return nil, err
	}

	positions, err := s.positions.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	pool, err := PoolTotal(positions)
	if err != nil {
		return nil, err
	}

	return Settle(infl, positions, market.Config.Curve, market.Config.AcceptedRange, pool)
}
