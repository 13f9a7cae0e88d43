package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMarketNotFound      = errors.New("market not found")
	ErrInvalidMarketType   = errors.New("invalid market type")
	ErrMarketNotCancelable = errors.New("market cannot be cancelled in its current state")
)

// MarketService owns market creation and lifecycle transitions.
// Configuration and condition validation happen here, at creation,
// before any aggregation begins.
type MarketService struct {
	markets domain.MarketStore
	buffers *BufferSet
	monitor *MonitorService
	logger  *zap.Logger
}

func NewMarketService(markets domain.MarketStore, buffers *BufferSet, monitor *MonitorService, logger *zap.Logger) *MarketService {
	return &MarketService{markets: markets, buffers: buffers, monitor: monitor, logger: logger}
}

// Create validates and persists a new market in the Active state.
func (s *MarketService) Create(ctx context.Context, m *domain.Market) error {
	if !domain.ValidMarketType(string(m.Type)) {
		return fmt.Errorf("%w: %q", ErrInvalidMarketType, m.Type)
	}

	m.Config.ApplyDefaults()
	if err := m.Config.Validate(); err != nil {
		return err
	}
	if err := m.Condition.Validate(m.Type.IndexDomain()); err != nil {
		return err
	}

	m.ID = uuid.New()
	m.State = domain.StateActive

	if err := s.markets.Create(ctx, m); err != nil {
		return fmt.Errorf("create market: %w", err)
	}

	s.logger.Info("market created",
		zap.String("market_id", m.ID.String()),
		zap.String("type", string(m.Type)),
		zap.String("condition", string(m.Condition.Kind)))

	return nil
}

func (s *MarketService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListOpen returns markets that still accept signals.
func (s *MarketService) ListOpen(ctx context.Context) ([]domain.Market, error) {
	return s.markets.ListByState(ctx, domain.StateActive, domain.StateMonitoring)
}

// Cancel withdraws a market that has not resolved. Its buffer and
// monitor state are released.
func (s *MarketService) Cancel(ctx context.Context, id uuid.UUID) error {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !m.AcceptsSignals() {
		return ErrMarketNotCancelable
	}

	if err := s.markets.UpdateState(ctx, id, domain.StateCancelled, nil); err != nil {
		return fmt.Errorf("cancel market: %w", err)
	}
	s.buffers.Drop(id)
	s.monitor.Forget(id)

	s.logger.Info("market cancelled", zap.String("market_id", id.String()))
	return nil
}

// Resolve moves a market to Resolved at the inflection's confirmation
// time. Called by the aggregation cycle on the confirming transition.
func (s *MarketService) Resolve(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error {
	if err := s.markets.UpdateState(ctx, id, domain.StateResolved, &confirmedAt); err != nil {
		return fmt.Errorf("resolve market: %w", err)
	}
	s.buffers.Drop(id)
	return nil
}
