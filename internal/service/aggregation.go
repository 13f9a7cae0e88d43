package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// marketCycle carries the per-market computation state between ticks:
// the prior index for velocity and the recent value history feeding the
// rolling volatility window.
type marketCycle struct {
	mu      sync.Mutex
	prior   *domain.BeliefStateIndex
	history []float64
}

// AggregationService drives the periodic compute cycle: snapshot each
// open market's buffer, compute the index, persist it, and feed the
// inflection monitor. A confirmed inflection resolves the market.
type AggregationService struct {
	markets     *MarketService
	marketStore domain.MarketStore
	indexes     domain.IndexStore
	inflections domain.InflectionStore
	buffers     *BufferSet
	monitor     *MonitorService
	interval    time.Duration
	logger      *zap.Logger

	mu     sync.Mutex
	cycles map[uuid.UUID]*marketCycle

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewAggregationService(
	markets *MarketService,
	marketStore domain.MarketStore,
	indexes domain.IndexStore,
	inflections domain.InflectionStore,
	buffers *BufferSet,
	monitor *MonitorService,
	interval time.Duration,
	logger *zap.Logger,
) *AggregationService {
	return &AggregationService{
		markets:     markets,
		marketStore: marketStore,
		indexes:     indexes,
		inflections: inflections,
		buffers:     buffers,
		monitor:     monitor,
		interval:    interval,
		logger:      logger,
		cycles:      make(map[uuid.UUID]*marketCycle),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the background aggregation loop.
func (s *AggregationService) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("aggregation service started", zap.Duration("interval", s.interval))
}

// Stop signals the loop to exit and waits for the in-flight cycle.
func (s *AggregationService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("aggregation service stopped")
}

func (s *AggregationService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.RunCycle(ctx, now.UTC())
			cancel()
		}
	}
}

// RunCycle computes one tick for every market still accepting signals.
// Per-market failures are logged and do not stop the cycle.
func (s *AggregationService) RunCycle(ctx context.Context, now time.Time) {
	markets, err := s.markets.ListOpen(ctx)
	if err != nil {
		s.logger.Error("list open markets", zap.Error(err))
		return
	}

	for i := range markets {
		if err := s.RunMarketCycle(ctx, &markets[i], now); err != nil {
			s.logger.Error("market cycle failed",
				zap.String("market_id", markets[i].ID.String()),
				zap.Error(err))
		}
	}
}

// RunMarketCycle runs one compute-evaluate step for a single market.
// A failed computation (insufficient diversity, undefined index) is not
// an error: the prior index is retained and the monitor sees the tick
// as predicate-false, breaking any candidate window.
func (s *AggregationService) RunMarketCycle(ctx context.Context, market *domain.Market, now time.Time) error {
	cycle := s.cycleFor(market.ID)
	cycle.mu.Lock()
	defer cycle.mu.Unlock()

	set := s.buffers.ForMarket(market).Snapshot(now)
	calc := NewCalculator(market.Config, market.Type.IndexDomain())

	bsi, err := calc.Compute(set, now, cycle.prior, cycle.history)
	if err != nil {
		if errors.Is(err, ErrInsufficientDiversity) || errors.Is(err, ErrUndefinedIndex) {
			s.logger.Debug("cycle skipped",
				zap.String("market_id", market.ID.String()),
				zap.Int("sources", set.SourceCount()),
				zap.Error(err))
			_, evalErr := s.monitor.Evaluate(market, nil, now)
			if evalErr != nil && !errors.Is(evalErr, ErrAlreadyResolved) {
				return evalErr
			}
			return nil
		}
		return err
	}

	bsi.ID = uuid.New()
	bsi.MarketID = market.ID
	if err := s.indexes.Create(ctx, bsi); err != nil {
		s.logger.Warn("index write failed",
			zap.String("market_id", market.ID.String()),
			zap.Error(err))
	}

	cycle.prior = bsi
	cycle.history = appendBounded(cycle.history, bsi.Value, market.Config.VolatilityWindow)

	// First successful computation moves the market into Monitoring.
	if market.State == domain.StateActive {
		if err := s.marketStore.UpdateState(ctx, market.ID, domain.StateMonitoring, nil); err != nil {
			return err
		}
		market.State = domain.StateMonitoring
	}

	infl, err := s.monitor.Evaluate(market, bsi, now)
	if err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			return nil
		}
		return err
	}
	if infl == nil {
		return nil
	}

	if err := s.inflections.Create(ctx, infl); err != nil {
		return err
	}
	if err := s.markets.Resolve(ctx, market.ID, infl.ConfirmedAt); err != nil {
		return err
	}
	s.dropCycle(market.ID)

	s.logger.Info("market resolved on inflection",
		zap.String("market_id", market.ID.String()),
		zap.Time("confirmed_at", infl.ConfirmedAt))

	return nil
}

// Latest returns the most recently persisted index for a market.
func (s *AggregationService) Latest(ctx context.Context, marketID uuid.UUID) (*domain.BeliefStateIndex, error) {
	return s.indexes.Latest(ctx, marketID)
}

// History returns persisted indexes, newest first.
func (s *AggregationService) History(ctx context.Context, marketID uuid.UUID, limit int) ([]domain.BeliefStateIndex, error) {
	return s.indexes.History(ctx, marketID, limit)
}

func (s *AggregationService) cycleFor(marketID uuid.UUID) *marketCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[marketID]
	if !ok {
		c = &marketCycle{}
		s.cycles[marketID] = c
	}
	return c
}

func (s *AggregationService) dropCycle(marketID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cycles, marketID)
}

func appendBounded(history []float64, value float64, window int) []float64 {
	history = append(history, value)
	if len(history) > window {
		history = history[len(history)-window:]
	}
	return history
}
