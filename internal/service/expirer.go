package service

import (
	"context"
	"sync"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"go.uber.org/zap"
)

// ExpirerService sweeps open markets past their deadline into the
// Expired state and voids their positions for refund.
type ExpirerService struct {
	markets   domain.MarketStore
	positions domain.PositionStore
	buffers   *BufferSet
	monitor   *MonitorService
	interval  time.Duration
	logger    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewExpirerService(markets domain.MarketStore, positions domain.PositionStore, buffers *BufferSet, monitor *MonitorService, interval time.Duration, logger *zap.Logger) *ExpirerService {
	return &ExpirerService{
		markets:   markets,
		positions: positions,
		buffers:   buffers,
		monitor:   monitor,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (s *ExpirerService) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("expirer service started", zap.Duration("interval", s.interval))
}

func (s *ExpirerService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("expirer service stopped")
}

func (s *ExpirerService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if err := s.Sweep(ctx, now.UTC()); err != nil {
				s.logger.Error("expiry sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Sweep expires every open market whose deadline has passed. Voided
// position counts are logged per market.
func (s *ExpirerService) Sweep(ctx context.Context, now time.Time) error {
	markets, err := s.markets.ListByState(ctx, domain.StateActive, domain.StateMonitoring)
	if err != nil {
		return err
	}

	for _, m := range markets {
		if !m.Expired(now) {
			continue
		}

		if err := s.markets.UpdateState(ctx, m.ID, domain.StateExpired, nil); err != nil {
			s.logger.Error("expire market failed",
				zap.String("market_id", m.ID.String()),
				zap.Error(err))
			continue
		}
		voided, err := s.positions.VoidByMarket(ctx, m.ID, now)
		if err != nil {
			s.logger.Error("void positions failed",
				zap.String("market_id", m.ID.String()),
				zap.Error(err))
			continue
		}
		s.buffers.Drop(m.ID)
		s.monitor.Forget(m.ID)

		s.logger.Info("market expired",
			zap.String("market_id", m.ID.String()),
			zap.Int64("voided_positions", voided))
	}

	return nil
}
