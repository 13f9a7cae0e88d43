package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/service"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Poller periodically pulls signals from every configured provider and
// feeds them through the ingest path. Individual rejections (duplicate,
// outlier, stale market) are expected and do not stop the poll.
type Poller struct {
	providers []Provider
	markets   *service.MarketService
	signals   *service.SignalService
	interval  time.Duration
	logger    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPoller(providers []Provider, markets *service.MarketService, signals *service.SignalService, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		providers: providers,
		markets:   markets,
		signals:   signals,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
	p.logger.Info("oracle poller started",
		zap.Int("providers", len(p.providers)),
		zap.Duration("interval", p.interval))
}

func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("oracle poller stopped")
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			p.Poll(ctx, now.UTC())
			cancel()
		}
	}
}

// Poll fetches from every provider for every open market.
func (p *Poller) Poll(ctx context.Context, now time.Time) {
	markets, err := p.markets.ListOpen(ctx)
	if err != nil {
		p.logger.Error("list open markets", zap.Error(err))
		return
	}

	for i := range markets {
		market := &markets[i]
		for _, provider := range p.providers {
			p.pollProvider(ctx, provider, market, now)
		}
	}
}

func (p *Poller) pollProvider(ctx context.Context, provider Provider, market *domain.Market, now time.Time) {
	var signals []domain.BeliefSignal
	fetch := func() error {
		var err error
		signals, err = provider.Fetch(ctx, market.ID)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		p.logger.Warn("oracle fetch failed",
			zap.String("provider", provider.Name()),
			zap.String("market_id", market.ID.String()),
			zap.Error(err))
		return
	}

	accepted := 0
	for _, sig := range signals {
		err := p.signals.Ingest(ctx, market.ID, sig, now)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, service.ErrSignalRejected):
			// Policy rejection, already logged at debug by the service.
		default:
			p.logger.Warn("signal ingest failed",
				zap.String("provider", provider.Name()),
				zap.String("market_id", market.ID.String()),
				zap.Error(err))
		}
	}

	p.logger.Debug("poll complete",
		zap.String("provider", provider.Name()),
		zap.String("market_id", market.ID.String()),
		zap.Int("fetched", len(signals)),
		zap.Int("accepted", accepted))
}
