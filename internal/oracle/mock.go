package oracle

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
)

// MockProvider emits synthetic signals for local development. Values
// follow a slow sine wave derived from the market ID so each market
// gets a stable but distinct trajectory.
type MockProvider struct {
	sources []string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		sources: []string{"mock-sentiment", "mock-forecast", "mock-consensus"},
	}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Fetch(ctx context.Context, marketID uuid.UUID) ([]domain.BeliefSignal, error) {
	h := fnv.New32a()
	h.Write(marketID[:])
	phase := float64(h.Sum32()%628) / 100

	now := time.Now().UTC().Truncate(time.Second)
	base := 0.5 + 0.4*math.Sin(phase+float64(now.Unix())/900)

	kinds := []domain.SignalKind{domain.SignalSentiment, domain.SignalForecast, domain.SignalConsensus}
	signals := make([]domain.BeliefSignal, 0, len(p.sources))
	for i, source := range p.sources {
		jitter := 0.02 * float64(i-1)
		signals = append(signals, domain.BeliefSignal{
			MarketID:   marketID,
			Source:     source,
			Kind:       kinds[i],
			Value:      clampUnit(base + jitter),
			Weight:     1.0,
			ObservedAt: now,
		})
	}
	return signals, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
