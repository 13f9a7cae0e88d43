package service

import (
	"context"
	"sync"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/store"
	"github.com/google/uuid"
)

// testBase is the fixed clock origin for deterministic tests.
var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() domain.MarketConfig {
	return domain.MarketConfig{
		DecayFactor:        1, // decay disabled unless a test opts in
		DecayWindowSeconds: 300,
		RetentionSeconds:   3600,
		MinSources:         3,
		TargetSources:      5,
		OutlierZThreshold:  3.0,
		VolatilityWindow:   10,
		MinStake:           10,
		MaxStake:           10_000_000,
		AcceptedRange:      domain.TimeRange{Start: testBase.Add(-time.Hour), End: testBase.Add(24 * time.Hour)},
		Curve:              domain.SettlementCurve{Kind: domain.CurveLinear, DecayRate: 0.01},
		ExpiresAt:          testBase.Add(48 * time.Hour),
	}
}

func testMarket(typ domain.MarketType, cond domain.BeliefCondition) *domain.Market {
	return &domain.Market{
		ID:        uuid.New(),
		Creator:   "tester",
		Type:      typ,
		Condition: cond,
		Config:    testConfig(),
		State:     domain.StateActive,
		CreatedAt: testBase,
	}
}

func probabilityMarket() *domain.Market {
	return testMarket(domain.MarketProbabilityThreshold, domain.BeliefCondition{
		Kind:               domain.ConditionProbabilityThreshold,
		Threshold:          0.7,
		Direction:          domain.DirectionAbove,
		PersistenceSeconds: 60,
	})
}

// mockMarketStore implements domain.MarketStore for testing.
type mockMarketStore struct {
	mu      sync.Mutex
	markets map[uuid.UUID]*domain.Market
	owners  map[uuid.UUID]map[string]bool
}

func newMockMarketStore() *mockMarketStore {
	return &mockMarketStore{
		markets: make(map[uuid.UUID]*domain.Market),
		owners:  make(map[uuid.UUID]map[string]bool),
	}
}

func (m *mockMarketStore) Create(ctx context.Context, mk *domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk.CreatedAt = testBase
	copied := *mk
	m.markets[mk.ID] = &copied
	return nil
}

func (m *mockMarketStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *mk
	return &copied, nil
}

func (m *mockMarketStore) ListByState(ctx context.Context, states ...domain.MarketState) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Market
	for _, mk := range m.markets {
		for _, st := range states {
			if mk.State == st {
				out = append(out, *mk)
				break
			}
		}
	}
	return out, nil
}

func (m *mockMarketStore) UpdateState(ctx context.Context, id uuid.UUID, state domain.MarketState, resolvedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[id]
	if !ok {
		return store.ErrNotFound
	}
	mk.State = state
	if resolvedAt != nil {
		mk.ResolvedAt = resolvedAt
	}
	return nil
}

func (m *mockMarketStore) AddStake(ctx context.Context, id uuid.UUID, amount uint64, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[id]
	if !ok {
		return store.ErrNotFound
	}
	mk.TotalStaked += amount
	if m.owners[id] == nil {
		m.owners[id] = make(map[string]bool)
	}
	if !m.owners[id][owner] {
		m.owners[id][owner] = true
		mk.ParticipantCount++
	}
	return nil
}

// mockSignalStore implements domain.SignalStore for testing.
type mockSignalStore struct {
	mu         sync.Mutex
	signals    []domain.BeliefSignal
	createErr  error
	createdLen int
}

func newMockSignalStore() *mockSignalStore {
	return &mockSignalStore{}
}

func (m *mockSignalStore) Create(ctx context.Context, s *domain.BeliefSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	s.CreatedAt = testBase
	m.signals = append(m.signals, *s)
	m.createdLen = len(m.signals)
	return nil
}

func (m *mockSignalStore) ListByMarket(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.BeliefSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BeliefSignal
	for _, s := range m.signals {
		if s.MarketID == marketID && !s.ObservedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSignalStore) CountBySource(ctx context.Context, marketID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range m.signals {
		if s.MarketID == marketID {
			counts[s.Source]++
		}
	}
	return counts, nil
}

// mockIndexStore implements domain.IndexStore for testing.
type mockIndexStore struct {
	mu       sync.Mutex
	byMarket map[uuid.UUID][]domain.BeliefStateIndex
}

func newMockIndexStore() *mockIndexStore {
	return &mockIndexStore{byMarket: make(map[uuid.UUID][]domain.BeliefStateIndex)}
}

func (m *mockIndexStore) Create(ctx context.Context, b *domain.BeliefStateIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byMarket[b.MarketID] = append(m.byMarket[b.MarketID], *b)
	return nil
}

func (m *mockIndexStore) Latest(ctx context.Context, marketID uuid.UUID) (*domain.BeliefStateIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	indexes := m.byMarket[marketID]
	if len(indexes) == 0 {
		return nil, store.ErrNotFound
	}
	latest := indexes[len(indexes)-1]
	return &latest, nil
}

func (m *mockIndexStore) History(ctx context.Context, marketID uuid.UUID, limit int) ([]domain.BeliefStateIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	indexes := m.byMarket[marketID]
	var out []domain.BeliefStateIndex
	for i := len(indexes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, indexes[i])
	}
	return out, nil
}

// mockPositionStore implements domain.PositionStore for testing.
type mockPositionStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	byID  map[uuid.UUID]*domain.Position
}

func newMockPositionStore() *mockPositionStore {
	return &mockPositionStore{byID: make(map[uuid.UUID]*domain.Position)}
}

func (m *mockPositionStore) Create(ctx context.Context, p *domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.byID[p.ID] = &copied
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockPositionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockPositionStore) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, id := range m.order {
		if p := m.byID[id]; p.MarketID == marketID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPositionStore) Settle(ctx context.Context, id uuid.UUID, status domain.PositionStatus, payout uint64, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	p.Payout = &payout
	p.SettledAt = &settledAt
	return nil
}

func (m *mockPositionStore) VoidByMarket(ctx context.Context, marketID uuid.UUID, settledAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var voided int64
	for _, p := range m.byID {
		if p.MarketID == marketID && p.Status == domain.PositionOpen {
			p.Status = domain.PositionVoid
			zero := uint64(0)
			p.Payout = &zero
			p.SettledAt = &settledAt
			voided++
		}
	}
	return voided, nil
}

// mockInflectionStore implements domain.InflectionStore for testing.
type mockInflectionStore struct {
	mu       sync.Mutex
	byMarket map[uuid.UUID]*domain.BeliefInflection
}

func newMockInflectionStore() *mockInflectionStore {
	return &mockInflectionStore{byMarket: make(map[uuid.UUID]*domain.BeliefInflection)}
}

func (m *mockInflectionStore) Create(ctx context.Context, i *domain.BeliefInflection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byMarket[i.MarketID]; exists {
		return store.ErrConflict
	}
	copied := *i
	m.byMarket[i.MarketID] = &copied
	return nil
}

func (m *mockInflectionStore) GetByMarket(ctx context.Context, marketID uuid.UUID) (*domain.BeliefInflection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byMarket[marketID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *i
	return &copied, nil
}
