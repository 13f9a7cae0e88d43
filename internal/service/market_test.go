package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"go.uber.org/zap"
)

func newMarketService(markets *mockMarketStore) *MarketService {
	buffers := NewBufferSet()
	monitor := NewMonitorService(zap.NewNop())
	return NewMarketService(markets, buffers, monitor, zap.NewNop())
}

func TestMarketService_Create(t *testing.T) {
	ctx := context.Background()
	markets := newMockMarketStore()
	svc := newMarketService(markets)

	m := probabilityMarket()
	if err := svc.Create(ctx, m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.State != domain.StateActive {
		t.Errorf("State = %q, want active", m.State)
	}

	stored, err := svc.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Type != domain.MarketProbabilityThreshold {
		t.Errorf("Type = %q", stored.Type)
	}
}

func TestMarketService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newMarketService(newMockMarketStore())

	tests := []struct {
		name    string
		mutate  func(*domain.Market)
		wantErr error
	}{
		{
			name:    "unknown type",
			mutate:  func(m *domain.Market) { m.Type = "coin_flip" },
			wantErr: ErrInvalidMarketType,
		},
		{
			name:    "zero stake bounds",
			mutate:  func(m *domain.Market) { m.Config.MinStake = 0 },
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "diversity floor below three",
			mutate:  func(m *domain.Market) { m.Config.MinSources = 2 },
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name:    "threshold outside domain",
			mutate:  func(m *domain.Market) { m.Condition.Threshold = 1.5 },
			wantErr: domain.ErrInvalidCondition,
		},
		{
			name: "condition kind mismatched parameters",
			mutate: func(m *domain.Market) {
				m.Condition = domain.BeliefCondition{
					Kind:               domain.ConditionModelConsensus,
					MinModels:          1,
					ConvergenceBand:    0.1,
					PersistenceSeconds: 60,
				}
			},
			wantErr: domain.ErrInvalidCondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := probabilityMarket()
			tt.mutate(m)
			err := svc.Create(ctx, m)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarketService_Cancel(t *testing.T) {
	ctx := context.Background()
	markets := newMockMarketStore()
	svc := newMarketService(markets)

	m := probabilityMarket()
	if err := svc.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := svc.Cancel(ctx, m.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	stored, err := svc.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.State != domain.StateCancelled {
		t.Errorf("State = %q, want cancelled", stored.State)
	}

	// Terminal states cannot be cancelled again.
	if err := svc.Cancel(ctx, m.ID); !errors.Is(err, ErrMarketNotCancelable) {
		t.Errorf("second Cancel() error = %v, want ErrMarketNotCancelable", err)
	}
}
