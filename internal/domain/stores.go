package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MarketStore interface {
	Create(ctx context.Context, m *Market) error
	GetByID(ctx context.Context, id uuid.UUID) (*Market, error)
	ListByState(ctx context.Context, states ...MarketState) ([]Market, error)
	UpdateState(ctx context.Context, id uuid.UUID, state MarketState, resolvedAt *time.Time) error
	// AddStake adds to the market's stake total, counting the owner as
	// a new participant if they hold no prior position.
	AddStake(ctx context.Context, id uuid.UUID, amount uint64, owner string) error
}

// SignalStore is the audit log of accepted signals. The in-memory
// buffer remains the computation source; this store is the durability
// boundary only.
type SignalStore interface {
	Create(ctx context.Context, s *BeliefSignal) error
	ListByMarket(ctx context.Context, marketID uuid.UUID, since time.Time) ([]BeliefSignal, error)
	CountBySource(ctx context.Context, marketID uuid.UUID) (map[string]int, error)
}

type IndexStore interface {
	Create(ctx context.Context, b *BeliefStateIndex) error
	Latest(ctx context.Context, marketID uuid.UUID) (*BeliefStateIndex, error)
	History(ctx context.Context, marketID uuid.UUID, limit int) ([]BeliefStateIndex, error)
}

type PositionStore interface {
	Create(ctx context.Context, p *Position) error
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)
	ListByMarket(ctx context.Context, marketID uuid.UUID) ([]Position, error)
	Settle(ctx context.Context, id uuid.UUID, status PositionStatus, payout uint64, settledAt time.Time) error
	VoidByMarket(ctx context.Context, marketID uuid.UUID, settledAt time.Time) (int64, error)
}

type InflectionStore interface {
	Create(ctx context.Context, i *BeliefInflection) error
	GetByMarket(ctx context.Context, marketID uuid.UUID) (*BeliefInflection, error)
}
