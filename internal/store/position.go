package store

import (
	"context"
	"errors"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PositionStore struct {
	db *pgxpool.Pool
}

func NewPositionStore(db *pgxpool.Pool) *PositionStore {
	return &PositionStore{db: db}
}

func (s *PositionStore) Create(ctx context.Context, p *domain.Position) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO positions (
			id, market_id, owner, bucket_start, bucket_end, amount, status, placed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.MarketID, p.Owner, p.Bucket.Start, p.Bucket.End,
		int64(p.Amount), p.Status, p.PlacedAt,
	)
	return err
}

func (s *PositionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	p := &domain.Position{}
	var amount int64
	var payout *int64

	err := s.db.QueryRow(ctx,
		`SELECT id, market_id, owner, bucket_start, bucket_end, amount, status, payout, placed_at, settled_at
		FROM positions WHERE id = $1`,
		id,
	).Scan(
		&p.ID, &p.MarketID, &p.Owner, &p.Bucket.Start, &p.Bucket.End,
		&amount, &p.Status, &payout, &p.PlacedAt, &p.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Amount = uint64(amount)
	if payout != nil {
		v := uint64(*payout)
		p.Payout = &v
	}

	return p, nil
}

func (s *PositionStore) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]domain.Position, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, market_id, owner, bucket_start, bucket_end, amount, status, payout, placed_at, settled_at
		FROM positions WHERE market_id = $1
		ORDER BY placed_at`,
		marketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var amount int64
		var payout *int64

		err := rows.Scan(
			&p.ID, &p.MarketID, &p.Owner, &p.Bucket.Start, &p.Bucket.End,
			&amount, &p.Status, &payout, &p.PlacedAt, &p.SettledAt,
		)
		if err != nil {
			return nil, err
		}
		p.Amount = uint64(amount)
		if payout != nil {
			v := uint64(*payout)
			p.Payout = &v
		}

		positions = append(positions, p)
	}

	return positions, rows.Err()
}

func (s *PositionStore) Settle(ctx context.Context, id uuid.UUID, status domain.PositionStatus, payout uint64, settledAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE positions SET status = $1, payout = $2, settled_at = $3 WHERE id = $4`,
		status, int64(payout), settledAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// VoidByMarket voids every still-open position of a market, returning
// the number voided. Used when a market expires without resolution.
func (s *PositionStore) VoidByMarket(ctx context.Context, marketID uuid.UUID, settledAt time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE positions SET status = $1, payout = 0, settled_at = $2
		WHERE market_id = $3 AND status = $4`,
		domain.PositionVoid, settledAt, marketID, domain.PositionOpen,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Verify interface compliance at compile time
var _ domain.PositionStore = (*PositionStore)(nil)
