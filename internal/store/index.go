package store

import (
	"context"
	"errors"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IndexStore persists computed belief state indexes.
type IndexStore struct {
	db *pgxpool.Pool
}

func NewIndexStore(db *pgxpool.Pool) *IndexStore {
	return &IndexStore{db: db}
}

func (s *IndexStore) Create(ctx context.Context, b *domain.BeliefStateIndex) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO belief_indexes (
			id, market_id, value, velocity, acceleration, volatility,
			confidence, signal_count, source_count, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.MarketID, b.Value, b.Velocity, b.Acceleration, b.Volatility,
		b.Confidence, b.SignalCount, b.SourceCount, b.ComputedAt,
	)
	return err
}

func (s *IndexStore) Latest(ctx context.Context, marketID uuid.UUID) (*domain.BeliefStateIndex, error) {
	b := &domain.BeliefStateIndex{}
	err := s.db.QueryRow(ctx,
		`SELECT id, market_id, value, velocity, acceleration, volatility,
			confidence, signal_count, source_count, computed_at
		FROM belief_indexes WHERE market_id = $1
		ORDER BY computed_at DESC LIMIT 1`,
		marketID,
	).Scan(
		&b.ID, &b.MarketID, &b.Value, &b.Velocity, &b.Acceleration, &b.Volatility,
		&b.Confidence, &b.SignalCount, &b.SourceCount, &b.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *IndexStore) History(ctx context.Context, marketID uuid.UUID, limit int) ([]domain.BeliefStateIndex, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, market_id, value, velocity, acceleration, volatility,
			confidence, signal_count, source_count, computed_at
		FROM belief_indexes WHERE market_id = $1
		ORDER BY computed_at DESC LIMIT $2`,
		marketID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []domain.BeliefStateIndex
	for rows.Next() {
		var b domain.BeliefStateIndex
		err := rows.Scan(
			&b.ID, &b.MarketID, &b.Value, &b.Velocity, &b.Acceleration, &b.Volatility,
			&b.Confidence, &b.SignalCount, &b.SourceCount, &b.ComputedAt,
		)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, b)
	}

	return indexes, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.IndexStore = (*IndexStore)(nil)
