package store

import (
	"context"
	"errors"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InflectionStore struct {
	db *pgxpool.Pool
}

func NewInflectionStore(db *pgxpool.Pool) *InflectionStore {
	return &InflectionStore{db: db}
}

// Create inserts the confirmed inflection. The market_id unique
// constraint enforces at most one inflection per market.
func (s *InflectionStore) Create(ctx context.Context, i *domain.BeliefInflection) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO inflections (
			id, market_id, kind, confirmed_at, value, velocity, volatility,
			magnitude, persistence_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.MarketID, i.Kind, i.ConfirmedAt, i.Value, i.Velocity, i.Volatility,
		i.Magnitude, i.PersistenceSeconds,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *InflectionStore) GetByMarket(ctx context.Context, marketID uuid.UUID) (*domain.BeliefInflection, error) {
	i := &domain.BeliefInflection{}
	err := s.db.QueryRow(ctx,
		`SELECT id, market_id, kind, confirmed_at, value, velocity, volatility,
			magnitude, persistence_seconds
		FROM inflections WHERE market_id = $1`,
		marketID,
	).Scan(
		&i.ID, &i.MarketID, &i.Kind, &i.ConfirmedAt, &i.Value, &i.Velocity, &i.Volatility,
		&i.Magnitude, &i.PersistenceSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return i, nil
}

// Verify interface compliance at compile time
var _ domain.InflectionStore = (*InflectionStore)(nil)
