package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MarketStore struct {
	db *pgxpool.Pool
}

func NewMarketStore(db *pgxpool.Pool) *MarketStore {
	return &MarketStore{db: db}
}

func (s *MarketStore) Create(ctx context.Context, m *domain.Market) error {
	conditionJSON, err := json.Marshal(m.Condition)
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}
	configJSON, err := json.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO markets (
			id, creator, type, description, condition, config, state,
			total_staked, participant_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		m.ID, m.Creator, m.Type, m.Description, conditionJSON, configJSON, m.State,
		int64(m.TotalStaked), m.ParticipantCount,
	).Scan(&m.CreatedAt)
}

func (s *MarketStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m := &domain.Market{}
	var conditionJSON, configJSON []byte
	var totalStaked int64

	err := s.db.QueryRow(ctx,
		`SELECT id, creator, type, description, condition, config, state,
			total_staked, participant_count, created_at, resolved_at
		FROM markets WHERE id = $1`,
		id,
	).Scan(
		&m.ID, &m.Creator, &m.Type, &m.Description, &conditionJSON, &configJSON, &m.State,
		&totalStaked, &m.ParticipantCount, &m.CreatedAt, &m.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.TotalStaked = uint64(totalStaked)

	if err := json.Unmarshal(conditionJSON, &m.Condition); err != nil {
		return nil, fmt.Errorf("unmarshal condition: %w", err)
	}
	if err := json.Unmarshal(configJSON, &m.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return m, nil
}

func (s *MarketStore) ListByState(ctx context.Context, states ...domain.MarketState) ([]domain.Market, error) {
	stateStrs := make([]string, len(states))
	for i, st := range states {
		stateStrs[i] = string(st)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, creator, type, description, condition, config, state,
			total_staked, participant_count, created_at, resolved_at
		FROM markets WHERE state = ANY($1)
		ORDER BY created_at`,
		stateStrs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMarkets(rows)
}

func (s *MarketStore) UpdateState(ctx context.Context, id uuid.UUID, state domain.MarketState, resolvedAt *time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE markets SET state = $1, resolved_at = COALESCE($2, resolved_at) WHERE id = $3`,
		state, resolvedAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddStake assumes the position row was inserted first, so an owner
// with exactly one position on the market is a new participant.
func (s *MarketStore) AddStake(ctx context.Context, id uuid.UUID, amount uint64, owner string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE markets
		SET total_staked = total_staked + $1,
			participant_count = participant_count + CASE
				WHEN (SELECT COUNT(*) FROM positions WHERE market_id = $2 AND owner = $3) > 1 THEN 0
				ELSE 1
			END
		WHERE id = $2`,
		int64(amount), id, owner,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		var conditionJSON, configJSON []byte
		var totalStaked int64

		err := rows.Scan(
			&m.ID, &m.Creator, &m.Type, &m.Description, &conditionJSON, &configJSON, &m.State,
			&totalStaked, &m.ParticipantCount, &m.CreatedAt, &m.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		m.TotalStaked = uint64(totalStaked)

		if err := json.Unmarshal(conditionJSON, &m.Condition); err != nil {
			return nil, fmt.Errorf("unmarshal condition: %w", err)
		}
		if err := json.Unmarshal(configJSON, &m.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}

		markets = append(markets, m)
	}

	return markets, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.MarketStore = (*MarketStore)(nil)
