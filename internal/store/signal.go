package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SignalStore is the append-only audit log of accepted signals.
type SignalStore struct {
	db *pgxpool.Pool
}

func NewSignalStore(db *pgxpool.Pool) *SignalStore {
	return &SignalStore{db: db}
}

func (s *SignalStore) Create(ctx context.Context, sig *domain.BeliefSignal) error {
	metadataJSON, err := json.Marshal(sig.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO signals (
			id, market_id, source, kind, value, weight, confidence, observed_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		sig.ID, sig.MarketID, sig.Source, sig.Kind, sig.Value, sig.Weight,
		sig.Confidence, sig.ObservedAt, metadataJSON,
	).Scan(&sig.CreatedAt)
}

func (s *SignalStore) ListByMarket(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.BeliefSignal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, market_id, source, kind, value, weight, confidence, observed_at, metadata, created_at
		FROM signals WHERE market_id = $1 AND observed_at >= $2
		ORDER BY observed_at`,
		marketID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSignals(rows)
}

func (s *SignalStore) CountBySource(ctx context.Context, marketID uuid.UUID) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT source, COUNT(*) FROM signals WHERE market_id = $1 GROUP BY source`,
		marketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		counts[source] = count
	}

	return counts, rows.Err()
}

func scanSignals(rows pgx.Rows) ([]domain.BeliefSignal, error) {
	var signals []domain.BeliefSignal
	for rows.Next() {
		var sig domain.BeliefSignal
		var metadataJSON []byte

		err := rows.Scan(
			&sig.ID, &sig.MarketID, &sig.Source, &sig.Kind, &sig.Value, &sig.Weight,
			&sig.Confidence, &sig.ObservedAt, &metadataJSON, &sig.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &sig.Metadata)
		}

		signals = append(signals, sig)
	}

	return signals, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.SignalStore = (*SignalStore)(nil)
