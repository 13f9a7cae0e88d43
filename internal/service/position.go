package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/bellwetherhq/bellwether/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrMarketNotOpen    = errors.New("market not accepting positions")
	ErrStakeOutOfBounds = errors.New("stake outside market bounds")
	ErrBucketOutOfRange = errors.New("bucket outside market accepted range")
	ErrMissingOwner     = errors.New("position owner required")
)

// PositionService places stakes on time buckets and aggregates them.
type PositionService struct {
	markets   domain.MarketStore
	positions domain.PositionStore
	logger    *zap.Logger
}

func NewPositionService(markets domain.MarketStore, positions domain.PositionStore, logger *zap.Logger) *PositionService {
	return &PositionService{markets: markets, positions: positions, logger: logger}
}

// Place validates and persists a new open position.
func (s *PositionService) Place(ctx context.Context, marketID uuid.UUID, owner string, bucket domain.TimeBucket, amount uint64, now time.Time) (*domain.Position, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if !bucket.Start.Before(bucket.End) {
		return nil, domain.ErrInvalidBucket
	}

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, err
	}
	if !market.AcceptsPositions(now) {
		return nil, ErrMarketNotOpen
	}
	if amount < market.Config.MinStake || amount > market.Config.MaxStake {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrStakeOutOfBounds, amount, market.Config.MinStake, market.Config.MaxStake)
	}
	if !market.Config.AcceptedRange.ContainsBucket(bucket) {
		return nil, ErrBucketOutOfRange
	}

	// Guard the market's running stake total before accepting.
	if _, err := checkedAdd(market.TotalStaked, amount); err != nil {
		return nil, err
	}

	pos := &domain.Position{
		ID:       uuid.New(),
		MarketID: marketID,
		Owner:    owner,
		Bucket:   bucket,
		Amount:   amount,
		Status:   domain.PositionOpen,
		PlacedAt: now,
	}
	if err := s.positions.Create(ctx, pos); err != nil {
		return nil, fmt.Errorf("create position: %w", err)
	}
	if err := s.markets.AddStake(ctx, marketID, amount, owner); err != nil {
		return nil, fmt.Errorf("add stake: %w", err)
	}

	s.logger.Info("position placed",
		zap.String("market_id", marketID.String()),
		zap.String("position_id", pos.ID.String()),
		zap.Uint64("amount", amount),
		zap.Time("bucket_start", bucket.Start))

	return pos, nil
}

func (s *PositionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return pos, nil
}

func (s *PositionService) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]domain.Position, error) {
	return s.positions.ListByMarket(ctx, marketID)
}

// BucketAggregates groups a market's positions by identical bucket and
// reports stake totals with implied probabilities, ordered by bucket
// start.
func (s *PositionService) BucketAggregates(ctx context.Context, marketID uuid.UUID) ([]domain.BucketAggregate, error) {
	positions, err := s.positions.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	var total uint64
	byBucket := make(map[domain.TimeBucket]*domain.BucketAggregate)
	for _, pos := range positions {
		agg, ok := byBucket[pos.Bucket]
		if !ok {
			agg = &domain.BucketAggregate{Bucket: pos.Bucket}
			byBucket[pos.Bucket] = agg
		}
		staked, err := checkedAdd(agg.TotalStaked, pos.Amount)
		if err != nil {
			return nil, err
		}
		agg.TotalStaked = staked
		agg.PositionCount++

		if total, err = checkedAdd(total, pos.Amount); err != nil {
			return nil, err
		}
	}

	aggs := make([]domain.BucketAggregate, 0, len(byBucket))
	for _, agg := range byBucket {
		agg.ImpliedProbability = domain.ImpliedProbability(agg.TotalStaked, total)
		if agg.PositionCount > 0 {
			agg.AvgStake = agg.TotalStaked / uint64(agg.PositionCount)
		}
		aggs = append(aggs, *agg)
	}
	sort.Slice(aggs, func(i, j int) bool {
		return aggs[i].Bucket.Start.Before(aggs[j].Bucket.Start)
	})

	return aggs, nil
}
