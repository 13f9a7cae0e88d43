package service

import (
	"context"
	"testing"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSettlementService_SettleMarket(t *testing.T) {
	ctx := context.Background()
	markets := newMockMarketStore()
	positions := newMockPositionStore()
	inflections := newMockInflectionStore()
	svc := NewSettlementService(markets, positions, inflections, zap.NewNop())

	market := probabilityMarket()
	market.State = domain.StateResolved
	require.NoError(t, markets.Create(ctx, market))

	confirmed := testBase.Add(time.Hour)
	require.NoError(t, inflections.Create(ctx, &domain.BeliefInflection{
		ID:          uuid.New(),
		MarketID:    market.ID,
		Kind:        market.Condition.Kind,
		ConfirmedAt: confirmed,
	}))

	// Linear curve, decay 0.01/s: 50s distance pays 1.5x, 200s pays 0x.
	near := position(market.ID, bucketAt(confirmed.Add(50*time.Second), 10*time.Minute), 100)
	far := position(market.ID, bucketAt(confirmed.Add(200*time.Second), 10*time.Minute), 100)
	require.NoError(t, positions.Create(ctx, &near))
	require.NoError(t, positions.Create(ctx, &far))

	result, err := svc.SettleMarket(ctx, market.ID)
	require.NoError(t, err)

	assert.Equal(t, uint64(150), result.Payouts[near.ID].Amount)
	assert.Equal(t, uint64(0), result.Payouts[far.ID].Amount)
	assert.Equal(t, uint64(200), result.PoolTotal)

	settled, err := positions.GetByID(ctx, near.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionSettled, settled.Status)
	require.NotNil(t, settled.Payout)
	assert.Equal(t, uint64(150), *settled.Payout)
	require.NotNil(t, settled.SettledAt)
	assert.True(t, settled.SettledAt.Equal(confirmed))

	// Settlement is idempotent: re-running writes the same amounts.
	again, err := svc.SettleMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Payouts[near.ID].Amount, again.Payouts[near.ID].Amount)
	assert.Equal(t, result.TotalPaid, again.TotalPaid)
}

func TestSettlementService_Guards(t *testing.T) {
	ctx := context.Background()
	markets := newMockMarketStore()
	positions := newMockPositionStore()
	inflections := newMockInflectionStore()
	svc := NewSettlementService(markets, positions, inflections, zap.NewNop())

	t.Run("unknown market", func(t *testing.T) {
		_, err := svc.SettleMarket(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrMarketNotFound)
	})

	t.Run("market not resolved", func(t *testing.T) {
		market := probabilityMarket()
		require.NoError(t, markets.Create(ctx, market))
		_, err := svc.SettleMarket(ctx, market.ID)
		assert.ErrorIs(t, err, ErrMarketNotResolved)
	})

	t.Run("resolved without inflection", func(t *testing.T) {
		market := probabilityMarket()
		market.State = domain.StateResolved
		require.NoError(t, markets.Create(ctx, market))
		_, err := svc.SettleMarket(ctx, market.ID)
		assert.ErrorIs(t, err, ErrNoInflection)
	})
}
