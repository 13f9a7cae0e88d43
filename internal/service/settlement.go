package service

import (
	"errors"
	"math"
	"time"

	"github.com/bellwetherhq/bellwether/internal/domain"
	"github.com/google/uuid"
)

// ErrAmountOverflow reports stake or payout arithmetic that would
// exceed uint64. Treated as a fatal configuration/input error, never
// wrapped around.
var ErrAmountOverflow = errors.New("amount arithmetic overflow")

// maxCurveMultiplier reflects the zero-sum design target: the nearest
// bucket can receive at most double its stake, funded by buckets that
// receive less.
const maxCurveMultiplier = 2.0

// Payout is the settlement outcome for one position.
type Payout struct {
	PositionID uuid.UUID             `json:"position_id"`
	Status     domain.PositionStatus `json:"status"`
	Amount     uint64                `json:"amount"`
	// Distance is the position bucket's time distance from the
	// inflection; zero for void positions.
	Distance time.Duration `json:"distance"`
}

// SettlementResult maps positions to payouts together with the
// normalization applied.
type SettlementResult struct {
	Payouts   map[uuid.UUID]Payout `json:"payouts"`
	TotalPaid uint64               `json:"total_paid"`
	PoolTotal uint64               `json:"pool_total"`
	// Scale is poolTotal/Σraw when normalization engaged, 1 otherwise.
	Scale float64 `json:"scale"`
}

// Settle maps a confirmed inflection and the market's positions to
// payout amounts via the settlement curve. Pure and deterministic:
// identical inputs yield bit-identical results, so settlement can be
// recomputed idempotently for audit.
//
// Positions whose bucket falls outside the accepted range are void
// with a zero payout that is not a curve result. Raw payouts are
// uniformly scaled down when their sum exceeds the pool; the pool is
// never over-allocated.
func Settle(infl *domain.BeliefInflection, positions []domain.Position, curve domain.SettlementCurve, accepted domain.TimeRange, poolTotal uint64) (*SettlementResult, error) {
	result := &SettlementResult{
		Payouts:   make(map[uuid.UUID]Payout, len(positions)),
		PoolTotal: poolTotal,
		Scale:     1,
	}

	raws := make([]float64, len(positions))
	var rawSum float64
	for i, pos := range positions {
		if !accepted.ContainsBucket(pos.Bucket) {
			result.Payouts[pos.ID] = Payout{PositionID: pos.ID, Status: domain.PositionVoid}
			continue
		}
		distance := pos.Bucket.DistanceFrom(infl.ConfirmedAt)
		raw := float64(pos.Amount) * CurveMultiplier(curve, distance)
		if math.IsNaN(raw) || raw > math.MaxUint64 {
			return nil, ErrAmountOverflow
		}
		raws[i] = raw
		rawSum += raw
	}

	scale := 1.0
	if rawSum > float64(poolTotal) {
		scale = float64(poolTotal) / rawSum
		result.Scale = scale
	}

	for i, pos := range positions {
		if _, void := result.Payouts[pos.ID]; void {
			continue
		}
		amount := uint64(raws[i] * scale) // truncate toward zero
		total, err := checkedAdd(result.TotalPaid, amount)
		if err != nil {
			return nil, err
		}
		result.TotalPaid = total
		result.Payouts[pos.ID] = Payout{
			PositionID: pos.ID,
			Status:     domain.PositionSettled,
			Amount:     amount,
			Distance:   pos.Bucket.DistanceFrom(infl.ConfirmedAt),
		}
	}

	if result.TotalPaid > poolTotal {
		return nil, ErrAmountOverflow
	}

	return result, nil
}

// CurveMultiplier evaluates the settlement curve at a time distance,
// returning the stake multiplier in [0, 2].
func CurveMultiplier(curve domain.SettlementCurve, distance time.Duration) float64 {
	d := distance.Seconds()
	switch curve.Kind {
	case domain.CurveLinear:
		m := maxCurveMultiplier - d*curve.DecayRate
		if m < 0 {
			return 0
		}
		return m
	case domain.CurveExponential:
		return maxCurveMultiplier * math.Exp(-curve.Rate*d)
	case domain.CurveGaussian:
		return maxCurveMultiplier * math.Exp(-(d*d)/(2*curve.Sigma*curve.Sigma))
	case domain.CurveCustom:
		ceiling, rate := curve.Params[0], curve.Params[1]
		if ceiling > maxCurveMultiplier {
			ceiling = maxCurveMultiplier
		}
		return ceiling * math.Exp(-rate*d)
	default:
		return 0
	}
}

// PoolTotal sums position stakes with overflow checking.
func PoolTotal(positions []domain.Position) (uint64, error) {
	var total uint64
	for _, pos := range positions {
		t, err := checkedAdd(total, pos.Amount)
		if err != nil {
			return 0, err
		}
		total = t
	}
	return total, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}
