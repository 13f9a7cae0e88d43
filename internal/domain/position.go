package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidBucket is returned when a bucket's start does not precede
// its end.
var ErrInvalidBucket = errors.New("invalid time bucket")

// TimeBucket is the discrete interval of predicted inflection time a
// position is staked against.
type TimeBucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewTimeBucket(start, end time.Time) (TimeBucket, error) {
	if !start.Before(end) {
		return TimeBucket{}, ErrInvalidBucket
	}
	return TimeBucket{Start: start, End: end}, nil
}

func (b TimeBucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

func (b TimeBucket) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

func (b TimeBucket) Midpoint() time.Time {
	return b.Start.Add(b.End.Sub(b.Start) / 2)
}

func (b TimeBucket) Overlaps(other TimeBucket) bool {
	return b.Start.Before(other.End) && other.Start.Before(b.End)
}

// DistanceFrom returns the absolute time distance from t to the bucket
// start. Settlement measures accuracy against the bucket's opening
// edge, so a zero distance means the inflection landed exactly on it.
func (b TimeBucket) DistanceFrom(t time.Time) time.Duration {
	d := b.Start.Sub(t)
	if d < 0 {
		d = -d
	}
	return d
}

// PositionStatus is the settlement state of a position.
type PositionStatus string

const (
	PositionOpen PositionStatus = "open"
	// PositionSettled positions received a curve-computed payout
	// (possibly zero).
	PositionSettled PositionStatus = "settled"
	// PositionVoid positions had buckets outside the market's accepted
	// range, or belonged to an expired market; their zero payout is not
	// a curve result.
	PositionVoid PositionStatus = "void"
)

// Position is a stake on a time bucket within one market.
type Position struct {
	ID        uuid.UUID      `json:"id"`
	MarketID  uuid.UUID      `json:"market_id"`
	Owner     string         `json:"owner"`
	Bucket    TimeBucket     `json:"bucket"`
	Amount    uint64         `json:"amount"`
	Status    PositionStatus `json:"status"`
	Payout    *uint64        `json:"payout,omitempty"`
	PlacedAt  time.Time      `json:"placed_at"`
	SettledAt *time.Time     `json:"settled_at,omitempty"`
}

func (p *Position) Open() bool { return p.Status == PositionOpen }

func (p *Position) Settled() bool {
	return p.Status == PositionSettled || p.Status == PositionVoid
}

// ROI returns the settled return on stake as a percentage, or nil for
// unsettled positions.
func (p *Position) ROI() *float64 {
	if p.Payout == nil || p.Amount == 0 {
		return nil
	}
	roi := (float64(*p.Payout) - float64(p.Amount)) / float64(p.Amount) * 100
	return &roi
}

// BucketAggregate summarizes the positions staked on one bucket.
type BucketAggregate struct {
	Bucket             TimeBucket `json:"bucket"`
	TotalStaked        uint64     `json:"total_staked"`
	PositionCount      int        `json:"position_count"`
	ImpliedProbability float64    `json:"implied_probability"`
	AvgStake           uint64     `json:"avg_stake"`
}

// ImpliedProbability is the stake share of one bucket against the
// whole market, read as the crowd's probability that the inflection
// lands there.
func ImpliedProbability(bucketStake, totalStake uint64) float64 {
	if totalStake == 0 {
		return 0
	}
	return float64(bucketStake) / float64(totalStake)
}
