package domain

import (
	"time"

	"github.com/google/uuid"
)

// BeliefInflection is the confirmed moment a market's belief condition
// held continuously for its persistence window. At most one exists per
// market; immutable once created.
type BeliefInflection struct {
	ID       uuid.UUID     `json:"id"`
	MarketID uuid.UUID     `json:"market_id"`
	Kind     ConditionKind `json:"kind"`
	// ConfirmedAt is the evaluation timestamp at which persistence was
	// satisfied, not the moment the candidate first appeared.
	ConfirmedAt time.Time `json:"confirmed_at"`
	// Value, Velocity and Volatility capture the index at confirmation.
	Value      float64 `json:"value"`
	Velocity   float64 `json:"velocity"`
	Volatility float64 `json:"volatility"`
	// Magnitude is condition-specific: distance past threshold,
	// polarity overshoot, convergence margin, or velocity at
	// confirmation.
	Magnitude          float64 `json:"magnitude"`
	PersistenceSeconds int64   `json:"persistence_seconds"`
}
